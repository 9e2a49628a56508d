// internal/errors/errors.go
package appErrors

import (
    "fmt"
    "time"
)

// ErrMailingNotFound is a sentinel error
type ErrMailingNotFound struct {
    MailingID int
}

func (e *ErrMailingNotFound) Error() string {
    return fmt.Sprintf("mailing with ID %d not found", e.MailingID)
}

// Helper constructor
func NewMailingNotFound(id int) error {
    return &ErrMailingNotFound{MailingID: id}
}

// ErrMessageNotFound is returned when a mailing references a message
// that no longer exists
type ErrMessageNotFound struct {
    MessageID int
}

func (e *ErrMessageNotFound) Error() string {
    return fmt.Sprintf("message with ID %d not found", e.MessageID)
}

func NewMessageNotFound(id int) error {
    return &ErrMessageNotFound{MessageID: id}
}

// ErrClientNotFound is returned for a missing recipient
type ErrClientNotFound struct {
    ClientID int
}

func (e *ErrClientNotFound) Error() string {
    return fmt.Sprintf("client with ID %d not found", e.ClientID)
}

func NewClientNotFound(id int) error {
    return &ErrClientNotFound{ClientID: id}
}

// ErrMailingInactive rejects sends and schedules on a disabled mailing
type ErrMailingInactive struct {
    MailingID int
}

func (e *ErrMailingInactive) Error() string {
    return fmt.Sprintf("mailing with ID %d is disabled", e.MailingID)
}

func NewMailingInactive(id int) error {
    return &ErrMailingInactive{MailingID: id}
}

// ErrInvalidSchedule rejects fire times that are not strictly in the future
type ErrInvalidSchedule struct {
    FireAt time.Time
}

func (e *ErrInvalidSchedule) Error() string {
    return fmt.Sprintf("scheduled time %s is not in the future", e.FireAt.Format(time.RFC3339))
}

func NewInvalidSchedule(fireAt time.Time) error {
    return &ErrInvalidSchedule{FireAt: fireAt}
}

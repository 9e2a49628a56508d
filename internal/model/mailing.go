// internal/model/mailing.go
package model

import "time"

// Mailing pairs one message with a set of recipients and tracks its
// delivery lifecycle. ScheduledJobID is set only while a one-shot send
// is pending in the scheduler.
type Mailing struct {
    ID             int        `db:"id" json:"id"`
    OwnerID        int        `db:"owner_id" json:"owner_id"`
    Status         string     `db:"status" json:"status"`
    StartDatetime  *time.Time `db:"start_datetime" json:"start_datetime,omitempty"`
    EndDatetime    *time.Time `db:"end_datetime" json:"end_datetime,omitempty"`
    ScheduledJobID *string    `db:"scheduled_job_id" json:"scheduled_job_id,omitempty"`
    IsActive       bool       `db:"is_active" json:"is_active"`
    MessageID      int        `db:"message_id" json:"message_id"`
    CreatedAt      time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

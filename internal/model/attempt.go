// internal/model/attempt.go
package model

import "time"

// MailingAttempt records one delivery try. Rows are append-only: the
// executor creates them and nothing updates them afterwards. They are
// deleted only when the owning mailing is deleted.
type MailingAttempt struct {
    ID             int       `db:"id" json:"id"`
    MailingID      int       `db:"mailing_id" json:"mailing_id"`
    Status         string    `db:"status" json:"status"` // successfully, unsuccessfully
    ServerResponse string    `db:"server_response" json:"server_response"`
    AttemptedAt    time.Time `db:"attempted_at" json:"attempted_at"`
}

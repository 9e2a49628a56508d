// internal/model/scheduled_job.go
package model

import "time"

// ScheduledJob is one pending one-shot fire time for a mailing. The
// table holds at most one row per mailing; rescheduling replaces the
// existing row.
type ScheduledJob struct {
    JobID     string    `db:"job_id" json:"job_id"`
    MailingID int       `db:"mailing_id" json:"mailing_id"`
    FireAt    time.Time `db:"fire_at" json:"fire_at"`
    CreatedAt time.Time `db:"created_at" json:"created_at"`
}

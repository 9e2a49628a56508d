package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/mailflow-backend/internal/model"
)

// ScheduledJobRepositoryInterface is the durable job registry behind
// the scheduler. mailing_id is the primary key, so the table can never
// hold more than one pending job per mailing.
type ScheduledJobRepositoryInterface interface {
	Upsert(job *model.ScheduledJob) error
	GetByMailing(mailingID int) (*model.ScheduledJob, error)
	Remove(mailingID int) error
	ListPending() ([]model.ScheduledJob, error)
}

type ScheduledJobRepository struct {
	DB *sql.DB
}

// Upsert registers a job, replacing any previous one for the mailing
func (r *ScheduledJobRepository) Upsert(job *model.ScheduledJob) error {
	job.CreatedAt = time.Now()
	query := `
        INSERT INTO scheduled_jobs (mailing_id, job_id, fire_at, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (mailing_id)
        DO UPDATE SET job_id=EXCLUDED.job_id, fire_at=EXCLUDED.fire_at, created_at=EXCLUDED.created_at
    `
	_, err := r.DB.Exec(query, job.MailingID, job.JobID, job.FireAt, job.CreatedAt)
	return err
}

// GetByMailing returns nil, nil when no job is pending
func (r *ScheduledJobRepository) GetByMailing(mailingID int) (*model.ScheduledJob, error) {
	query := `SELECT job_id, mailing_id, fire_at, created_at FROM scheduled_jobs WHERE mailing_id=$1`
	var job model.ScheduledJob
	err := r.DB.QueryRow(query, mailingID).Scan(&job.JobID, &job.MailingID, &job.FireAt, &job.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Remove is a no-op when the job already fired or was cancelled
func (r *ScheduledJobRepository) Remove(mailingID int) error {
	_, err := r.DB.Exec(`DELETE FROM scheduled_jobs WHERE mailing_id=$1`, mailingID)
	return err
}

// ListPending loads every registered job for restart recovery
func (r *ScheduledJobRepository) ListPending() ([]model.ScheduledJob, error) {
	query := `SELECT job_id, mailing_id, fire_at, created_at FROM scheduled_jobs ORDER BY fire_at ASC`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.ScheduledJob{}
	for rows.Next() {
		var job model.ScheduledJob
		if err := rows.Scan(&job.JobID, &job.MailingID, &job.FireAt, &job.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

var _ ScheduledJobRepositoryInterface = (*ScheduledJobRepository)(nil)

package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/mailflow-backend/internal/model"
)

// AttemptRepositoryInterface defines methods used by the service
type AttemptRepositoryInterface interface {
	Create(a *model.MailingAttempt) error
	CountByMailing(mailingID int) (int, error)
	ListByMailing(mailingID int) ([]model.MailingAttempt, error)
	StatsByMailing(mailingID int) (map[string]int, error)
}

type AttemptRepository struct {
	DB *sql.DB
}

// Create appends one attempt record. Attempts are never updated.
func (r *AttemptRepository) Create(a *model.MailingAttempt) error {
	a.AttemptedAt = time.Now()
	query := `
        INSERT INTO mailing_attempts (mailing_id, status, server_response, attempted_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	return r.DB.QueryRow(query, a.MailingID, a.Status, a.ServerResponse, a.AttemptedAt).Scan(&a.ID)
}

func (r *AttemptRepository) CountByMailing(mailingID int) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM mailing_attempts WHERE mailing_id=$1`, mailingID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AttemptRepository) ListByMailing(mailingID int) ([]model.MailingAttempt, error) {
	query := `
        SELECT id, mailing_id, status, server_response, attempted_at
        FROM mailing_attempts
        WHERE mailing_id=$1
        ORDER BY attempted_at DESC, status
    `
	rows, err := r.DB.Query(query, mailingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []model.MailingAttempt{}
	for rows.Next() {
		var a model.MailingAttempt
		if err := rows.Scan(&a.ID, &a.MailingID, &a.Status, &a.ServerResponse, &a.AttemptedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *AttemptRepository) StatsByMailing(mailingID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM mailing_attempts WHERE mailing_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, mailingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"total":              0,
		model.AttemptSuccess: 0,
		model.AttemptFailure: 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		if _, ok := stats[status]; ok {
			stats[status] = count
		}
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ AttemptRepositoryInterface = (*AttemptRepository)(nil)

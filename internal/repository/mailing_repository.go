package repository

import (
    "database/sql"
    "fmt"
    "time"

    appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
    "github.com/unclebandit/mailflow-backend/internal/model"
)

type MailingRepositoryInterface interface {
    Create(m *model.Mailing, clientIDs []int) error
    GetByID(id int) (*model.Mailing, error)
    Update(m *model.Mailing) error
    UpdateStatus(mailingID int, status string) error
    ListMailings(offset, limit int, status string) ([]*model.Mailing, int, error)
    RecipientEmails(mailingID int) ([]string, error)
    SoleRecipientMailings(clientID int) ([]int, error)
    Delete(id int) error
    CountMailings() (total int, active int, err error)
}

type MailingRepository struct {
    DB *sql.DB
}

const mailingColumns = `id, owner_id, status, start_datetime, end_datetime, scheduled_job_id, is_active, message_id, created_at, updated_at`

// Create inserts the mailing and its recipient links in one transaction
func (r *MailingRepository) Create(m *model.Mailing, clientIDs []int) error {
    m.CreatedAt = time.Now()
    if m.Status == "" {
        m.Status = model.StatusCreated
    }
    m.IsActive = true

    tx, err := r.DB.Begin()
    if err != nil {
        return err
    }
    defer tx.Rollback()

    query := `
        INSERT INTO mailings (owner_id, status, is_active, message_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
    if err := tx.QueryRow(query, m.OwnerID, m.Status, m.IsActive, m.MessageID, m.CreatedAt).Scan(&m.ID); err != nil {
        return err
    }

    for _, clientID := range clientIDs {
        if _, err := tx.Exec(
            `INSERT INTO mailing_clients (mailing_id, client_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
            m.ID, clientID,
        ); err != nil {
            return err
        }
    }

    return tx.Commit()
}

func (r *MailingRepository) GetByID(id int) (*model.Mailing, error) {
    query := fmt.Sprintf(`SELECT %s FROM mailings WHERE id=$1`, mailingColumns)
    var m model.Mailing
    err := r.DB.QueryRow(query, id).Scan(
        &m.ID, &m.OwnerID, &m.Status, &m.StartDatetime, &m.EndDatetime,
        &m.ScheduledJobID, &m.IsActive, &m.MessageID, &m.CreatedAt, &m.UpdatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewMailingNotFound(id)
        }
        return nil, err
    }
    return &m, nil
}

// Update persists every lifecycle field in a single statement so that
// readers never see a half-written record.
func (r *MailingRepository) Update(m *model.Mailing) error {
    query := `
        UPDATE mailings
        SET status=$1, start_datetime=$2, end_datetime=$3, scheduled_job_id=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6
    `
    res, err := r.DB.Exec(query, m.Status, m.StartDatetime, m.EndDatetime, m.ScheduledJobID, m.IsActive, m.ID)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        return appErrors.NewMailingNotFound(m.ID)
    }
    return nil
}

func (r *MailingRepository) UpdateStatus(mailingID int, status string) error {
    query := `UPDATE mailings SET status=$1, updated_at=NOW() WHERE id=$2`
    _, err := r.DB.Exec(query, status, mailingID)
    return err
}

func (r *MailingRepository) ListMailings(offset, limit int, status string) ([]*model.Mailing, int, error) {
    mailings := []*model.Mailing{}
    query := fmt.Sprintf(`SELECT %s FROM mailings WHERE 1=1`, mailingColumns)
    args := []interface{}{}
    argPos := 1

    // "active" filters to launched mailings; any other non-empty value
    // matches nothing, same as the original list screen.
    if status == "active" {
        status = model.StatusLaunched
    }
    if status != "" {
        query += fmt.Sprintf(" AND status=$%d", argPos)
        args = append(args, status)
        argPos++
    }

    query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    args = append(args, limit, offset)

    rows, err := r.DB.Query(query, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    for rows.Next() {
        m := &model.Mailing{}
        if err := rows.Scan(
            &m.ID, &m.OwnerID, &m.Status, &m.StartDatetime, &m.EndDatetime,
            &m.ScheduledJobID, &m.IsActive, &m.MessageID, &m.CreatedAt, &m.UpdatedAt,
        ); err != nil {
            return nil, 0, err
        }
        mailings = append(mailings, m)
    }

    countQuery := `SELECT COUNT(*) FROM mailings WHERE 1=1`
    argsCount := []interface{}{}
    if status != "" {
        countQuery += " AND status=$1"
        argsCount = append(argsCount, status)
    }

    var total int
    if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
        return nil, 0, err
    }

    return mailings, total, nil
}

// RecipientEmails resolves the mailing's recipient set to addresses
func (r *MailingRepository) RecipientEmails(mailingID int) ([]string, error) {
    query := `
        SELECT c.email
        FROM clients c
        JOIN mailing_clients mc ON mc.client_id = c.id
        WHERE mc.mailing_id = $1
        ORDER BY c.email
    `
    rows, err := r.DB.Query(query, mailingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    emails := []string{}
    for rows.Next() {
        var email string
        if err := rows.Scan(&email); err != nil {
            return nil, err
        }
        emails = append(emails, email)
    }
    return emails, rows.Err()
}

// SoleRecipientMailings lists the mailings for which this client is
// the only remaining recipient.
func (r *MailingRepository) SoleRecipientMailings(clientID int) ([]int, error) {
    query := `
        SELECT mc.mailing_id
        FROM mailing_clients mc
        WHERE mc.client_id = $1
          AND (SELECT COUNT(*) FROM mailing_clients x WHERE x.mailing_id = mc.mailing_id) = 1
    `
    rows, err := r.DB.Query(query, clientID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    ids := []int{}
    for rows.Next() {
        var mailingID int
        if err := rows.Scan(&mailingID); err != nil {
            return nil, err
        }
        ids = append(ids, mailingID)
    }
    return ids, rows.Err()
}

// Delete removes the mailing together with its attempts and recipient
// links. Messages and clients are referenced, not owned, and stay.
func (r *MailingRepository) Delete(id int) error {
    tx, err := r.DB.Begin()
    if err != nil {
        return err
    }
    defer tx.Rollback()

    if _, err := tx.Exec(`DELETE FROM mailing_attempts WHERE mailing_id=$1`, id); err != nil {
        return err
    }
    if _, err := tx.Exec(`DELETE FROM mailing_clients WHERE mailing_id=$1`, id); err != nil {
        return err
    }
    if _, err := tx.Exec(`DELETE FROM scheduled_jobs WHERE mailing_id=$1`, id); err != nil {
        return err
    }
    res, err := tx.Exec(`DELETE FROM mailings WHERE id=$1`, id)
    if err != nil {
        return err
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        return appErrors.NewMailingNotFound(id)
    }
    return tx.Commit()
}

func (r *MailingRepository) CountMailings() (int, int, error) {
    var total, active int
    query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE status=$1) FROM mailings`
    if err := r.DB.QueryRow(query, model.StatusLaunched).Scan(&total, &active); err != nil {
        return 0, 0, err
    }
    return total, active, nil
}

var _ MailingRepositoryInterface = (*MailingRepository)(nil)

package repository

import (
	"database/sql"

	appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
	"github.com/unclebandit/mailflow-backend/internal/model"
)

// MessageRepositoryInterface defines methods used by the service
type MessageRepositoryInterface interface {
	Create(m *model.Message) error
	GetByID(id int) (*model.Message, error)
	ListAll() ([]model.Message, error)
	Delete(id int) error
}

type MessageRepository struct {
	DB *sql.DB
}

func (r *MessageRepository) Create(m *model.Message) error {
	query := `INSERT INTO messages (subject, body) VALUES ($1, $2) RETURNING id`
	return r.DB.QueryRow(query, m.Subject, m.Body).Scan(&m.ID)
}

func (r *MessageRepository) GetByID(id int) (*model.Message, error) {
	query := `SELECT id, subject, body FROM messages WHERE id=$1`
	var m model.Message
	if err := r.DB.QueryRow(query, id).Scan(&m.ID, &m.Subject, &m.Body); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewMessageNotFound(id)
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) ListAll() ([]model.Message, error) {
	rows, err := r.DB.Query(`SELECT id, subject, body FROM messages ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Subject, &m.Body); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepository) Delete(id int) error {
	res, err := r.DB.Exec(`DELETE FROM messages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewMessageNotFound(id)
	}
	return nil
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)

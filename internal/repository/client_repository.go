package repository

import (
	"database/sql"

	appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
	"github.com/unclebandit/mailflow-backend/internal/model"
)

// ClientRepositoryInterface defines methods used by the service
type ClientRepositoryInterface interface {
	Create(c *model.Client) error
	GetByID(id int) (*model.Client, error)
	ListAll() ([]model.Client, error)
	Delete(id int) error
	Count() (int, error)
}

// ClientRepository is the concrete implementation
type ClientRepository struct {
	DB *sql.DB
}

func (r *ClientRepository) Create(c *model.Client) error {
	query := `
        INSERT INTO clients (email, first_name, surname, patronymic, comment)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.Email, c.FirstName, c.Surname, c.Patronymic, c.Comment).Scan(&c.ID)
}

// GetByID fetches a client by ID
func (r *ClientRepository) GetByID(id int) (*model.Client, error) {
	query := `
        SELECT id, email, first_name, surname, patronymic, comment
        FROM clients
        WHERE id = $1
    `
	row := r.DB.QueryRow(query, id)

	var c model.Client
	if err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.Surname, &c.Patronymic, &c.Comment); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewClientNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepository) ListAll() ([]model.Client, error) {
	query := `
        SELECT id, email, first_name, surname, patronymic, comment
        FROM clients
        ORDER BY surname
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.Surname, &c.Patronymic, &c.Comment); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Delete removes a client and its recipient links. Mailings left
// without a recipient are cleaned up by the service before this runs.
func (r *ClientRepository) Delete(id int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM mailing_clients WHERE client_id=$1`, id); err != nil {
		return err
	}

	res, err := tx.Exec(`DELETE FROM clients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewClientNotFound(id)
	}
	return tx.Commit()
}

func (r *ClientRepository) Count() (int, error) {
	var count int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

var _ ClientRepositoryInterface = (*ClientRepository)(nil)

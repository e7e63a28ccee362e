package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/muni-digital/turnos-api/internal/models"
)

// CitizenRepository resolves citizens referenced by turns.
type CitizenRepository struct {
	db *sqlx.DB
}

// NewCitizenRepository constructs the repository.
func NewCitizenRepository(db *sqlx.DB) *CitizenRepository {
	return &CitizenRepository{db: db}
}

// FindByID returns a citizen by id, or sql.ErrNoRows.
func (r *CitizenRepository) FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Citizen, error) {
	const query = `SELECT id, document, full_name, has_priority, active, created_at
        FROM citizens WHERE id = $1`
	var citizen models.Citizen
	if err := sqlx.GetContext(ctx, q, &citizen, query, id); err != nil {
		return nil, err
	}
	return &citizen, nil
}

// FindByDocument returns a citizen by national document number.
func (r *CitizenRepository) FindByDocument(ctx context.Context, q sqlx.ExtContext, document string) (*models.Citizen, error) {
	const query = `SELECT id, document, full_name, has_priority, active, created_at
        FROM citizens WHERE document = $1`
	var citizen models.Citizen
	if err := sqlx.GetContext(ctx, q, &citizen, query, document); err != nil {
		return nil, err
	}
	return &citizen, nil
}

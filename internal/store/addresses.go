package store

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/models"

	"github.com/google/uuid"
)

const addressColumns = "id, user_id, street, number, complement, neighborhood, city, state, zip_code, created_at, updated_at"

// CreateAddress inserts an address. The caller assigns the ID.
func (s *Store) CreateAddress(ctx context.Context, a *models.Address) error {
	query := `
		INSERT INTO addresses (id, user_id, street, number, complement, neighborhood, city, state, zip_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, a, query,
		a.ID, a.UserID, a.Street, a.Number, a.Complement, a.Neighborhood, a.City, a.State, a.ZipCode)
}

// GetAddressByID retrieves an address by ID
func (s *Store) GetAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var a models.Address
	err := s.db.GetContext(ctx, &a,
		"SELECT "+addressColumns+" FROM addresses WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAddressesByUser retrieves the addresses owned by a user
func (s *Store) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	addrs := []models.Address{}
	err := s.db.SelectContext(ctx, &addrs,
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = $1 ORDER BY created_at", userID)
	return addrs, err
}

// UpdateAddress writes number and complement, the only editable fields
func (s *Store) UpdateAddress(ctx context.Context, a *models.Address) error {
	err := s.db.GetContext(ctx, a, `
		UPDATE addresses SET number = $2, complement = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+addressColumns,
		a.ID, a.Number, a.Complement)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeleteAddress removes an address
func (s *Store) DeleteAddress(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM addresses WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package company

import (
	"context"
	"database/sql"
	"errors"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/company"
)

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new company store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByID retrieves a Company by its ID.
// PRE: id is non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, address, is_active, created_at, updated_at FROM company WHERE id = ?`, id)

	var c domain.Company
	var active int
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Company{}, storage.NotFound("company")
	}
	if err != nil {
		return domain.Company{}, err
	}
	c.IsActive = active == 1
	c.CreatedAt, _ = storage.ParseTime(createdAt)
	c.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return c, nil
}

// Save persists a Company (insert or update).
// PRE: entity has been validated
func (s *SQLStore) Save(ctx context.Context, c domain.Company) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company (id, name, email, phone, address, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, phone=excluded.phone,
		   address=excluded.address, is_active=excluded.is_active, updated_at=excluded.updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, storage.BoolToInt(c.IsActive),
		storage.FormatTime(c.CreatedAt), storage.FormatTime(c.UpdatedAt))
	return err
}

// Delete removes a Company row. Tenant data is not cascaded.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM company WHERE id = ?`, id)
	return err
}

package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/customer"
)

const columns = `id, company_id, name, email, phone, organization, address, tax_id, lead_id,
	account_manager, notes, created_at, updated_at`

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new customer store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.Organization, &c.Address,
		&c.TaxID, &c.LeadID, &c.AccountManager, &c.Notes, &createdAt, &updatedAt)
	if err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt, _ = storage.ParseTime(createdAt)
	c.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return c, nil
}

// GetByID retrieves a Customer within a company.
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM customer WHERE id = ? AND company_id = ?`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, storage.NotFound("customer")
	}
	return c, err
}

// Save persists a Customer (insert or update).
// PRE: entity has been normalised and validated
func (s *SQLStore) Save(ctx context.Context, c domain.Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customer (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, phone=excluded.phone,
		   organization=excluded.organization, address=excluded.address, tax_id=excluded.tax_id,
		   account_manager=excluded.account_manager, notes=excluded.notes, updated_at=excluded.updated_at`,
		c.ID, c.CompanyID, c.Name, c.Email, c.Phone, c.Organization, c.Address, c.TaxID, c.LeadID,
		c.AccountManager, c.Notes, storage.FormatTime(c.CreatedAt), storage.FormatTime(c.UpdatedAt))
	return err
}

// Delete removes a Customer from its company.
func (s *SQLStore) Delete(ctx context.Context, companyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM customer WHERE id = ? AND company_id = ?`, id, companyID)
	return err
}

// List returns one page of customers and the total match count.
// PRE: filter.CompanyID is non-empty
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Customer, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.AccountManager != "" {
		w.Add("account_manager = ?", filter.AccountManager)
	}
	w.SearchAny(filter.Search, "name", "email", "phone", "organization")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customer`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := `SELECT ` + columns + ` FROM customer` + w.SQL() +
		storage.OrderBy(filter.Sort, filter.Dir, "name ASC, id ASC")
	args := w.Args()
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

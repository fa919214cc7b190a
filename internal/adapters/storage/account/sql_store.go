package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/account"
)

const columns = `id, company_id, name, email, phone, designation, role, password_hash,
	is_active, disabled, failed_login_attempts, last_login_at, created_at, updated_at`

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new account store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (domain.Account, error) {
	var a domain.Account
	var active, disabled int
	var lastLogin sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Email, &a.Phone, &a.Designation, &a.Role,
		&a.PasswordHash, &active, &disabled, &a.FailedLoginAttempts, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	a.IsActive = active == 1
	a.Disabled = disabled == 1
	a.LastLoginAt = storage.ParseNullTime(lastLogin)
	a.CreatedAt, _ = storage.ParseTime(createdAt)
	a.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return a, nil
}

func (s *SQLStore) getOne(ctx context.Context, query string, args ...any) (domain.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, storage.NotFound("account")
	}
	return a, err
}

// GetByID retrieves an Account within a company.
// PRE: companyID and id are non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.Account, error) {
	return s.getOne(ctx, `SELECT `+columns+` FROM account WHERE id = ? AND company_id = ?`, id, companyID)
}

// GetByEmail retrieves an Account by its globally unique email.
// PRE: email is normalised
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return s.getOne(ctx, `SELECT `+columns+` FROM account WHERE email = ?`, domain.NormalizeEmail(email))
}

// Save persists an Account (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted; a duplicate email returns an error from the unique index
func (s *SQLStore) Save(ctx context.Context, a domain.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, phone=excluded.phone,
		   designation=excluded.designation, role=excluded.role, password_hash=excluded.password_hash,
		   is_active=excluded.is_active, disabled=excluded.disabled,
		   failed_login_attempts=excluded.failed_login_attempts, last_login_at=excluded.last_login_at,
		   updated_at=excluded.updated_at`,
		a.ID, a.CompanyID, a.Name, domain.NormalizeEmail(a.Email), a.Phone, a.Designation, a.Role,
		a.PasswordHash, storage.BoolToInt(a.IsActive), storage.BoolToInt(a.Disabled),
		a.FailedLoginAttempts, storage.NullTime(a.LastLoginAt),
		storage.FormatTime(a.CreatedAt), storage.FormatTime(a.UpdatedAt))
	return err
}

// RecordFailedLogin increments the failure counter in one statement and
// deactivates the account once it reaches max.
// POST: Returns the account as stored after the increment
func (s *SQLStore) RecordFailedLogin(ctx context.Context, id string, max int) (domain.Account, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE account SET
		   failed_login_attempts = failed_login_attempts + 1,
		   is_active = CASE WHEN failed_login_attempts + 1 >= ? THEN 0 ELSE is_active END
		 WHERE id = ?`, max, id)
	if err != nil {
		return domain.Account{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Account{}, storage.NotFound("account")
	}
	return s.getOne(ctx, `SELECT `+columns+` FROM account WHERE id = ?`, id)
}

// RecordSuccessfulLogin clears the failure counter and stamps the login time,
// but only while the account is still active and enabled.
// POST: returns ErrNotActive when a concurrent lockout or disable won
func (s *SQLStore) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	ts := storage.FormatTime(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE account SET failed_login_attempts = 0, last_login_at = ?, updated_at = ?
		 WHERE id = ? AND is_active = 1 AND disabled = 0`, ts, ts, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotActive
	}
	return nil
}

// Delete removes an Account from its company.
func (s *SQLStore) Delete(ctx context.Context, companyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM account WHERE id = ? AND company_id = ?`, id, companyID)
	return err
}

// List returns one page of a company's accounts and the total match count.
// PRE: filter.CompanyID is non-empty
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.Role != "" {
		w.Add("role = ?", filter.Role)
	}
	switch filter.Status {
	case "active":
		w.Add("is_active = 1 AND disabled = 0")
	case "locked":
		w.Add("is_active = 0")
	case "disabled":
		w.Add("disabled = 1")
	}
	w.SearchAny(filter.Search, "name", "email", "designation")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := `SELECT ` + columns + ` FROM account` + w.SQL() +
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

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ListByCompany returns every account in a company ordered by name.
func (s *SQLStore) ListByCompany(ctx context.Context, companyID string) ([]domain.Account, error) {
	accounts, _, err := s.List(ctx, ListFilter{CompanyID: companyID})
	return accounts, err
}

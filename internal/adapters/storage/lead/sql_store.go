package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/lead"
)

const columns = `id, company_id, name, email, phone, organization, source, requirement,
	estimated_value, status, assigned_to, created_by, rejection_reason, customer_id,
	converted_at, created_at, updated_at`

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new lead store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (domain.Lead, error) {
	var l domain.Lead
	var convertedAt sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&l.ID, &l.CompanyID, &l.Name, &l.Email, &l.Phone, &l.Organization, &l.Source,
		&l.Requirement, &l.EstimatedValue, &l.Status, &l.AssignedTo, &l.CreatedBy, &l.RejectionReason,
		&l.CustomerID, &convertedAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Lead{}, err
	}
	l.ConvertedAt = storage.ParseNullTime(convertedAt)
	l.CreatedAt, _ = storage.ParseTime(createdAt)
	l.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return l, nil
}

func (s *SQLStore) getOne(ctx context.Context, query string, args ...any) (domain.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Lead{}, storage.NotFound("lead")
	}
	return l, err
}

// GetByID retrieves a Lead within a company.
// PRE: companyID and id are non-empty
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.Lead, error) {
	return s.getOne(ctx, `SELECT `+columns+` FROM lead WHERE id = ? AND company_id = ?`, id, companyID)
}

// Save persists a Lead (insert or update).
// PRE: entity has been normalised and validated
func (s *SQLStore) Save(ctx context.Context, l domain.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, email=excluded.email, phone=excluded.phone,
		   organization=excluded.organization, source=excluded.source, requirement=excluded.requirement,
		   estimated_value=excluded.estimated_value, status=excluded.status,
		   assigned_to=excluded.assigned_to, rejection_reason=excluded.rejection_reason,
		   customer_id=excluded.customer_id, converted_at=excluded.converted_at,
		   updated_at=excluded.updated_at`,
		l.ID, l.CompanyID, l.Name, l.Email, l.Phone, l.Organization, l.Source, l.Requirement,
		l.EstimatedValue, l.Status, l.AssignedTo, l.CreatedBy, l.RejectionReason, l.CustomerID,
		storage.NullTime(l.ConvertedAt), storage.FormatTime(l.CreatedAt), storage.FormatTime(l.UpdatedAt))
	return err
}

// Delete removes a Lead from its company.
func (s *SQLStore) Delete(ctx context.Context, companyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lead WHERE id = ? AND company_id = ?`, id, companyID)
	return err
}

// FindDuplicate returns another lead in the company with the same email or phone.
// Empty email and phone never match.
func (s *SQLStore) FindDuplicate(ctx context.Context, companyID, email, phone, excludeID string) (domain.Lead, error) {
	if email == "" && phone == "" {
		return domain.Lead{}, storage.NotFound("lead")
	}
	var w storage.Where
	w.Add("company_id = ?", companyID)
	w.Add("id <> ?", excludeID)
	switch {
	case email != "" && phone != "":
		w.Add("(email = ? OR phone = ?)", email, phone)
	case email != "":
		w.Add("email = ?", email)
	default:
		w.Add("phone = ?", phone)
	}
	return s.getOne(ctx, `SELECT `+columns+` FROM lead`+w.SQL()+` ORDER BY created_at ASC LIMIT 1`, w.Args()...)
}

// ListContacts returns every email and phone on file for the company.
func (s *SQLStore) ListContacts(ctx context.Context, companyID string) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email, phone FROM lead WHERE company_id = ? AND (email <> '' OR phone <> '')`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.Email, &c.Phone); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountOpenAssigned counts NEW and IN_PROGRESS leads assigned to an account.
func (s *SQLStore) CountOpenAssigned(ctx context.Context, companyID, accountID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lead WHERE company_id = ? AND assigned_to = ? AND status IN (?, ?)`,
		companyID, accountID, domain.StatusNew, domain.StatusInProgress).Scan(&n)
	return n, err
}

// List returns one page of leads and the total match count.
// PRE: filter.CompanyID is non-empty
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Lead, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.AssignedTo != "" {
		w.Add("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	if filter.Source != "" {
		w.Add("source = ?", filter.Source)
	}
	if !filter.From.IsZero() {
		w.Add("created_at >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		w.Add("created_at < ?", storage.FormatTime(filter.To))
	}
	w.SearchAny(filter.Search, "name", "email", "phone", "organization")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lead`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	query := `SELECT ` + columns + ` FROM lead` + w.SQL() +
		storage.OrderBy(filter.Sort, filter.Dir, "created_at DESC, id ASC")
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

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

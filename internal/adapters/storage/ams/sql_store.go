package ams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/ams"
)

const columns = `id, company_id, customer_id, deal_id, assigned_to, service_type, frequency,
	contract_start, contract_end, scheduled_for, status, remarks, completed_at,
	previous_visit_id, created_at, updated_at`

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new visit store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVisit(row scanner) (domain.Visit, error) {
	var v domain.Visit
	var completedAt sql.NullString
	var start, end, scheduled, createdAt, updatedAt string
	err := row.Scan(&v.ID, &v.CompanyID, &v.CustomerID, &v.DealID, &v.AssignedTo, &v.ServiceType,
		&v.Frequency, &start, &end, &scheduled, &v.Status, &v.Remarks, &completedAt,
		&v.PreviousVisitID, &createdAt, &updatedAt)
	if err != nil {
		return domain.Visit{}, err
	}
	v.ContractStart, _ = storage.ParseTime(start)
	v.ContractEnd, _ = storage.ParseTime(end)
	v.ScheduledFor, _ = storage.ParseTime(scheduled)
	v.CompletedAt = storage.ParseNullTime(completedAt)
	v.CreatedAt, _ = storage.ParseTime(createdAt)
	v.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return v, nil
}

// GetByID retrieves a Visit within a company.
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.Visit, error) {
	v, err := scanVisit(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM ams_visit WHERE id = ? AND company_id = ?`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Visit{}, storage.NotFound("visit")
	}
	return v, err
}

// Save persists a Visit (insert or update).
// PRE: entity has been validated
func (s *SQLStore) Save(ctx context.Context, v domain.Visit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ams_visit (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   deal_id=excluded.deal_id, assigned_to=excluded.assigned_to, service_type=excluded.service_type,
		   frequency=excluded.frequency, contract_start=excluded.contract_start,
		   contract_end=excluded.contract_end, scheduled_for=excluded.scheduled_for,
		   status=excluded.status, remarks=excluded.remarks, completed_at=excluded.completed_at,
		   updated_at=excluded.updated_at`,
		v.ID, v.CompanyID, v.CustomerID, v.DealID, v.AssignedTo, v.ServiceType, v.Frequency,
		storage.FormatTime(v.ContractStart), storage.FormatTime(v.ContractEnd),
		storage.FormatTime(v.ScheduledFor), v.Status, v.Remarks, storage.NullTime(v.CompletedAt),
		v.PreviousVisitID, storage.FormatTime(v.CreatedAt), storage.FormatTime(v.UpdatedAt))
	return err
}

// UpdateIfStatus writes v only while the stored status is still from.
// POST: returns domain.ErrNotScheduled when another request changed the status first
func (s *SQLStore) UpdateIfStatus(ctx context.Context, v domain.Visit, from string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ams_visit SET deal_id = ?, assigned_to = ?, service_type = ?, frequency = ?,
		   contract_start = ?, contract_end = ?, scheduled_for = ?, status = ?, remarks = ?,
		   completed_at = ?, updated_at = ?
		 WHERE id = ? AND company_id = ? AND status = ?`,
		v.DealID, v.AssignedTo, v.ServiceType, v.Frequency,
		storage.FormatTime(v.ContractStart), storage.FormatTime(v.ContractEnd),
		storage.FormatTime(v.ScheduledFor), v.Status, v.Remarks, storage.NullTime(v.CompletedAt),
		storage.FormatTime(v.UpdatedAt), v.ID, v.CompanyID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotScheduled
	}
	return nil
}

// Delete removes a Visit from its company.
func (s *SQLStore) Delete(ctx context.Context, companyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ams_visit WHERE id = ? AND company_id = ?`, id, companyID)
	return err
}

// CountByCustomer counts a customer's visits in any status.
func (s *SQLStore) CountByCustomer(ctx context.Context, companyID, customerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ams_visit WHERE company_id = ? AND customer_id = ?`, companyID, customerID).Scan(&n)
	return n, err
}

// CountScheduledAssigned counts scheduled visits assigned to an account.
func (s *SQLStore) CountScheduledAssigned(ctx context.Context, companyID, accountID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ams_visit WHERE company_id = ? AND assigned_to = ? AND status = ?`,
		companyID, accountID, domain.StatusScheduled).Scan(&n)
	return n, err
}

// List returns one page of visits and the total match count.
// PRE: filter.CompanyID is non-empty
// POST: default order is soonest first
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Visit, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.CustomerID != "" {
		w.Add("customer_id = ?", filter.CustomerID)
	}
	if filter.AssignedTo != "" {
		w.Add("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		w.Add("scheduled_for >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		w.Add("scheduled_for < ?", storage.FormatTime(filter.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ams_visit`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count visits: %w", err)
	}

	query := `SELECT ` + columns + ` FROM ams_visit` + w.SQL() +
		storage.OrderBy(filter.Sort, filter.Dir, "scheduled_for ASC, id ASC")
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

	var out []domain.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

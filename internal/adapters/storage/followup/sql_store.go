package followup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/followup"
)

const columns = `id, company_id, lead_id, assigned_to, scheduled_at, mode, note, status,
	outcome, completed_at, created_by, created_at, updated_at`

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new follow-up store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFollowUp(row scanner) (domain.FollowUp, error) {
	var f domain.FollowUp
	var completedAt sql.NullString
	var scheduledAt, createdAt, updatedAt string
	err := row.Scan(&f.ID, &f.CompanyID, &f.LeadID, &f.AssignedTo, &scheduledAt, &f.Mode, &f.Note,
		&f.Status, &f.Outcome, &completedAt, &f.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return domain.FollowUp{}, err
	}
	f.ScheduledAt, _ = storage.ParseTime(scheduledAt)
	f.CompletedAt = storage.ParseNullTime(completedAt)
	f.CreatedAt, _ = storage.ParseTime(createdAt)
	f.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return f, nil
}

// GetByID retrieves a FollowUp within a company.
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.FollowUp, error) {
	f, err := scanFollowUp(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM follow_up WHERE id = ? AND company_id = ?`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FollowUp{}, storage.NotFound("follow-up")
	}
	return f, err
}

// Save persists a FollowUp (insert or update).
// PRE: entity has been validated
func (s *SQLStore) Save(ctx context.Context, f domain.FollowUp) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO follow_up (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   assigned_to=excluded.assigned_to, scheduled_at=excluded.scheduled_at, mode=excluded.mode,
		   note=excluded.note, status=excluded.status, outcome=excluded.outcome,
		   completed_at=excluded.completed_at, updated_at=excluded.updated_at`,
		f.ID, f.CompanyID, f.LeadID, f.AssignedTo, storage.FormatTime(f.ScheduledAt), f.Mode, f.Note,
		f.Status, f.Outcome, storage.NullTime(f.CompletedAt), f.CreatedBy,
		storage.FormatTime(f.CreatedAt), storage.FormatTime(f.UpdatedAt))
	return err
}

// UpdateIfStatus writes f only while the stored status is still from.
// POST: returns domain.ErrNotPending when another request changed the status first
func (s *SQLStore) UpdateIfStatus(ctx context.Context, f domain.FollowUp, from string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE follow_up SET assigned_to = ?, scheduled_at = ?, mode = ?, note = ?, status = ?,
		   outcome = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND company_id = ? AND status = ?`,
		f.AssignedTo, storage.FormatTime(f.ScheduledAt), f.Mode, f.Note, f.Status,
		f.Outcome, storage.NullTime(f.CompletedAt), storage.FormatTime(f.UpdatedAt),
		f.ID, f.CompanyID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotPending
	}
	return nil
}

// Delete removes a FollowUp from its company.
func (s *SQLStore) Delete(ctx context.Context, companyID, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM follow_up WHERE id = ? AND company_id = ?`, id, companyID)
	return err
}

// DeleteByLead removes every follow-up of a lead.
func (s *SQLStore) DeleteByLead(ctx context.Context, companyID, leadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM follow_up WHERE lead_id = ? AND company_id = ?`, leadID, companyID)
	return err
}

// CountPendingAssigned counts pending follow-ups assigned to an account.
func (s *SQLStore) CountPendingAssigned(ctx context.Context, companyID, accountID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follow_up WHERE company_id = ? AND assigned_to = ? AND status = ?`,
		companyID, accountID, domain.StatusPending).Scan(&n)
	return n, err
}

// List returns one page of follow-ups and the total match count.
// PRE: filter.CompanyID is non-empty
// POST: default order is soonest scheduled first
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.FollowUp, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.LeadID != "" {
		w.Add("lead_id = ?", filter.LeadID)
	}
	if filter.AssignedTo != "" {
		w.Add("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		w.Add("scheduled_at >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		w.Add("scheduled_at < ?", storage.FormatTime(filter.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follow_up`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count follow-ups: %w", err)
	}

	query := `SELECT ` + columns + ` FROM follow_up` + w.SQL() +
		storage.OrderBy(filter.Sort, filter.Dir, "scheduled_at ASC, id ASC")
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

	var out []domain.FollowUp
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

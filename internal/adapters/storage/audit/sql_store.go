package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/audit"
)

const columns = `id, company_id, occurred_at, category, action, severity, actor_id, actor_email,
	actor_role, resource_type, resource_id, description, ip_address, user_agent`

// SQLStore implements the audit Store interface over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new audit event store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// Save persists an audit event.
func (s *SQLStore) Save(ctx context.Context, e domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CompanyID, storage.FormatTime(e.Timestamp), string(e.Category), string(e.Action),
		string(e.Severity), e.ActorID, e.ActorEmail, e.ActorRole, e.ResourceType, e.ResourceID,
		e.Description, e.IPAddress, e.UserAgent)
	return err
}

// List returns audit events with optional filtering.
// PRE: filter.CompanyID is non-empty
// POST: Returns events ordered by timestamp desc
func (s *SQLStore) List(ctx context.Context, filter Filter) ([]domain.Event, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.Category != nil {
		w.Add("category = ?", string(*filter.Category))
	}
	if filter.Action != nil {
		w.Add("action = ?", string(*filter.Action))
	}
	if filter.ActorID != nil {
		w.Add("actor_id = ?", *filter.ActorID)
	}
	if filter.Severity != nil {
		w.Add("severity = ?", string(*filter.Severity))
	}
	if filter.ResourceID != nil {
		w.Add("resource_id = ?", *filter.ResourceID)
	}
	if !filter.From.IsZero() {
		w.Add("occurred_at >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		w.Add("occurred_at < ?", storage.FormatTime(filter.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_event`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := `SELECT ` + columns + ` FROM audit_event` + w.SQL() + ` ORDER BY occurred_at DESC, id DESC`
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

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// GetByID retrieves a specific audit event.
// POST: Returns the event or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM audit_event WHERE id = ? AND company_id = ?`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, storage.NotFound("audit event")
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.Event, error) {
	var e domain.Event
	var ts string
	err := row.Scan(&e.ID, &e.CompanyID, &ts, &e.Category, &e.Action, &e.Severity, &e.ActorID,
		&e.ActorEmail, &e.ActorRole, &e.ResourceType, &e.ResourceID, &e.Description, &e.IPAddress, &e.UserAgent)
	if err != nil {
		return domain.Event{}, err
	}
	e.Timestamp, _ = storage.ParseTime(ts)
	return e, nil
}

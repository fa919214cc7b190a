package deal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/deal"
)

const columns = `id, company_id, customer_id, title, value, balance, status, owner_id,
	expected_close_at, closed_at, notes, created_at, updated_at`

const paymentColumns = `id, company_id, deal_id, amount, paid_at, method, reference, recorded_by, created_at`

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new deal store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeal(row scanner) (domain.Deal, error) {
	var d domain.Deal
	var expected, closed sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.CompanyID, &d.CustomerID, &d.Title, &d.Value, &d.Balance, &d.Status,
		&d.OwnerID, &expected, &closed, &d.Notes, &createdAt, &updatedAt)
	if err != nil {
		return domain.Deal{}, err
	}
	d.ExpectedCloseDate = storage.ParseNullTime(expected)
	d.ClosedAt = storage.ParseNullTime(closed)
	d.CreatedAt, _ = storage.ParseTime(createdAt)
	d.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return d, nil
}

// GetByID retrieves a Deal within a company.
// POST: Returns the entity or an error wrapping storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, companyID, id string) (domain.Deal, error) {
	d, err := scanDeal(s.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM deal WHERE id = ? AND company_id = ?`, id, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deal{}, storage.NotFound("deal")
	}
	return d, err
}

// Save inserts a Deal or updates its descriptive fields and status.
// Value and balance are written only on insert; use ChangeValue and
// RecordPayment to move them so concurrent payments are never overwritten.
// PRE: entity has been validated
func (s *SQLStore) Save(ctx context.Context, d domain.Deal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deal (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, status=excluded.status,
		   owner_id=excluded.owner_id, expected_close_at=excluded.expected_close_at,
		   closed_at=excluded.closed_at, notes=excluded.notes, updated_at=excluded.updated_at`,
		d.ID, d.CompanyID, d.CustomerID, d.Title, d.Value, d.Balance, d.Status, d.OwnerID,
		storage.NullTime(d.ExpectedCloseDate), storage.NullTime(d.ClosedAt), d.Notes,
		storage.FormatTime(d.CreatedAt), storage.FormatTime(d.UpdatedAt))
	return err
}

// ChangeValue moves a deal from value `from` to `to`, shifting the balance by
// the difference so the amount paid is kept.
// POST: returns ErrBalanceChanged when the stored value is no longer `from`
// or payments recorded since exceed `to`
func (s *SQLStore) ChangeValue(ctx context.Context, companyID, id string, from, to int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deal SET value = ?, balance = balance + ?, updated_at = ?
		 WHERE id = ? AND company_id = ? AND value = ? AND balance + ? >= 0`,
		to, to-from, storage.FormatTime(now), id, companyID, from, to-from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBalanceChanged
	}
	return nil
}

// Delete removes a Deal and its payments.
func (s *SQLStore) Delete(ctx context.Context, companyID, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM deal_payment WHERE deal_id = ? AND company_id = ?`, id, companyID); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM deal WHERE id = ? AND company_id = ?`, id, companyID)
	return err
}

// RecordPayment reduces the balance with a guarded UPDATE, then inserts the
// payment row. The balance is restored if the insert fails.
// PRE: p.Amount > 0
// POST: deal balance reduced by p.Amount and payment stored, or neither
func (s *SQLStore) RecordPayment(ctx context.Context, p domain.Payment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deal SET balance = balance - ?, updated_at = ?
		 WHERE id = ? AND company_id = ? AND status <> ? AND balance >= ?`,
		p.Amount, storage.FormatTime(p.CreatedAt), p.DealID, p.CompanyID, domain.StatusLost, p.Amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBalanceChanged
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deal_payment (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.DealID, p.Amount, storage.FormatTime(p.PaidAt), p.Method, p.Reference,
		p.RecordedBy, storage.FormatTime(p.CreatedAt))
	if err != nil {
		if _, rerr := s.db.ExecContext(ctx,
			`UPDATE deal SET balance = balance + ? WHERE id = ? AND company_id = ?`,
			p.Amount, p.DealID, p.CompanyID); rerr != nil {
			slog.Error("payment_balance_restore_failed", "deal_id", p.DealID, "amount", p.Amount, "error", rerr)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ListPayments returns a deal's payments, oldest first.
func (s *SQLStore) ListPayments(ctx context.Context, companyID, dealID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM deal_payment WHERE deal_id = ? AND company_id = ? ORDER BY paid_at ASC, id ASC`,
		dealID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var paidAt, createdAt string
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.DealID, &p.Amount, &paidAt, &p.Method, &p.Reference,
			&p.RecordedBy, &createdAt); err != nil {
			return nil, err
		}
		p.PaidAt, _ = storage.ParseTime(paidAt)
		p.CreatedAt, _ = storage.ParseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountByCustomer counts a customer's deals in any status.
func (s *SQLStore) CountByCustomer(ctx context.Context, companyID, customerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deal WHERE company_id = ? AND customer_id = ?`, companyID, customerID).Scan(&n)
	return n, err
}

// CountOpenOwned counts open deals owned by an account.
func (s *SQLStore) CountOpenOwned(ctx context.Context, companyID, accountID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deal WHERE company_id = ? AND owner_id = ? AND status = ?`,
		companyID, accountID, domain.StatusOpen).Scan(&n)
	return n, err
}

// List returns one page of deals and the total match count.
// PRE: filter.CompanyID is non-empty
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]domain.Deal, int, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.CustomerID != "" {
		w.Add("customer_id = ?", filter.CustomerID)
	}
	if filter.OwnerID != "" {
		w.Add("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		w.Add("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		w.Add("created_at >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		w.Add("created_at < ?", storage.FormatTime(filter.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deal`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deals: %w", err)
	}

	query := `SELECT ` + columns + ` FROM deal` + w.SQL() +
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

	var out []domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

package report

import (
	"context"
	"fmt"
	"time"

	"crm/internal/adapters/storage"
	"crm/internal/domain/ams"
	"crm/internal/domain/deal"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
	"crm/internal/domain/report"
)

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new report store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// activityQuery is one GROUP BY over a source table that feeds one Activity field.
type activityQuery struct {
	name  string
	query string
	args  func(companyID, from, to string) []any
	apply func(a *report.Activity, count int, sum int64)
}

var activityQueries = []activityQuery{
	{
		name: "leads_created",
		query: `SELECT created_by, COUNT(*), 0 FROM lead
			WHERE company_id = ? AND created_at >= ? AND created_at < ? GROUP BY created_by`,
		args:  func(c, f, t string) []any { return []any{c, f, t} },
		apply: func(a *report.Activity, n int, _ int64) { a.LeadsCreated = n },
	},
	{
		name: "leads_converted",
		query: `SELECT assigned_to, COUNT(*), 0 FROM lead
			WHERE company_id = ? AND status = ? AND converted_at >= ? AND converted_at < ? GROUP BY assigned_to`,
		args:  func(c, f, t string) []any { return []any{c, lead.StatusCustomer, f, t} },
		apply: func(a *report.Activity, n int, _ int64) { a.LeadsConverted = n },
	},
	{
		name: "followups_completed",
		query: `SELECT assigned_to, COUNT(*), 0 FROM follow_up
			WHERE company_id = ? AND status = ? AND completed_at >= ? AND completed_at < ? GROUP BY assigned_to`,
		args:  func(c, f, t string) []any { return []any{c, followup.StatusDone, f, t} },
		apply: func(a *report.Activity, n int, _ int64) { a.FollowUpsCompleted = n },
	},
	{
		name: "deals_won",
		query: `SELECT owner_id, COUNT(*), CAST(COALESCE(SUM(value), 0) AS BIGINT) FROM deal
			WHERE company_id = ? AND status = ? AND closed_at >= ? AND closed_at < ? GROUP BY owner_id`,
		args: func(c, f, t string) []any { return []any{c, deal.StatusWon, f, t} },
		apply: func(a *report.Activity, n int, sum int64) {
			a.DealsWon = n
			a.RevenueWon = sum
		},
	},
	{
		name: "visits_completed",
		query: `SELECT assigned_to, COUNT(*), 0 FROM ams_visit
			WHERE company_id = ? AND status = ? AND completed_at >= ? AND completed_at < ? GROUP BY assigned_to`,
		args:  func(c, f, t string) []any { return []any{c, ams.StatusCompleted, f, t} },
		apply: func(a *report.Activity, n int, _ int64) { a.VisitsCompleted = n },
	},
}

// Activity runs one GROUP BY per source table and merges the counts by account.
// PRE: from < to
func (s *SQLStore) Activity(ctx context.Context, companyID string, from, to time.Time) (map[string]*report.Activity, error) {
	f, t := storage.FormatTime(from), storage.FormatTime(to)
	out := make(map[string]*report.Activity)
	for _, q := range activityQueries {
		if err := s.mergeActivity(ctx, q, q.args(companyID, f, t), out); err != nil {
			return nil, fmt.Errorf("%s: %w", q.name, err)
		}
	}
	return out, nil
}

func (s *SQLStore) mergeActivity(ctx context.Context, q activityQuery, args []any, out map[string]*report.Activity) error {
	rows, err := s.db.QueryContext(ctx, q.query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var accountID string
		var n int
		var sum int64
		if err := rows.Scan(&accountID, &n, &sum); err != nil {
			return err
		}
		if accountID == "" {
			continue
		}
		a, ok := out[accountID]
		if !ok {
			a = &report.Activity{AccountID: accountID}
			out[accountID] = a
		}
		q.apply(a, n, sum)
	}
	return rows.Err()
}

// Dashboard returns the dashboard figures for the company or one account.
func (s *SQLStore) Dashboard(ctx context.Context, companyID, accountID string, now time.Time) (report.Dashboard, error) {
	now = now.UTC()
	d := report.Dashboard{LeadsByStatus: make(map[string]int), GeneratedAt: now}
	for _, st := range lead.ValidStatuses {
		d.LeadsByStatus[st] = 0
	}

	scope := func(col string) (string, []any) {
		if accountID == "" {
			return "company_id = ?", []any{companyID}
		}
		return "company_id = ? AND " + col + " = ?", []any{companyID, accountID}
	}

	where, args := scope("assigned_to")
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM lead WHERE `+where+` GROUP BY status`, args...)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("leads by status: %w", err)
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			rows.Close()
			return report.Dashboard{}, err
		}
		d.LeadsByStatus[st] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report.Dashboard{}, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	where, args = scope("assigned_to")
	err = s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN scheduled_at >= ? AND scheduled_at < ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN scheduled_at < ? THEN 1 ELSE 0 END), 0)
		 FROM follow_up WHERE status = ? AND `+where,
		append([]any{storage.FormatTime(dayStart), storage.FormatTime(dayStart.AddDate(0, 0, 1)),
			storage.FormatTime(now), followup.StatusPending}, args...)...).
		Scan(&d.FollowUpsDueToday, &d.FollowUpsOverdue)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("follow-ups due: %w", err)
	}

	where, args = scope("owner_id")
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), CAST(COALESCE(SUM(value), 0) AS BIGINT), CAST(COALESCE(SUM(balance), 0) AS BIGINT) FROM deal WHERE status = ? AND `+where,
		append([]any{deal.StatusOpen}, args...)...).
		Scan(&d.OpenDeals, &d.OpenDealValue, &d.OutstandingBalance)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("open deals: %w", err)
	}

	where, args = scope("assigned_to")
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ams_visit WHERE status = ? AND scheduled_for >= ? AND scheduled_for < ? AND `+where,
		append([]any{ams.StatusScheduled, storage.FormatTime(now), storage.FormatTime(now.AddDate(0, 0, 7))}, args...)...).
		Scan(&d.VisitsNext7Days)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("upcoming visits: %w", err)
	}
	return d, nil
}

// Payments returns payments with paid_at inside [from, to), oldest first.
func (s *SQLStore) Payments(ctx context.Context, filter PaymentFilter) ([]deal.Payment, error) {
	var w storage.Where
	w.Add("company_id = ?", filter.CompanyID)
	if filter.RecordedBy != "" {
		w.Add("recorded_by = ?", filter.RecordedBy)
	}
	if !filter.From.IsZero() {
		w.Add("paid_at >= ?", storage.FormatTime(filter.From))
	}
	if !filter.To.IsZero() {
		w.Add("paid_at < ?", storage.FormatTime(filter.To))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, deal_id, amount, paid_at, method, reference, recorded_by, created_at
		 FROM deal_payment`+w.SQL()+` ORDER BY paid_at ASC, id ASC`, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []deal.Payment
	for rows.Next() {
		var p deal.Payment
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

// Package report runs the aggregate queries behind leaderboards, dashboards and payment reports.
package report

import (
	"context"
	"time"

	"crm/internal/domain/deal"
	"crm/internal/domain/report"
)

// Store answers aggregate questions across the tenant tables.
type Store interface {
	// Activity returns per-account activity counts inside [from, to).
	// POST: only accounts with at least one counted record appear
	Activity(ctx context.Context, companyID string, from, to time.Time) (map[string]*report.Activity, error)

	// Dashboard returns the dashboard figures for the company, narrowed to
	// one account's records when accountID is non-empty.
	Dashboard(ctx context.Context, companyID, accountID string, now time.Time) (report.Dashboard, error)

	// Payments returns payments with paid_at inside [from, to).
	Payments(ctx context.Context, filter PaymentFilter) ([]deal.Payment, error)
}

// PaymentFilter narrows Payments.
type PaymentFilter struct {
	CompanyID  string
	RecordedBy string
	From       time.Time
	To         time.Time
}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)

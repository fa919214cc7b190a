package projections

import (
	"context"
	"time"

	accountStore "crm/internal/adapters/storage/account"
	amsStore "crm/internal/adapters/storage/ams"
	auditStore "crm/internal/adapters/storage/audit"
	customerStore "crm/internal/adapters/storage/customer"
	dealStore "crm/internal/adapters/storage/deal"
	followupStore "crm/internal/adapters/storage/followup"
	leadStore "crm/internal/adapters/storage/lead"
	reportStore "crm/internal/adapters/storage/report"
	"crm/internal/domain/account"
	"crm/internal/domain/ams"
	"crm/internal/domain/audit"
	"crm/internal/domain/customer"
	"crm/internal/domain/deal"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
	"crm/internal/domain/outbox"
	"crm/internal/domain/report"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// LeadStore interface for lead queries.
type LeadStore interface {
	GetByID(ctx context.Context, companyID, id string) (lead.Lead, error)
	List(ctx context.Context, filter leadStore.ListFilter) ([]lead.Lead, int, error)
}

// FollowUpStore interface for follow-up queries.
type FollowUpStore interface {
	GetByID(ctx context.Context, companyID, id string) (followup.FollowUp, error)
	List(ctx context.Context, filter followupStore.ListFilter) ([]followup.FollowUp, int, error)
}

// CustomerStore interface for customer queries.
type CustomerStore interface {
	GetByID(ctx context.Context, companyID, id string) (customer.Customer, error)
	List(ctx context.Context, filter customerStore.ListFilter) ([]customer.Customer, int, error)
}

// DealStore interface for deal queries.
type DealStore interface {
	GetByID(ctx context.Context, companyID, id string) (deal.Deal, error)
	List(ctx context.Context, filter dealStore.ListFilter) ([]deal.Deal, int, error)
	ListPayments(ctx context.Context, companyID, dealID string) ([]deal.Payment, error)
}

// VisitStore interface for AMS visit queries.
type VisitStore interface {
	GetByID(ctx context.Context, companyID, id string) (ams.Visit, error)
	List(ctx context.Context, filter amsStore.ListFilter) ([]ams.Visit, int, error)
}

// AccountStore interface for employee queries.
type AccountStore interface {
	GetByID(ctx context.Context, companyID, id string) (account.Account, error)
	List(ctx context.Context, filter accountStore.ListFilter) ([]account.Account, int, error)
	ListByCompany(ctx context.Context, companyID string) ([]account.Account, error)
}

// AuditStore interface for audit trail queries.
type AuditStore interface {
	List(ctx context.Context, filter auditStore.Filter) ([]audit.Event, int, error)
}

// OutboxStore interface for outbox queries.
type OutboxStore interface {
	ListByCompany(ctx context.Context, companyID, status string, limit int) ([]outbox.Entry, error)
}

// ReportStore interface for aggregate queries.
type ReportStore interface {
	Activity(ctx context.Context, companyID string, from, to time.Time) (map[string]*report.Activity, error)
	Dashboard(ctx context.Context, companyID, accountID string, now time.Time) (report.Dashboard, error)
	Payments(ctx context.Context, filter reportStore.PaymentFilter) ([]deal.Payment, error)
}

package projections

import (
	"context"

	auditStore "crm/internal/adapters/storage/audit"
	"crm/internal/application/listutil"
	"crm/internal/domain/audit"
	"crm/internal/domain/outbox"
)

// AuditFilterKeys are the query parameters the audit trail accepts.
var AuditFilterKeys = []string{"category", "action", "actor_id", "severity", "resource_id"}

// ListAuditDeps holds dependencies for QueryListAudit.
type ListAuditDeps struct {
	AuditStore AuditStore
}

// QueryListAudit returns one page of the company's audit trail, newest first.
// PRE: caller is an admin (checked by the handler)
func QueryListAudit(ctx context.Context, query ListQuery, deps ListAuditDeps) (listutil.Page[audit.Event], error) {
	f := query.Params.Filters
	filter := auditStore.Filter{
		CompanyID: query.Principal.CompanyID,
		From:      query.Params.From,
		To:        query.Params.To,
	}
	if v := f["category"]; v != "" {
		c := audit.Category(v)
		filter.Category = &c
	}
	if v := f["action"]; v != "" {
		a := audit.Action(v)
		filter.Action = &a
	}
	if v := f["actor_id"]; v != "" {
		filter.ActorID = &v
	}
	if v := f["severity"]; v != "" {
		s := audit.Severity(v)
		filter.Severity = &s
	}
	if v := f["resource_id"]; v != "" {
		filter.ResourceID = &v
	}

	pp := query.Params.PageParams
	filter.Limit = pp.PerPage
	filter.Offset = (pp.Page - 1) * pp.PerPage
	events, total, err := deps.AuditStore.List(ctx, filter)
	if err != nil {
		return listutil.Page[audit.Event]{}, err
	}
	return newPage(events, pp, total), nil
}

// DefaultOutboxLimit caps the outbox listing.
const DefaultOutboxLimit = 100

// ListOutboxQuery narrows the outbox listing.
type ListOutboxQuery struct {
	CompanyID string
	Status    string // empty lists failed entries; "all" lists every entry
	Limit     int
}

// ListOutboxDeps holds dependencies for QueryListOutbox.
type ListOutboxDeps struct {
	OutboxStore OutboxStore
}

// QueryListOutbox returns a company's deferred emails, failed ones by default.
func QueryListOutbox(ctx context.Context, query ListOutboxQuery, deps ListOutboxDeps) ([]outbox.Entry, error) {
	limit := query.Limit
	if limit <= 0 || limit > DefaultOutboxLimit {
		limit = DefaultOutboxLimit
	}
	status := query.Status
	switch status {
	case "":
		status = outbox.StatusFailed
	case "all":
		status = ""
	}
	entries, err := deps.OutboxStore.ListByCompany(ctx, query.CompanyID, status, limit)
	if err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}

package projections

import (
	"context"
	"fmt"
	"time"

	"crm/internal/adapters/cache"
	"crm/internal/domain/account"
	"crm/internal/domain/report"
)

// DefaultDashboardTTL is how long a computed dashboard is served from cache
// when no TTL is configured.
const DefaultDashboardTTL = time.Minute

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	ReportStore ReportStore
	Cache       *cache.Loader // optional: nil computes on every call
	TTL         time.Duration
}

// QueryGetDashboard returns the dashboard for the caller.
// PRE: p is authenticated
// POST: admins see company-wide figures, employees only their own records
// INVARIANT: cached per (company, account, role)
func QueryGetDashboard(ctx context.Context, p account.Principal, deps GetDashboardDeps) (report.Dashboard, error) {
	scope := p.ScopeOwner("")
	load := func(ctx context.Context) (report.Dashboard, error) {
		return deps.ReportStore.Dashboard(ctx, p.CompanyID, scope, timeNow())
	}
	if deps.Cache == nil {
		return load(ctx)
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultDashboardTTL
	}
	key := fmt.Sprintf("dashboard:%s:%s:%s", p.CompanyID, p.AccountID, p.Role)
	return cache.Load(ctx, deps.Cache, key, ttl, load)
}

package projections

import (
	"context"
	"strings"

	"crm/internal/adapters/storage"
	amsStore "crm/internal/adapters/storage/ams"
	"crm/internal/application/listutil"
	"crm/internal/domain/ams"
)

// VisitFilterKeys are the query parameters the AMS list accepts.
var VisitFilterKeys = []string{"customer_id", "assigned_to", "status", "due"}

// ListVisitsDeps holds dependencies for QueryListVisits.
type ListVisitsDeps struct {
	VisitStore VisitStore
}

// QueryListVisits returns one page of AMS visits visible to the caller.
// A due filter narrows to scheduled visits inside the due window.
func QueryListVisits(ctx context.Context, query ListQuery, deps ListVisitsDeps) (listutil.Page[ams.Visit], error) {
	f := query.Params.Filters
	status := strings.ToLower(f["status"])
	from, to := query.Params.From, query.Params.To
	if due := strings.ToLower(f["due"]); due != "" {
		dueFrom, dueTo, err := ams.DueWindow(due, timeNow())
		if err != nil {
			return listutil.Page[ams.Visit]{}, err
		}
		from, to = intersect(from, to, dueFrom, dueTo)
		status = ams.StatusScheduled
	}

	pp := query.Params.PageParams
	items, total, err := deps.VisitStore.List(ctx, amsStore.ListFilter{
		CompanyID:  query.Principal.CompanyID,
		CustomerID: f["customer_id"],
		AssignedTo: query.Principal.ScopeOwner(f["assigned_to"]),
		Status:     status,
		From:       from,
		To:         to,
		Sort:       query.Params.Sort,
		Dir:        query.Params.Dir,
		Limit:      pp.PerPage,
		Offset:     (pp.Page - 1) * pp.PerPage,
	})
	if err != nil {
		return listutil.Page[ams.Visit]{}, err
	}
	return newPage(items, pp, total), nil
}

// GetVisitDeps holds dependencies for QueryGetVisit.
type GetVisitDeps struct {
	VisitStore VisitStore
}

// QueryGetVisit returns one visit visible to the caller.
func QueryGetVisit(ctx context.Context, query GetQuery, deps GetVisitDeps) (ams.Visit, error) {
	v, err := deps.VisitStore.GetByID(ctx, query.Principal.CompanyID, query.ID)
	if err != nil {
		return ams.Visit{}, err
	}
	if !query.Principal.CanSee(v.AssignedTo) {
		return ams.Visit{}, storage.NotFound("visit")
	}
	return v, nil
}

package projections

import (
	"context"
	"strings"
	"time"

	"crm/internal/adapters/storage"
	followupStore "crm/internal/adapters/storage/followup"
	"crm/internal/application/listutil"
	"crm/internal/domain/followup"
)

// FollowUpFilterKeys are the query parameters the follow-up list accepts.
var FollowUpFilterKeys = []string{"lead_id", "assigned_to", "status", "due"}

// ListFollowUpsDeps holds dependencies for QueryListFollowUps.
type ListFollowUpsDeps struct {
	FollowUpStore FollowUpStore
}

// QueryListFollowUps returns one page of follow-ups visible to the caller.
// A due filter narrows to pending follow-ups inside the due window, intersected
// with any from/to range.
// POST: employees only ever see follow-ups assigned to them
func QueryListFollowUps(ctx context.Context, query ListQuery, deps ListFollowUpsDeps) (listutil.Page[followup.FollowUp], error) {
	f := query.Params.Filters
	status := strings.ToLower(f["status"])
	from, to := query.Params.From, query.Params.To
	if due := strings.ToLower(f["due"]); due != "" {
		dueFrom, dueTo, err := followup.DueWindow(due, timeNow())
		if err != nil {
			return listutil.Page[followup.FollowUp]{}, err
		}
		from, to = intersect(from, to, dueFrom, dueTo)
		status = followup.StatusPending
	}

	pp := query.Params.PageParams
	items, total, err := deps.FollowUpStore.List(ctx, followupStore.ListFilter{
		CompanyID:  query.Principal.CompanyID,
		LeadID:     f["lead_id"],
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
		return listutil.Page[followup.FollowUp]{}, err
	}
	return newPage(items, pp, total), nil
}

// GetFollowUpDeps holds dependencies for QueryGetFollowUp.
type GetFollowUpDeps struct {
	FollowUpStore FollowUpStore
}

// QueryGetFollowUp returns one follow-up visible to the caller.
func QueryGetFollowUp(ctx context.Context, query GetQuery, deps GetFollowUpDeps) (followup.FollowUp, error) {
	fu, err := deps.FollowUpStore.GetByID(ctx, query.Principal.CompanyID, query.ID)
	if err != nil {
		return followup.FollowUp{}, err
	}
	if !query.Principal.CanSee(fu.AssignedTo) {
		return followup.FollowUp{}, storage.NotFound("follow-up")
	}
	return fu, nil
}

// intersect narrows [from, to) by [from2, to2). Zero bounds are open.
func intersect(from, to, from2, to2 time.Time) (time.Time, time.Time) {
	if from.IsZero() || (!from2.IsZero() && from2.After(from)) {
		from = from2
	}
	if to.IsZero() || (!to2.IsZero() && to2.Before(to)) {
		to = to2
	}
	return from, to
}

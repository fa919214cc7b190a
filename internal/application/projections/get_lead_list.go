package projections

import (
	"context"
	"strings"

	"crm/internal/adapters/storage"
	followupStore "crm/internal/adapters/storage/followup"
	leadStore "crm/internal/adapters/storage/lead"
	"crm/internal/application/listutil"
	"crm/internal/domain/account"
	"crm/internal/domain/followup"
	"crm/internal/domain/lead"
)

// LeadFilterKeys are the query parameters the lead list accepts besides q.
var LeadFilterKeys = []string{"status", "source", "assigned_to"}

// ListQuery carries the caller and the parsed list parameters.
type ListQuery struct {
	Principal account.Principal
	Params    listutil.ListParams
}

// ListLeadsDeps holds dependencies for QueryListLeads.
type ListLeadsDeps struct {
	LeadStore LeadStore
}

// QueryListLeads returns one page of the leads visible to the caller.
// PRE: Params parsed with listutil.ParseListParams
// POST: employees only ever see leads assigned to them
func QueryListLeads(ctx context.Context, query ListQuery, deps ListLeadsDeps) (listutil.Page[lead.Lead], error) {
	f := query.Params.Filters
	status := strings.ToUpper(f["status"])
	if status != "" && !lead.IsValidStatus(status) {
		return listutil.Page[lead.Lead]{}, lead.ErrInvalidStatus
	}
	source := strings.ToLower(f["source"])
	if source != "" && !lead.IsValidSource(source) {
		return listutil.Page[lead.Lead]{}, lead.ErrInvalidSource
	}

	pp := query.Params.PageParams
	leads, total, err := deps.LeadStore.List(ctx, leadStore.ListFilter{
		CompanyID:  query.Principal.CompanyID,
		AssignedTo: query.Principal.ScopeOwner(f["assigned_to"]),
		Status:     status,
		Source:     source,
		Search:     query.Params.Search,
		From:       query.Params.From,
		To:         query.Params.To,
		Sort:       query.Params.Sort,
		Dir:        query.Params.Dir,
		Limit:      pp.PerPage,
		Offset:     (pp.Page - 1) * pp.PerPage,
	})
	if err != nil {
		return listutil.Page[lead.Lead]{}, err
	}
	return newPage(leads, pp, total), nil
}

// GetQuery identifies one record for the caller.
type GetQuery struct {
	Principal account.Principal
	ID        string
}

// LeadDetail is a lead with its follow-up history.
type LeadDetail struct {
	Lead      lead.Lead
	FollowUps []followup.FollowUp
}

// GetLeadDeps holds dependencies for QueryGetLead.
type GetLeadDeps struct {
	LeadStore     LeadStore
	FollowUpStore FollowUpStore
}

// QueryGetLead returns a lead and its follow-ups, oldest first.
// POST: a lead the caller may not see is reported as not found
func QueryGetLead(ctx context.Context, query GetQuery, deps GetLeadDeps) (LeadDetail, error) {
	l, err := deps.LeadStore.GetByID(ctx, query.Principal.CompanyID, query.ID)
	if err != nil {
		return LeadDetail{}, err
	}
	if !query.Principal.CanSee(l.AssignedTo) {
		return LeadDetail{}, storage.NotFound("lead")
	}
	fus, _, err := deps.FollowUpStore.List(ctx, followupStore.ListFilter{
		CompanyID: l.CompanyID,
		LeadID:    l.ID,
		Sort:      "scheduled_at",
		Dir:       "asc",
	})
	if err != nil {
		return LeadDetail{}, err
	}
	return LeadDetail{Lead: l, FollowUps: nonNil(fus)}, nil
}

// newPage wraps one page of rows with its pagination metadata.
func newPage[T any](items []T, pp listutil.PageParams, total int) listutil.Page[T] {
	return listutil.Page[T]{
		Items:    nonNil(items),
		PageInfo: listutil.NewPageInfo(pp.Page, pp.PerPage, total),
	}
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

package projections

import (
	"context"
	"strings"

	"crm/internal/adapters/storage"
	dealStore "crm/internal/adapters/storage/deal"
	"crm/internal/application/listutil"
	"crm/internal/domain/deal"
)

// DealFilterKeys are the query parameters the deal list accepts.
var DealFilterKeys = []string{"customer_id", "owner", "status"}

// ListDealsDeps holds dependencies for QueryListDeals.
type ListDealsDeps struct {
	DealStore DealStore
}

// QueryListDeals returns one page of deals visible to the caller.
// POST: employees only ever see deals they own
func QueryListDeals(ctx context.Context, query ListQuery, deps ListDealsDeps) (listutil.Page[deal.Deal], error) {
	f := query.Params.Filters
	status := strings.ToLower(f["status"])
	if status != "" && !deal.IsValidStatus(status) {
		return listutil.Page[deal.Deal]{}, deal.ErrInvalidStatus
	}
	pp := query.Params.PageParams
	items, total, err := deps.DealStore.List(ctx, dealStore.ListFilter{
		CompanyID:  query.Principal.CompanyID,
		CustomerID: f["customer_id"],
		OwnerID:    query.Principal.ScopeOwner(f["owner"]),
		Status:     status,
		From:       query.Params.From,
		To:         query.Params.To,
		Sort:       query.Params.Sort,
		Dir:        query.Params.Dir,
		Limit:      pp.PerPage,
		Offset:     (pp.Page - 1) * pp.PerPage,
	})
	if err != nil {
		return listutil.Page[deal.Deal]{}, err
	}
	return newPage(items, pp, total), nil
}

// DealDetail is a deal with its payment history.
type DealDetail struct {
	Deal     deal.Deal
	Paid     int64
	Payments []deal.Payment
}

// GetDealDeps holds dependencies for QueryGetDeal.
type GetDealDeps struct {
	DealStore DealStore
}

// QueryGetDeal returns a deal and its payments.
// INVARIANT: Paid == Value - Balance
func QueryGetDeal(ctx context.Context, query GetQuery, deps GetDealDeps) (DealDetail, error) {
	d, err := deps.DealStore.GetByID(ctx, query.Principal.CompanyID, query.ID)
	if err != nil {
		return DealDetail{}, err
	}
	if !query.Principal.CanSee(d.OwnerID) {
		return DealDetail{}, storage.NotFound("deal")
	}
	payments, err := deps.DealStore.ListPayments(ctx, d.CompanyID, d.ID)
	if err != nil {
		return DealDetail{}, err
	}
	return DealDetail{Deal: d, Paid: d.Paid(), Payments: nonNil(payments)}, nil
}

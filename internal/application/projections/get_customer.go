package projections

import (
	"context"

	amsStore "crm/internal/adapters/storage/ams"
	customerStore "crm/internal/adapters/storage/customer"
	dealStore "crm/internal/adapters/storage/deal"
	"crm/internal/application/listutil"
	"crm/internal/domain/ams"
	"crm/internal/domain/customer"
	"crm/internal/domain/deal"
)

// CustomerFilterKeys are the query parameters the customer list accepts besides q.
var CustomerFilterKeys = []string{"account_manager"}

// ListCustomersDeps holds dependencies for QueryListCustomers.
type ListCustomersDeps struct {
	CustomerStore CustomerStore
}

// QueryListCustomers returns one page of the company's customers.
// Customers are readable company-wide.
func QueryListCustomers(ctx context.Context, query ListQuery, deps ListCustomersDeps) (listutil.Page[customer.Customer], error) {
	pp := query.Params.PageParams
	items, total, err := deps.CustomerStore.List(ctx, customerStore.ListFilter{
		CompanyID:      query.Principal.CompanyID,
		AccountManager: query.Params.Filters["account_manager"],
		Search:         query.Params.Search,
		Sort:           query.Params.Sort,
		Dir:            query.Params.Dir,
		Limit:          pp.PerPage,
		Offset:         (pp.Page - 1) * pp.PerPage,
	})
	if err != nil {
		return listutil.Page[customer.Customer]{}, err
	}
	return newPage(items, pp, total), nil
}

// CustomerDetail is a customer with the deals and upcoming visits the caller may see.
type CustomerDetail struct {
	Customer       customer.Customer
	Deals          []deal.Deal
	UpcomingVisits []ams.Visit
}

// GetCustomerDeps holds dependencies for QueryGetCustomer.
type GetCustomerDeps struct {
	CustomerStore CustomerStore
	DealStore     DealStore
	VisitStore    VisitStore
}

// QueryGetCustomer returns a customer with its deals and scheduled visits from now on.
// POST: employees see only their own deals and visits
func QueryGetCustomer(ctx context.Context, query GetQuery, deps GetCustomerDeps) (CustomerDetail, error) {
	p := query.Principal
	c, err := deps.CustomerStore.GetByID(ctx, p.CompanyID, query.ID)
	if err != nil {
		return CustomerDetail{}, err
	}
	deals, _, err := deps.DealStore.List(ctx, dealStore.ListFilter{
		CompanyID:  p.CompanyID,
		CustomerID: c.ID,
		OwnerID:    p.ScopeOwner(""),
		Sort:       "created_at",
		Dir:        "desc",
	})
	if err != nil {
		return CustomerDetail{}, err
	}
	visits, _, err := deps.VisitStore.List(ctx, amsStore.ListFilter{
		CompanyID:  p.CompanyID,
		CustomerID: c.ID,
		AssignedTo: p.ScopeOwner(""),
		Status:     ams.StatusScheduled,
		From:       timeNow().UTC(),
		Sort:       "scheduled_for",
		Dir:        "asc",
	})
	if err != nil {
		return CustomerDetail{}, err
	}
	return CustomerDetail{Customer: c, Deals: nonNil(deals), UpcomingVisits: nonNil(visits)}, nil
}

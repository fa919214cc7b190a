package projections

import (
	"context"
	"strings"
	"time"

	accountStore "crm/internal/adapters/storage/account"
	"crm/internal/application/listutil"
	"crm/internal/domain/account"
	"crm/internal/domain/company"
)

// EmployeeFilterKeys are the query parameters the employee list accepts besides q.
var EmployeeFilterKeys = []string{"role", "status"}

// Employee status labels.
const (
	EmployeeActive   = "active"
	EmployeeLocked   = "locked"
	EmployeeDisabled = "disabled"
)

// Employee is an account as shown to callers. It never carries the password hash.
type Employee struct {
	ID                  string
	CompanyID           string
	Name                string
	Email               string
	Phone               string
	Designation         string
	Role                string
	Status              string
	IsActive            bool
	Disabled            bool
	FailedLoginAttempts int
	LastLoginAt         time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EmployeeFromAccount builds the caller-facing view of a.
// POST: Status is disabled, locked or active, in that precedence
func EmployeeFromAccount(a account.Account) Employee {
	status := EmployeeActive
	switch {
	case a.Disabled:
		status = EmployeeDisabled
	case !a.IsActive:
		status = EmployeeLocked
	}
	return Employee{
		ID:                  a.ID,
		CompanyID:           a.CompanyID,
		Name:                a.Name,
		Email:               a.Email,
		Phone:               a.Phone,
		Designation:         a.Designation,
		Role:                a.Role,
		Status:              status,
		IsActive:            a.IsActive,
		Disabled:            a.Disabled,
		FailedLoginAttempts: a.FailedLoginAttempts,
		LastLoginAt:         a.LastLoginAt,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

// ListEmployeesDeps holds dependencies for QueryListEmployees.
type ListEmployeesDeps struct {
	AccountStore AccountStore
}

// QueryListEmployees returns one page of the company's accounts.
// PRE: caller is an admin (checked by the handler)
func QueryListEmployees(ctx context.Context, query ListQuery, deps ListEmployeesDeps) (listutil.Page[Employee], error) {
	f := query.Params.Filters
	pp := query.Params.PageParams
	accts, total, err := deps.AccountStore.List(ctx, accountStore.ListFilter{
		CompanyID: query.Principal.CompanyID,
		Role:      strings.ToLower(f["role"]),
		Status:    strings.ToLower(f["status"]),
		Search:    query.Params.Search,
		Sort:      query.Params.Sort,
		Dir:       query.Params.Dir,
		Limit:     pp.PerPage,
		Offset:    (pp.Page - 1) * pp.PerPage,
	})
	if err != nil {
		return listutil.Page[Employee]{}, err
	}
	out := make([]Employee, 0, len(accts))
	for _, a := range accts {
		out = append(out, EmployeeFromAccount(a))
	}
	return newPage(out, pp, total), nil
}

// GetEmployeeDeps holds dependencies for QueryGetEmployee.
type GetEmployeeDeps struct {
	AccountStore AccountStore
}

// QueryGetEmployee returns one account of the caller's company.
func QueryGetEmployee(ctx context.Context, query GetQuery, deps GetEmployeeDeps) (Employee, error) {
	a, err := deps.AccountStore.GetByID(ctx, query.Principal.CompanyID, query.ID)
	if err != nil {
		return Employee{}, err
	}
	return EmployeeFromAccount(a), nil
}

// CompanyStore interface for company queries.
type CompanyStore interface {
	GetByID(ctx context.Context, id string) (company.Company, error)
}

// Me is the signed-in account and its company.
type Me struct {
	Account Employee
	Company company.Company
}

// MeDeps holds dependencies for QueryMe.
type MeDeps struct {
	AccountStore AccountStore
	CompanyStore CompanyStore
}

// QueryMe returns the caller's account and company.
func QueryMe(ctx context.Context, p account.Principal, deps MeDeps) (Me, error) {
	a, err := deps.AccountStore.GetByID(ctx, p.CompanyID, p.AccountID)
	if err != nil {
		return Me{}, err
	}
	c, err := deps.CompanyStore.GetByID(ctx, p.CompanyID)
	if err != nil {
		return Me{}, err
	}
	return Me{Account: EmployeeFromAccount(a), Company: c}, nil
}

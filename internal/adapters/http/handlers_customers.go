package web

import (
	"net/http"

	customerStore "crm/internal/adapters/storage/customer"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
)

type customerRequest struct {
	Name           string `json:"Name"`
	Email          string `json:"Email"`
	Phone          string `json:"Phone"`
	Organization   string `json:"Organization"`
	Address        string `json:"Address"`
	TaxID          string `json:"TaxID"`
	Notes          string `json:"Notes"`
	AccountManager string `json:"AccountManager"`
}

func (in customerRequest) fields() orchestrators.CustomerFields {
	return orchestrators.CustomerFields{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Organization: in.Organization,
		Address:      in.Address,
		TaxID:        in.TaxID,
		Notes:        in.Notes,
	}
}

func customerDeps() orchestrators.CustomerDeps {
	return orchestrators.CustomerDeps{
		CustomerStore: stores.CustomerStore,
		AccountStore:  stores.AccountStore,
		Dependents:    []orchestrators.CustomerRecordCounter{stores.DealStore, stores.VisitStore},
		Audit:         stores.AuditStore,
	}
}

// handleCustomers handles GET/POST /api/customers.
func handleCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		params, ok := parseList(w, r, customerStore.SortColumns, projections.CustomerFilterKeys)
		if !ok {
			return
		}
		page, err := projections.QueryListCustomers(ctx, projections.ListQuery{Principal: sess.Principal(), Params: params},
			projections.ListCustomersDeps{CustomerStore: stores.CustomerStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case "POST":
		var input customerRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		c, err := orchestrators.ExecuteCreateCustomer(ctx, orchestrators.CreateCustomerInput{
			Principal:      sess.Principal(),
			Fields:         input.fields(),
			AccountManager: input.AccountManager,
		}, customerDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCustomer handles GET/PUT/DELETE /api/customers/{id}.
// GET includes the customer's deals and upcoming visits.
func handleCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case "GET":
		detail, err := projections.QueryGetCustomer(ctx, projections.GetQuery{Principal: sess.Principal(), ID: id},
			projections.GetCustomerDeps{
				CustomerStore: stores.CustomerStore,
				DealStore:     stores.DealStore,
				VisitStore:    stores.VisitStore,
			})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case "PUT":
		var input customerRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		c, err := orchestrators.ExecuteUpdateCustomer(ctx, orchestrators.UpdateCustomerInput{
			Principal:      sess.Principal(),
			ID:             id,
			Fields:         input.fields(),
			AccountManager: input.AccountManager,
		}, customerDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)

	case "DELETE":
		if err := orchestrators.ExecuteDeleteCustomer(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, customerDeps()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

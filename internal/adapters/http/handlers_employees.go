package web

import (
	"net/http"

	accountStore "crm/internal/adapters/storage/account"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
)

func manageEmployeeDeps() orchestrators.ManageEmployeeDeps {
	return orchestrators.ManageEmployeeDeps{
		AccountStore: stores.AccountStore,
		OpenWork: []orchestrators.OpenWorkCounter{
			stores.LeadStore.CountOpenAssigned,
			stores.FollowUpStore.CountPendingAssigned,
			stores.DealStore.CountOpenOwned,
			stores.VisitStore.CountScheduledAssigned,
		},
		Audit: stores.AuditStore,
	}
}

// handleEmployees handles GET/POST /api/employees (admin only).
func handleEmployees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		params, ok := parseList(w, r, accountStore.SortColumns, projections.EmployeeFilterKeys)
		if !ok {
			return
		}
		page, err := projections.QueryListEmployees(ctx, projections.ListQuery{Principal: sess.Principal(), Params: params},
			projections.ListEmployeesDeps{AccountStore: stores.AccountStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case "POST":
		var input struct {
			Name        string `json:"Name"`
			Email       string `json:"Email"`
			Phone       string `json:"Phone"`
			Designation string `json:"Designation"`
			Role        string `json:"Role"`
			Password    string `json:"Password"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		acct, err := orchestrators.ExecuteCreateEmployee(ctx, orchestrators.CreateEmployeeInput{
			Principal:   sess.Principal(),
			Name:        input.Name,
			Email:       input.Email,
			Phone:       input.Phone,
			Designation: input.Designation,
			Role:        input.Role,
			Password:    input.Password,
		}, orchestrators.CreateEmployeeDeps{
			AccountStore: stores.AccountStore,
			CompanyStore: stores.CompanyStore,
			Mail:         orchestrators.MailDeps{Sender: emailSender, Outbox: stores.OutboxStore},
			LoginURL:     opts.BaseURL,
			Audit:        stores.AuditStore,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, projections.EmployeeFromAccount(acct))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEmployee handles GET/PUT/DELETE /api/employees/{id} (admin only).
// Deleting an account ends its sessions and tokens.
func handleEmployee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case "GET":
		emp, err := projections.QueryGetEmployee(ctx, projections.GetQuery{Principal: sess.Principal(), ID: id},
			projections.GetEmployeeDeps{AccountStore: stores.AccountStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, emp)

	case "PUT":
		var input struct {
			Name        string `json:"Name"`
			Phone       string `json:"Phone"`
			Designation string `json:"Designation"`
			Role        string `json:"Role"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		before, err := stores.AccountStore.GetByID(ctx, sess.CompanyID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		acct, err := orchestrators.ExecuteUpdateEmployee(ctx, orchestrators.UpdateEmployeeInput{
			Principal:   sess.Principal(),
			ID:          id,
			Name:        input.Name,
			Phone:       input.Phone,
			Designation: input.Designation,
			Role:        input.Role,
		}, manageEmployeeDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		// Sessions carry the role, so a role change signs the account out.
		if acct.Role != before.Role {
			revokeAccess(acct.ID)
		}
		writeJSON(w, http.StatusOK, projections.EmployeeFromAccount(acct))

	case "DELETE":
		err := orchestrators.ExecuteDeleteEmployee(ctx, orchestrators.EmployeeActionInput{Principal: sess.Principal(), ID: id},
			manageEmployeeDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		revokeAccess(id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleEmployeeAction handles POST /api/employees/{id}/{action} for disable, enable and unlock.
func handleEmployeeAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	input := orchestrators.EmployeeActionInput{Principal: sess.Principal(), ID: r.PathValue("id")}

	var (
		emp projections.Employee
		err error
	)
	switch r.PathValue("action") {
	case "disable":
		acct, aerr := orchestrators.ExecuteSetEmployeeDisabled(ctx, input, true, manageEmployeeDeps())
		emp, err = projections.EmployeeFromAccount(acct), aerr
		if err == nil {
			revokeAccess(acct.ID)
		}
	case "enable":
		acct, aerr := orchestrators.ExecuteSetEmployeeDisabled(ctx, input, false, manageEmployeeDeps())
		emp, err = projections.EmployeeFromAccount(acct), aerr
	case "unlock":
		acct, aerr := orchestrators.ExecuteUnlockEmployee(ctx, input, manageEmployeeDeps())
		emp, err = projections.EmployeeFromAccount(acct), aerr
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

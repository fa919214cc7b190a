package web

import (
	"net/http"

	amsStore "crm/internal/adapters/storage/ams"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
)

type visitRequest struct {
	CustomerID    string `json:"CustomerID"`
	DealID        string `json:"DealID"`
	AssignedTo    string `json:"AssignedTo"`
	ServiceType   string `json:"ServiceType"`
	Frequency     string `json:"Frequency"`
	ContractStart string `json:"ContractStart"`
	ContractEnd   string `json:"ContractEnd"`
	ScheduledFor  string `json:"ScheduledFor"`
}

func (in visitRequest) fields(w http.ResponseWriter) (orchestrators.VisitFields, bool) {
	start, ok := parseTime(w, "ContractStart", in.ContractStart)
	if !ok {
		return orchestrators.VisitFields{}, false
	}
	end, ok := parseTime(w, "ContractEnd", in.ContractEnd)
	if !ok {
		return orchestrators.VisitFields{}, false
	}
	at, ok := parseTime(w, "ScheduledFor", in.ScheduledFor)
	if !ok {
		return orchestrators.VisitFields{}, false
	}
	return orchestrators.VisitFields{
		ServiceType:   in.ServiceType,
		Frequency:     in.Frequency,
		ContractStart: start,
		ContractEnd:   end,
		ScheduledFor:  at,
	}, true
}

func visitDeps() orchestrators.VisitDeps {
	return orchestrators.VisitDeps{
		VisitStore:    stores.VisitStore,
		CustomerStore: stores.CustomerStore,
		DealStore:     stores.DealStore,
		AccountStore:  stores.AccountStore,
		Audit:         stores.AuditStore,
	}
}

// handleVisits handles GET/POST /api/ams.
func handleVisits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		params, ok := parseList(w, r, amsStore.SortColumns, projections.VisitFilterKeys)
		if !ok {
			return
		}
		page, err := projections.QueryListVisits(ctx, projections.ListQuery{Principal: sess.Principal(), Params: params},
			projections.ListVisitsDeps{VisitStore: stores.VisitStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case "POST":
		var input visitRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		fields, ok := input.fields(w)
		if !ok {
			return
		}
		v, err := orchestrators.ExecuteCreateVisit(ctx, orchestrators.CreateVisitInput{
			Principal:  sess.Principal(),
			CustomerID: input.CustomerID,
			DealID:     input.DealID,
			AssignedTo: input.AssignedTo,
			Fields:     fields,
		}, visitDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVisit handles GET/PUT/DELETE /api/ams/{id}.
func handleVisit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case "GET":
		v, err := projections.QueryGetVisit(ctx, projections.GetQuery{Principal: sess.Principal(), ID: id},
			projections.GetVisitDeps{VisitStore: stores.VisitStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)

	case "PUT":
		var input visitRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		fields, ok := input.fields(w)
		if !ok {
			return
		}
		v, err := orchestrators.ExecuteUpdateVisit(ctx, orchestrators.UpdateVisitInput{
			Principal:  sess.Principal(),
			ID:         id,
			AssignedTo: input.AssignedTo,
			Fields:     fields,
		}, visitDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)

	case "DELETE":
		if err := orchestrators.ExecuteDeleteVisit(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, visitDeps()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVisitAction handles POST /api/ams/{id}/{action} for complete and cancel.
// Completing a recurring visit also returns the next scheduled one, if any.
func handleVisitAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.PathValue("action") {
	case "complete":
		var input struct {
			Remarks string `json:"Remarks"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		result, err := orchestrators.ExecuteCompleteVisit(ctx, orchestrators.CompleteVisitInput{
			Principal: sess.Principal(),
			ID:        id,
			Remarks:   input.Remarks,
		}, visitDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "cancel":
		v, err := orchestrators.ExecuteCancelVisit(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, visitDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)

	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

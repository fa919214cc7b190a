package web

import (
	"net/http"

	followupStore "crm/internal/adapters/storage/followup"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
)

func followUpDeps() orchestrators.FollowUpDeps {
	return orchestrators.FollowUpDeps{
		FollowUpStore: stores.FollowUpStore,
		LeadStore:     stores.LeadStore,
		AccountStore:  stores.AccountStore,
		Audit:         stores.AuditStore,
	}
}

// handleFollowUps handles GET/POST /api/followups.
func handleFollowUps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		params, ok := parseList(w, r, followupStore.SortColumns, projections.FollowUpFilterKeys)
		if !ok {
			return
		}
		page, err := projections.QueryListFollowUps(ctx, projections.ListQuery{Principal: sess.Principal(), Params: params},
			projections.ListFollowUpsDeps{FollowUpStore: stores.FollowUpStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case "POST":
		var input struct {
			LeadID      string `json:"LeadID"`
			AssignedTo  string `json:"AssignedTo"`
			ScheduledAt string `json:"ScheduledAt"`
			Mode        string `json:"Mode"`
			Note        string `json:"Note"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		at, ok := parseTime(w, "ScheduledAt", input.ScheduledAt)
		if !ok {
			return
		}
		fu, err := orchestrators.ExecuteCreateFollowUp(ctx, orchestrators.CreateFollowUpInput{
			Principal:   sess.Principal(),
			LeadID:      input.LeadID,
			AssignedTo:  input.AssignedTo,
			ScheduledAt: at,
			Mode:        input.Mode,
			Note:        input.Note,
		}, followUpDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, fu)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFollowUp handles GET/PUT/DELETE /api/followups/{id}.
func handleFollowUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case "GET":
		fu, err := projections.QueryGetFollowUp(ctx, projections.GetQuery{Principal: sess.Principal(), ID: id},
			projections.GetFollowUpDeps{FollowUpStore: stores.FollowUpStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fu)

	case "PUT":
		var input struct {
			ScheduledAt string `json:"ScheduledAt"`
			Mode        string `json:"Mode"`
			Note        string `json:"Note"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		at, ok := parseTime(w, "ScheduledAt", input.ScheduledAt)
		if !ok {
			return
		}
		fu, err := orchestrators.ExecuteUpdateFollowUp(ctx, orchestrators.UpdateFollowUpInput{
			Principal:   sess.Principal(),
			ID:          id,
			ScheduledAt: at,
			Mode:        input.Mode,
			Note:        input.Note,
		}, followUpDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fu)

	case "DELETE":
		if err := orchestrators.ExecuteDeleteFollowUp(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, followUpDeps()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFollowUpAction handles POST /api/followups/{id}/{action} for complete and cancel.
func handleFollowUpAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.PathValue("action") {
	case "complete":
		var input struct {
			Outcome        string `json:"Outcome"`
			NextFollowUpAt string `json:"NextFollowUpAt"`
			NextNote       string `json:"NextNote"`
		}
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		next, ok := parseTime(w, "NextFollowUpAt", input.NextFollowUpAt)
		if !ok {
			return
		}
		result, err := orchestrators.ExecuteCompleteFollowUp(ctx, orchestrators.CompleteFollowUpInput{
			Principal:      sess.Principal(),
			ID:             id,
			Outcome:        input.Outcome,
			NextFollowUpAt: next,
			NextNote:       input.NextNote,
		}, followUpDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "cancel":
		fu, err := orchestrators.ExecuteCancelFollowUp(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, followUpDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fu)

	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

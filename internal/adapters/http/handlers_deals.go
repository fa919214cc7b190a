package web

import (
	"net/http"

	dealStore "crm/internal/adapters/storage/deal"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
)

// dealRequest carries money in minor currency units.
type dealRequest struct {
	CustomerID        string `json:"CustomerID"`
	OwnerID           string `json:"OwnerID"`
	Title             string `json:"Title"`
	Value             int64  `json:"Value"`
	ExpectedCloseDate string `json:"ExpectedCloseDate"`
	Notes             string `json:"Notes"`
}

func (in dealRequest) fields(w http.ResponseWriter) (orchestrators.DealFields, bool) {
	closeDate, ok := parseTime(w, "ExpectedCloseDate", in.ExpectedCloseDate)
	if !ok {
		return orchestrators.DealFields{}, false
	}
	return orchestrators.DealFields{
		Title:             in.Title,
		Value:             in.Value,
		ExpectedCloseDate: closeDate,
		Notes:             in.Notes,
	}, true
}

func dealDeps() orchestrators.DealDeps {
	return orchestrators.DealDeps{
		DealStore:     stores.DealStore,
		CustomerStore: stores.CustomerStore,
		AccountStore:  stores.AccountStore,
		Audit:         stores.AuditStore,
	}
}

// handleDeals handles GET/POST /api/deals.
func handleDeals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		params, ok := parseList(w, r, dealStore.SortColumns, projections.DealFilterKeys)
		if !ok {
			return
		}
		page, err := projections.QueryListDeals(ctx, projections.ListQuery{Principal: sess.Principal(), Params: params},
			projections.ListDealsDeps{DealStore: stores.DealStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case "POST":
		var input dealRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		fields, ok := input.fields(w)
		if !ok {
			return
		}
		d, err := orchestrators.ExecuteCreateDeal(ctx, orchestrators.CreateDealInput{
			Principal:  sess.Principal(),
			CustomerID: input.CustomerID,
			OwnerID:    input.OwnerID,
			Fields:     fields,
		}, dealDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDeal handles GET/PUT/DELETE /api/deals/{id}. GET includes the payments.
func handleDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case "GET":
		detail, err := projections.QueryGetDeal(ctx, projections.GetQuery{Principal: sess.Principal(), ID: id},
			projections.GetDealDeps{DealStore: stores.DealStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case "PUT":
		var input dealRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if input.CustomerID != "" {
			http.Error(w, "a deal cannot move to another customer", http.StatusBadRequest)
			return
		}
		fields, ok := input.fields(w)
		if !ok {
			return
		}
		d, err := orchestrators.ExecuteUpdateDeal(ctx, orchestrators.UpdateDealInput{
			Principal: sess.Principal(),
			ID:        id,
			Fields:    fields,
			OwnerID:   input.OwnerID,
		}, dealDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)

	case "DELETE":
		if err := orchestrators.ExecuteDeleteDeal(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, dealDeps()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDealStatus handles POST /api/deals/{id}/status.
func handleDealStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var input struct {
		Status string `json:"Status"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	d, err := orchestrators.ExecuteChangeDealStatus(r.Context(), orchestrators.ChangeDealStatusInput{
		Principal: sess.Principal(),
		ID:        r.PathValue("id"),
		Status:    input.Status,
	}, dealDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDealPayments handles POST /api/deals/{id}/payments.
// PaidAt is optional and defaults to now.
func handleDealPayments(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var input struct {
		Amount    int64  `json:"Amount"`
		PaidAt    string `json:"PaidAt"`
		Method    string `json:"Method"`
		Reference string `json:"Reference"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	paidAt, ok := parseTime(w, "PaidAt", input.PaidAt)
	if !ok {
		return
	}
	result, err := orchestrators.ExecuteRecordPayment(r.Context(), orchestrators.RecordPaymentInput{
		Principal: sess.Principal(),
		DealID:    r.PathValue("id"),
		Amount:    input.Amount,
		PaidAt:    paidAt,
		Method:    input.Method,
		Reference: input.Reference,
	}, dealDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

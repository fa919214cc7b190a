package web

import (
	"net/http"
	"strconv"

	"crm/internal/adapters/storage"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
	"crm/internal/domain/outbox"
)

// handleAdminOutbox handles GET /api/admin/outbox?status=&limit=.
// Lists the company's failed emails by default; status=all lists every entry.
func handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	limit := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	entries, err := projections.QueryListOutbox(r.Context(), projections.ListOutboxQuery{
		CompanyID: sess.CompanyID,
		Status:    r.URL.Query().Get("status"),
		Limit:     limit,
	}, projections.ListOutboxDeps{OutboxStore: stores.OutboxStore})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAdminOutboxAction handles POST /api/admin/outbox/{id}/{action}.
// retry attempts the entry once regardless of backoff; abandon stops further retries.
func handleAdminOutboxAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	entryID := r.PathValue("id")

	// Entries are looked up by ID alone, so tenancy is checked here.
	entry, err := stores.OutboxStore.GetByID(ctx, entryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entry.CompanyID != sess.CompanyID {
		writeError(w, r, storage.NotFound("outbox entry"))
		return
	}

	processor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: emailSender},
	})

	switch r.PathValue("action") {
	case "retry":
		entry, err = processor.ProcessSingle(ctx, entryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)

	case "abandon":
		if err := processor.AbandonEntry(ctx, entryID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})

	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

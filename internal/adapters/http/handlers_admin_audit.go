package web

import (
	"net/http"
	"strconv"
	"time"

	"crm/internal/application/projections"
)

// handleAdminAudit handles GET /api/admin/audit.
// PRE: User must be authenticated as admin
// POST: Returns one page of the company's audit trail, newest first
func handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	params, ok := parseList(w, r, nil, projections.AuditFilterKeys)
	if !ok {
		return
	}
	page, err := projections.QueryListAudit(r.Context(), projections.ListQuery{Principal: sess.Principal(), Params: params},
		projections.ListAuditDeps{AuditStore: stores.AuditStore})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleAdminPerf handles GET /api/admin/perf?minutes=&top=.
// Returns request and query latency percentiles from the in-memory ring buffer.
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if perfCollector == nil {
		http.Error(w, "performance collection is disabled", http.StatusNotFound)
		return
	}
	minutes := 15
	if n, err := strconv.Atoi(r.URL.Query().Get("minutes")); err == nil && n > 0 && n <= 24*60 {
		minutes = n
	}
	top := 10
	if n, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && n > 0 && n <= 100 {
		top = n
	}
	since := time.Now().Add(-time.Duration(minutes) * time.Minute)
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(since, top))
}

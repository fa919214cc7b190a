package web

import (
	"net/http"

	"crm/internal/application/listutil"
	"crm/internal/application/projections"
)

// handleDashboard handles GET /api/dashboard.
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	d, err := projections.QueryGetDashboard(r.Context(), sess.Principal(), projections.GetDashboardDeps{
		ReportStore: stores.ReportStore,
		Cache:       opts.Cache,
		TTL:         opts.DashboardTTL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleLeaderboard handles GET /api/leaderboard?from=&to=&sort=&format=.
// Every signed-in account may see the company leaderboard.
func handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	dr, err := listutil.ParseDateRange(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lb, err := projections.QueryGetLeaderboard(r.Context(), projections.LeaderboardQuery{
		CompanyID: sess.CompanyID,
		From:      dr.From,
		To:        dr.To,
		Sort:      q.Get("sort"),
	}, projections.GetLeaderboardDeps{
		ReportStore:  stores.ReportStore,
		AccountStore: stores.AccountStore,
		Cache:        opts.Cache,
		TTL:          opts.LeaderboardTTL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wantsXLSX(r) {
		writeWorkbook(w, "leaderboard-"+lb.From.Format("2006-01-02")+".xlsx", projections.LeaderboardSheet(lb))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

// handleReport handles GET /api/reports/{kind} (admin only).
// Filters: from, to, assigned_to, status; format=xlsx downloads a workbook.
func handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	dr, err := listutil.ParseDateRange(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := projections.QueryGetReport(r.Context(), projections.ReportQuery{
		CompanyID:  sess.CompanyID,
		Kind:       r.PathValue("kind"),
		From:       dr.From,
		To:         dr.To,
		AssignedTo: q.Get("assigned_to"),
		Status:     q.Get("status"),
	}, projections.GetReportDeps{
		LeadStore:     stores.LeadStore,
		FollowUpStore: stores.FollowUpStore,
		CustomerStore: stores.CustomerStore,
		DealStore:     stores.DealStore,
		VisitStore:    stores.VisitStore,
		AccountStore:  stores.AccountStore,
		ReportStore:   stores.ReportStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wantsXLSX(r) {
		writeWorkbook(w, rep.Kind+"-report-"+rep.From.Format("2006-01-02")+".xlsx", projections.ReportSheets(rep)...)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

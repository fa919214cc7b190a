package web

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crm/internal/adapters/http/middleware"
	"crm/internal/adapters/spreadsheet"
	"crm/internal/application/listutil"
	"crm/internal/domain/account"
)

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// requireSession returns the caller's session or writes 401.
func requireSession(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		slog.Warn("auth_denied", "path", r.URL.Path, "reason", "no session")
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return middleware.Session{}, false
	}
	return sess, true
}

// requireAdmin returns the caller's session or writes 401/403.
func requireAdmin(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	sess, ok := requireSession(w, r)
	if !ok {
		return middleware.Session{}, false
	}
	if sess.Role != account.RoleAdmin {
		slog.Warn("auth_denied", "path", r.URL.Path, "account_id", sess.AccountID, "role", sess.Role, "required", "admin")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return middleware.Session{}, false
	}
	return sess, true
}

// clientIP returns the remote address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseList parses list query parameters, writing 400 on a malformed date.
func parseList(w http.ResponseWriter, r *http.Request, sortCols, filterKeys []string) (listutil.ListParams, bool) {
	params, err := listutil.ParseListParams(r.URL.Query(), sortCols, filterKeys)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return listutil.ListParams{}, false
	}
	return params, true
}

// parseTime reads an optional request date; the zero time means unset.
func parseTime(w http.ResponseWriter, field, value string) (time.Time, bool) {
	t, err := listutil.ParseDate(value)
	if err != nil {
		http.Error(w, field+": "+err.Error(), http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

// wantsXLSX reports whether the caller asked for a spreadsheet export.
func wantsXLSX(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "xlsx")
}

// writeWorkbook renders sheets as an .xlsx attachment. The workbook is built
// in memory so a failure can still be answered with 500.
func writeWorkbook(w http.ResponseWriter, filename string, sheets ...spreadsheet.Sheet) {
	var buf bytes.Buffer
	if err := spreadsheet.WriteXLSX(&buf, sheets...); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", spreadsheet.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

// handleHealthz answers liveness probes.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"crm/internal/adapters/spreadsheet"
	leadStore "crm/internal/adapters/storage/lead"
	"crm/internal/application/orchestrators"
	"crm/internal/application/projections"
)

// leadRequest is the editable part of a lead.
type leadRequest struct {
	Name           string `json:"Name"`
	Email          string `json:"Email"`
	Phone          string `json:"Phone"`
	Organization   string `json:"Organization"`
	Source         string `json:"Source"`
	Requirement    string `json:"Requirement"`
	EstimatedValue int64  `json:"EstimatedValue"`
	AssignedTo     string `json:"AssignedTo"`
}

func (in leadRequest) fields() orchestrators.LeadFields {
	return orchestrators.LeadFields{
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Organization:   in.Organization,
		Source:         in.Source,
		Requirement:    in.Requirement,
		EstimatedValue: in.EstimatedValue,
	}
}

func leadDeps() orchestrators.LeadDeps {
	return orchestrators.LeadDeps{
		LeadStore:     stores.LeadStore,
		AccountStore:  stores.AccountStore,
		CustomerStore: stores.CustomerStore,
		FollowUpStore: stores.FollowUpStore,
		Audit:         stores.AuditStore,
	}
}

// handleLeads handles GET/POST /api/leads.
func handleLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		params, ok := parseList(w, r, leadStore.SortColumns, projections.LeadFilterKeys)
		if !ok {
			return
		}
		page, err := projections.QueryListLeads(ctx, projections.ListQuery{Principal: sess.Principal(), Params: params},
			projections.ListLeadsDeps{LeadStore: stores.LeadStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)

	case "POST":
		var input leadRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		l, err := orchestrators.ExecuteCreateLead(ctx, orchestrators.CreateLeadInput{
			Principal:  sess.Principal(),
			Fields:     input.fields(),
			AssignedTo: input.AssignedTo,
		}, leadDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLead handles GET/PUT/DELETE /api/leads/{id}.
func handleLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	switch r.Method {
	case "GET":
		detail, err := projections.QueryGetLead(ctx, projections.GetQuery{Principal: sess.Principal(), ID: id},
			projections.GetLeadDeps{LeadStore: stores.LeadStore, FollowUpStore: stores.FollowUpStore})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)

	case "PUT":
		var input leadRequest
		if err := strictDecode(r, &input); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		l, err := orchestrators.ExecuteUpdateLead(ctx, orchestrators.UpdateLeadInput{
			Principal: sess.Principal(),
			ID:        id,
			Fields:    input.fields(),
		}, leadDeps())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)

	case "DELETE":
		if err := orchestrators.ExecuteDeleteLead(ctx, orchestrators.DeleteInput{Principal: sess.Principal(), ID: id}, leadDeps()); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLeadStatus handles POST /api/leads/{id}/status.
// Converting to CUSTOMER returns the created customer alongside the lead.
func handleLeadStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var input struct {
		Status string `json:"Status"`
		Reason string `json:"Reason"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	result, err := orchestrators.ExecuteChangeLeadStatus(r.Context(), orchestrators.ChangeLeadStatusInput{
		Principal: sess.Principal(),
		ID:        r.PathValue("id"),
		Status:    input.Status,
		Reason:    input.Reason,
	}, leadDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleLeadAssign handles POST /api/leads/{id}/assign (admin only).
func handleLeadAssign(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var input struct {
		AssignedTo string `json:"AssignedTo"`
	}
	if err := strictDecode(r, &input); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	l, err := orchestrators.ExecuteAssignLead(r.Context(), orchestrators.AssignLeadInput{
		Principal:  sess.Principal(),
		ID:         r.PathValue("id"),
		AssignedTo: input.AssignedTo,
	}, leadDeps())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleLeadUpload handles POST /api/leads/upload (multipart field "file").
// Form fields: dry_run (bool), assigned_to (admins only).
func handleLeadUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	maxBytes := opts.UploadMaxBytes
	if maxBytes <= 0 {
		maxBytes = orchestrators.DefaultUploadMaxBytes
	}
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		http.Error(w, "upload must be a multipart form no larger than "+strconv.FormatInt(maxBytes>>20, 10)+" MiB", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	result, err := orchestrators.ExecuteUploadLeads(r.Context(), orchestrators.UploadLeadsInput{
		Principal:  sess.Principal(),
		Reader:     file,
		Filename:   header.Filename,
		DryRun:     dryRun,
		AssignedTo: r.FormValue("assigned_to"),
		MaxBytes:   maxBytes,
		MaxRows:    opts.UploadMaxRows,
	}, orchestrators.UploadLeadsDeps{
		LeadStore:    stores.LeadStore,
		AccountStore: stores.AccountStore,
		Audit:        stores.AuditStore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("lead_upload", "company_id", sess.CompanyID, "file", header.Filename, "dry_run", dryRun,
		"total", result.Total, "created", result.Created, "skipped", result.Skipped, "failed", result.Failed)
	writeJSON(w, http.StatusOK, result)
}

// handleLeadUploadTemplate handles GET /api/leads/upload/template.
func handleLeadUploadTemplate(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireSession(w, r); !ok {
		return
	}
	writeWorkbook(w, "lead-upload-template.xlsx", spreadsheet.Sheet{Name: "Leads", Columns: orchestrators.UploadTemplateColumns})
}

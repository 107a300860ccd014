package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"unihr.org/internal/audit"
	"unihr.org/internal/docstore"
	"unihr.org/internal/identity"
	"unihr.org/internal/jobs"
)

var hrRoles = []identity.Kind{identity.KindHRHead, identity.KindHRPersonnel}

type setStatusRequest struct {
	Status string `json:"status"`
}

type softDeleteRequest struct {
	Confirmation string `json:"confirmation"`
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	if a.jobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "jobs service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[1] != "jobs" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	orgID := parts[0]

	switch {
	case len(parts) == 2:
		a.handleJobsCollection(w, r, orgID)
	case len(parts) == 3 && parts[2] == "trash":
		a.handleJobsTrash(w, r, orgID)
	case len(parts) == 3 && parts[2] == "cleanup":
		a.handleJobsCleanup(w, r, orgID)
	case len(parts) == 3:
		a.handleJobResource(w, r, orgID, parts[2])
	case len(parts) == 4 && parts[3] == "status":
		a.handleJobStatus(w, r, orgID, parts[2])
	case len(parts) == 4 && parts[3] == "restore":
		a.handleJobRestore(w, r, orgID, parts[2])
	case len(parts) == 4 && parts[3] == "purge":
		a.handleJobPurge(w, r, orgID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleJobsCollection(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodGet:
		// Live postings only; soft-deleted records never reach this view.
		listed, err := a.jobs.List(r.Context(), orgID)
		if err != nil {
			handleJobsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"postings": listed})
	case http.MethodPost:
		if !a.ensureRole(w, r, orgID, hrRoles...) {
			return
		}
		var req jobs.CreateInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if desc, ok := identity.DescriptorFromContext(r.Context()); ok && req.PostedBy == "" {
			req.PostedBy = desc.SubjectID
		}
		posting, err := a.jobs.Create(r.Context(), orgID, req)
		if err != nil {
			handleJobsError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "jobs.posting.create", map[string]any{
			"posting_id": posting.ID,
			"title":      posting.Title,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s/jobs/%s", orgID, posting.ID))
		writeJSON(w, http.StatusCreated, posting)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleJobsTrash(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensureRole(w, r, orgID, hrRoles...) {
		return
	}
	listed, err := a.jobs.ListTrash(r.Context(), orgID)
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"postings": listed})
}

func (a *API) handleJobsCleanup(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, orgID, identity.KindHRHead) {
		return
	}
	report, err := a.jobs.RunCleanupSweep(r.Context(), orgID)
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "jobs.cleanup.sweep", map[string]any{
		"scanned": report.Scanned,
		"purged":  report.Purged,
		"failed":  len(report.Failures),
	})
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleJobResource(w http.ResponseWriter, r *http.Request, orgID, id string) {
	switch r.Method {
	case http.MethodGet:
		posting, err := a.jobs.Get(r.Context(), orgID, id)
		if err != nil {
			handleJobsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, posting)
	case http.MethodPut:
		if !a.ensureRole(w, r, orgID, hrRoles...) {
			return
		}
		var req jobs.UpdateInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		posting, err := a.jobs.Update(r.Context(), orgID, id, req)
		if err != nil {
			handleJobsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, posting)
	case http.MethodDelete:
		if !a.ensureRole(w, r, orgID, hrRoles...) {
			return
		}
		var req softDeleteRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		posting, err := a.jobs.SoftDelete(r.Context(), orgID, id, req.Confirmation)
		if err != nil {
			handleJobsError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "jobs.posting.soft_delete", map[string]any{
			"posting_id": id,
		})
		writeJSON(w, http.StatusOK, posting)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleJobStatus(w http.ResponseWriter, r *http.Request, orgID, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, orgID, hrRoles...) {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	posting, err := a.jobs.SetStatus(r.Context(), orgID, id, jobs.Status(req.Status))
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "jobs.posting.status", map[string]any{
		"posting_id": id,
		"status":     req.Status,
	})
	writeJSON(w, http.StatusOK, posting)
}

func (a *API) handleJobRestore(w http.ResponseWriter, r *http.Request, orgID, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensureRole(w, r, orgID, hrRoles...) {
		return
	}
	posting, err := a.jobs.Restore(r.Context(), orgID, id)
	if err != nil {
		handleJobsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "jobs.posting.restore", map[string]any{
		"posting_id": id,
	})
	writeJSON(w, http.StatusOK, posting)
}

func (a *API) handleJobPurge(w http.ResponseWriter, r *http.Request, orgID, id string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensureRole(w, r, orgID, identity.KindHRHead) {
		return
	}
	if err := a.jobs.Purge(r.Context(), orgID, id); err != nil {
		handleJobsError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "jobs.posting.purge", map[string]any{
		"posting_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func handleJobsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrConfirmationMismatch):
		writeJSON(w, http.StatusBadRequest, loginErrorResponse{
			ErrorKind: "confirmation_mismatch",
			Message:   err.Error(),
		})
	case errors.Is(err, jobs.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrNotDeleted):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "backend call timed out")
	case errors.Is(err, docstore.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "document store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "jobs operation failed")
	}
}

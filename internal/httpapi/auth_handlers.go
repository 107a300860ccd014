package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"unihr.org/internal/audit"
	"unihr.org/internal/identity"
	"unihr.org/internal/obs"
	"unihr.org/internal/session"
)

// loginRequest accepts either a raw identifier (markers honored) or one of the
// explicit tagged forms; exactly one of the four must be populated.
type loginRequest struct {
	Identifier string `json:"identifier,omitempty"`

	SystemAdmin *struct {
		Username string `json:"username"`
	} `json:"system_admin,omitempty"`
	Employee *struct {
		EmployeeID     string `json:"employee_id"`
		OrganizationID string `json:"organization_id"`
	} `json:"employee,omitempty"`
	HR *struct {
		Email string `json:"email"`
	} `json:"hr,omitempty"`

	Secret string `json:"secret"`
}

type loginResponse struct {
	Success    bool                 `json:"success"`
	Token      string               `json:"token,omitempty"`
	Descriptor *identity.Descriptor `json:"descriptor,omitempty"`
}

type loginErrorResponse struct {
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func (req loginRequest) toLoginRequest() (identity.LoginRequest, error) {
	tagged := 0
	if req.SystemAdmin != nil {
		tagged++
	}
	if req.Employee != nil {
		tagged++
	}
	if req.HR != nil {
		tagged++
	}
	if strings.TrimSpace(req.Identifier) != "" {
		tagged++
	}
	if tagged != 1 {
		return nil, errors.New("exactly one of identifier, system_admin, employee, hr is required")
	}
	switch {
	case req.SystemAdmin != nil:
		return identity.SystemAdminLogin{Username: strings.TrimSpace(req.SystemAdmin.Username)}, nil
	case req.Employee != nil:
		return identity.EmployeeLogin{
			EmployeeID:     strings.TrimSpace(req.Employee.EmployeeID),
			OrganizationID: strings.TrimSpace(req.Employee.OrganizationID),
		}, nil
	case req.HR != nil:
		return identity.StandardLogin{Email: strings.ToLower(strings.TrimSpace(req.HR.Email))}, nil
	default:
		return identity.ParseIdentifier(req.Identifier)
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	login, err := req.toLoginRequest()
	if err != nil {
		if kind := identity.ErrorKind(err); kind != "" {
			obs.ObserveLogin("unknown", kind)
			writeJSON(w, http.StatusUnauthorized, loginErrorResponse{ErrorKind: kind, Message: err.Error()})
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := a.resolver.Resolve(r.Context(), login, req.Secret)
	if err != nil {
		kind := identity.ErrorKind(err)
		if kind == "" {
			kind = "backend_unavailable"
		}
		obs.ObserveLogin(login.Path(), kind)
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
			"path": login.Path(),
			"kind": kind,
		})
		writeJSON(w, loginStatus(err), loginErrorResponse{ErrorKind: kind, Message: err.Error()})
		return
	}

	token, err := a.sessions.Establish(r.Context(), outcome.Descriptor)
	if err != nil {
		obs.ObserveLogin(login.Path(), "session_error")
		writeError(w, r, http.StatusInternalServerError, "session establishment failed")
		return
	}

	obs.ObserveLogin(login.Path(), "ok")
	ctx := identity.ContextWithDescriptor(r.Context(), outcome.Descriptor)
	_ = audit.LogEvent(ctx, "auth.login.resolved", map[string]any{
		"path": login.Path(),
	})

	desc := outcome.Descriptor
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: token, Descriptor: &desc})
}

// loginStatus keeps the taxonomy visible at the transport level while the
// payload stays uniform.
func loginStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, identity.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	desc, err := a.sessions.Resume(r.Context(), token)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"descriptor": desc,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	desc, active, err := a.sessions.Refresh(r.Context(), token)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	if !active {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":     true,
		"descriptor": desc,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	if err := a.sessions.SignOut(r.Context(), token); err != nil {
		writeSessionError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, session.ErrNoSession):
		writeError(w, r, http.StatusUnauthorized, "no active session")
	case identity.ErrorKind(err) != "":
		writeJSON(w, loginStatus(err), loginErrorResponse{
			ErrorKind: identity.ErrorKind(err),
			Message:   err.Error(),
		})
	default:
		writeError(w, r, http.StatusInternalServerError, "session operation failed")
	}
}

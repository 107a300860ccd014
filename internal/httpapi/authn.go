package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"unihr.org/internal/identity"
	"unihr.org/internal/session"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// The auth endpoints manage the bearer token themselves and report "no active
// session" in their payloads instead of a blanket 401.
var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/session",
	"/v1/auth/refresh",
	"/v1/auth/logout",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/openapi.yaml",
	"/",
}

// withAuth resumes the session behind the bearer token and attaches the
// descriptor to the request context. Public paths pass through untouched.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		desc, err := a.sessions.Resume(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrInvalidToken):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			case errors.Is(err, session.ErrNoSession):
				writeError(w, r, http.StatusUnauthorized, "no active session")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := identity.ContextWithDescriptor(r.Context(), desc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensureRole verifies the session descriptor carries one of the given kinds.
// A SystemAdmin additionally bypasses the organization check; every other kind
// may only act inside its own organization.
func (a *API) ensureRole(w http.ResponseWriter, r *http.Request, orgID string, kinds ...identity.Kind) bool {
	desc, ok := identity.DescriptorFromContext(r.Context())
	if !ok || !desc.IsAuthenticated() {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if desc.Kind == identity.KindSystemAdmin {
		return true
	}
	if !desc.HasKind(kinds...) || (orgID != "" && desc.OrganizationID != orgID) {
		writeError(w, r, http.StatusForbidden, "insufficient privileges")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

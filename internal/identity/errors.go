package identity

import "errors"

var (
	ErrInvalidCredentials   = errors.New("identity: invalid credentials")
	ErrAccountNotConfigured = errors.New("identity: account not configured")
	ErrPendingApproval      = errors.New("identity: account pending approval")
	ErrOrganizationNotFound = errors.New("identity: organization not found")
	ErrEmployeeNotFound     = errors.New("identity: employee not found")
	ErrTimeout              = errors.New("identity: backend call timed out")
	ErrBackendUnavailable   = errors.New("identity: backend unavailable")
	ErrNotFound             = errors.New("identity: not found")
	ErrAlreadyExists        = errors.New("identity: already exists")
)

// ErrorKind returns the wire-level kind token for a resolver failure, or ""
// for errors outside the login taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountNotConfigured):
		return "account_not_configured"
	case errors.Is(err, ErrPendingApproval):
		return "pending_approval"
	case errors.Is(err, ErrOrganizationNotFound):
		return "organization_not_found"
	case errors.Is(err, ErrEmployeeNotFound):
		return "employee_not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	default:
		return ""
	}
}

package identity

import (
	"fmt"
	"strings"
)

// Marker tokens carried inside login identifiers. The encoding is a boundary
// format shared with the login form and must stay byte-for-byte stable.
const (
	SystemAdminMarker = "_SYSTEM_ADMIN_LOGIN_MARKER"
	EmployeeMarker    = "_EMPLOYEE_LOGIN_MARKER"

	employeeSuffix = EmployeeMarker + ".com"
)

// LoginRequest is the explicit tagged form of a login attempt. The UI may
// construct one directly, or submit a raw identifier that ParseIdentifier
// converts at the boundary.
type LoginRequest interface {
	// Path names the resolution path for logging and metrics.
	Path() string
}

// SystemAdminLogin authenticates against the separate admin credential store.
type SystemAdminLogin struct {
	Username string
}

func (SystemAdminLogin) Path() string { return "system_admin" }

// EmployeeLogin authenticates an organization-scoped employee id.
type EmployeeLogin struct {
	EmployeeID     string
	OrganizationID string
}

func (EmployeeLogin) Path() string { return "employee" }

// StandardLogin authenticates an HR staff email against the identity provider.
type StandardLogin struct {
	Email string
}

func (StandardLogin) Path() string { return "hr" }

// ParseIdentifier inspects the identifier for the reserved markers and returns
// the corresponding tagged request. Marker presence fully determines the path;
// a marker-free identifier must look like a standard email or the attempt is
// rejected.
func ParseIdentifier(identifier string) (LoginRequest, error) {
	identifier = strings.TrimSpace(identifier)

	if strings.HasSuffix(identifier, SystemAdminMarker) {
		username := strings.TrimSuffix(identifier, SystemAdminMarker)
		if username == "" {
			return nil, fmt.Errorf("%w: empty admin username", ErrInvalidCredentials)
		}
		return SystemAdminLogin{Username: username}, nil
	}

	if strings.HasSuffix(identifier, employeeSuffix) {
		at := strings.Index(identifier, "@")
		if at <= 0 {
			return nil, fmt.Errorf("%w: malformed employee identifier", ErrInvalidCredentials)
		}
		employeeID := identifier[:at]
		orgID := strings.TrimSuffix(identifier[at+1:], employeeSuffix)
		if employeeID == "" || orgID == "" {
			return nil, fmt.Errorf("%w: malformed employee identifier", ErrInvalidCredentials)
		}
		return EmployeeLogin{EmployeeID: employeeID, OrganizationID: orgID}, nil
	}

	if isEmailShaped(identifier) {
		return StandardLogin{Email: strings.ToLower(identifier)}, nil
	}
	return nil, fmt.Errorf("%w: unrecognized identifier", ErrInvalidCredentials)
}

func isEmailShaped(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.Contains(domain, "@")
}

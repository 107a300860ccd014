package identity

import "time"

// Kind is the resolved identity class of a logged-in actor.
type Kind string

const (
	KindSystemAdmin Kind = "system_admin"
	KindHRHead      Kind = "hr_head"
	KindHRPersonnel Kind = "hr_personnel"
	KindEmployee    Kind = "employee"
)

// ApprovalStatus gates whether an HR session counts as authenticated.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// Descriptor is the normalized outcome of a successful login: one value
// describing who the actor is, replaced wholesale on re-authentication.
type Descriptor struct {
	Kind           Kind           `json:"kind"`
	SubjectID      string         `json:"subject_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	DisplayName    string         `json:"display_name"`
	Email          string         `json:"email"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ResolvedAt     time.Time      `json:"resolved_at"`
}

// IsHR reports whether the descriptor belongs to a provider-authenticated
// organization staff role.
func (d Descriptor) IsHR() bool {
	return d.Kind == KindHRHead || d.Kind == KindHRPersonnel
}

// HasKind reports whether the descriptor's role is one of the given kinds.
func (d Descriptor) HasKind(kinds ...Kind) bool {
	for _, k := range kinds {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// IsAuthenticated reports whether the session may act. HR roles additionally
// require approval at the mapping layer.
func (d Descriptor) IsAuthenticated() bool {
	if d.Kind == "" || d.SubjectID == "" {
		return false
	}
	if d.IsHR() {
		return d.ApprovalStatus == ApprovalApproved
	}
	return true
}

// Organization is the tenant boundary; most records partition under one.
type Organization struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemAdminRecord is the separate credential record for cross-organization
// operators. It never touches the identity provider.
type SystemAdminRecord struct {
	Username    string `json:"username"`
	SecretHash  string `json:"-"`
	DisplayName string `json:"display_name"`
}

// EmployeeRecord is an organization-scoped employee credential record.
// SecretHash may be empty on legacy records (see the resolver's handling).
type EmployeeRecord struct {
	EmployeeID     string `json:"employee_id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Position       string `json:"position"`
	SecretHash     string `json:"-"`
}

// AuthMapping joins a provider-authenticated UID to exactly one
// {organization, role} pair. Its absence on login is a distinct failure,
// not merely "not found".
type AuthMapping struct {
	ProviderUID    string         `json:"provider_uid"`
	OrganizationID string         `json:"organization_id"`
	Role           Kind           `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// StaffRecord is the organizational profile for an HR-role actor; the resolver
// updates its LastLogin on a best-effort basis.
type StaffRecord struct {
	ProviderUID    string    `json:"provider_uid"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Kind      `json:"role"`
	LastLogin      time.Time `json:"last_login,omitempty"`
}

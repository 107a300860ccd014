package identity

import (
	"context"
	"time"
)

// Store describes the credential-record lookups and writes the resolver and
// the approval workflow depend on.
type Store interface {
	SystemAdmins() SystemAdminStore
	Organizations() OrganizationStore
	Employees() EmployeeStore
	Mappings() MappingStore
	Staff() StaffStore
}

// SystemAdminStore manages the separate admin credential records.
type SystemAdminStore interface {
	FindByUsername(ctx context.Context, username string) (SystemAdminRecord, error)
	Create(ctx context.Context, rec SystemAdminRecord) error
}

// OrganizationStore manages tenant records.
type OrganizationStore interface {
	Get(ctx context.Context, id string) (Organization, error)
	FindByCode(ctx context.Context, code string) (Organization, error)
	Create(ctx context.Context, org Organization) error
	List(ctx context.Context) ([]Organization, error)
}

// EmployeeStore manages organization-scoped employee records.
type EmployeeStore interface {
	Find(ctx context.Context, organizationID, employeeID string) (EmployeeRecord, error)
	Create(ctx context.Context, rec EmployeeRecord) error
}

// MappingStore manages the provider-UID → {organization, role} join records.
type MappingStore interface {
	Find(ctx context.Context, providerUID string) (AuthMapping, error)
	Create(ctx context.Context, m AuthMapping) error
	SetApproval(ctx context.Context, providerUID string, status ApprovalStatus) error
	ListByOrg(ctx context.Context, organizationID string) ([]AuthMapping, error)
}

// StaffStore manages HR-role organizational profiles.
type StaffStore interface {
	Find(ctx context.Context, organizationID, providerUID string) (StaffRecord, error)
	Put(ctx context.Context, rec StaffRecord) error
	SetLastLogin(ctx context.Context, organizationID, providerUID string, at time.Time) error
}

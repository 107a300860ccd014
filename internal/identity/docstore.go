package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unihr.org/internal/docstore"
	"unihr.org/internal/ids"
)

const (
	adminsCollection   = "system_admins"
	orgsCollection     = "organizations"
	mappingsCollection = "auth_mappings"
)

func employeesCollection(orgID string) []string {
	return []string{orgsCollection, orgID, "employees"}
}

func staffCollection(orgID string) []string {
	return []string{orgsCollection, orgID, "staff"}
}

// DocStore implements Store over the document-store capability.
type DocStore struct {
	docs docstore.Store
}

var _ Store = (*DocStore)(nil)

func NewDocStore(docs docstore.Store) *DocStore {
	return &DocStore{docs: docs}
}

func (s *DocStore) SystemAdmins() SystemAdminStore   { return &adminStore{docs: s.docs} }
func (s *DocStore) Organizations() OrganizationStore { return &orgStore{docs: s.docs} }
func (s *DocStore) Employees() EmployeeStore         { return &employeeStore{docs: s.docs} }
func (s *DocStore) Mappings() MappingStore           { return &mappingStore{docs: s.docs} }
func (s *DocStore) Staff() StaffStore                { return &staffStore{docs: s.docs} }

// System admins --------------------------------------------------------------

type adminStore struct{ docs docstore.Store }

func (s *adminStore) FindByUsername(ctx context.Context, username string) (SystemAdminRecord, error) {
	doc, err := s.docs.Get(ctx, docstore.NewPath(username, adminsCollection))
	if err != nil {
		return SystemAdminRecord{}, mapStoreErr(err)
	}
	return SystemAdminRecord{
		Username:    username,
		SecretHash:  doc.String("secret_hash"),
		DisplayName: doc.String("display_name"),
	}, nil
}

func (s *adminStore) Create(ctx context.Context, rec SystemAdminRecord) error {
	if rec.Username == "" {
		return fmt.Errorf("%w: username is required", ErrNotFound)
	}
	return s.docs.Set(ctx, docstore.NewPath(rec.Username, adminsCollection), docstore.Fields{
		"secret_hash":  rec.SecretHash,
		"display_name": rec.DisplayName,
	})
}

// Organizations ---------------------------------------------------------------

type orgStore struct{ docs docstore.Store }

func (s *orgStore) Get(ctx context.Context, id string) (Organization, error) {
	doc, err := s.docs.Get(ctx, docstore.NewPath(id, orgsCollection))
	if err != nil {
		return Organization{}, mapStoreErr(err)
	}
	return orgFromDoc(doc), nil
}

func (s *orgStore) FindByCode(ctx context.Context, code string) (Organization, error) {
	docs, err := s.docs.QueryEquals(ctx, orgsCollection, "code", code)
	if err != nil {
		return Organization{}, mapStoreErr(err)
	}
	if len(docs) == 0 {
		return Organization{}, ErrNotFound
	}
	return orgFromDoc(docs[0]), nil
}

func (s *orgStore) Create(ctx context.Context, org Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	return s.docs.Set(ctx, docstore.NewPath(org.ID, orgsCollection), docstore.Fields{
		"code":       org.Code,
		"name":       org.Name,
		"created_at": org.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *orgStore) List(ctx context.Context) ([]Organization, error) {
	docs, err := s.docs.List(ctx, orgsCollection)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	orgs := make([]Organization, 0, len(docs))
	for _, doc := range docs {
		orgs = append(orgs, orgFromDoc(doc))
	}
	return orgs, nil
}

func orgFromDoc(doc docstore.Document) Organization {
	return Organization{
		ID:        doc.Path.ID,
		Code:      doc.String("code"),
		Name:      doc.String("name"),
		CreatedAt: parseTime(doc.String("created_at")),
	}
}

// Employees -------------------------------------------------------------------

type employeeStore struct{ docs docstore.Store }

func (s *employeeStore) Find(ctx context.Context, organizationID, employeeID string) (EmployeeRecord, error) {
	doc, err := s.docs.Get(ctx, docstore.NewPath(employeeID, employeesCollection(organizationID)...))
	if err != nil {
		return EmployeeRecord{}, mapStoreErr(err)
	}
	return EmployeeRecord{
		EmployeeID:     employeeID,
		OrganizationID: organizationID,
		Name:           doc.String("name"),
		Position:       doc.String("position"),
		SecretHash:     doc.String("secret_hash"),
	}, nil
}

func (s *employeeStore) Create(ctx context.Context, rec EmployeeRecord) error {
	path := docstore.NewPath(rec.EmployeeID, employeesCollection(rec.OrganizationID)...)
	return s.docs.Set(ctx, path, docstore.Fields{
		"name":        rec.Name,
		"position":    rec.Position,
		"secret_hash": rec.SecretHash,
	})
}

// Auth mappings ---------------------------------------------------------------

type mappingStore struct{ docs docstore.Store }

func (s *mappingStore) Find(ctx context.Context, providerUID string) (AuthMapping, error) {
	doc, err := s.docs.Get(ctx, docstore.NewPath(providerUID, mappingsCollection))
	if err != nil {
		return AuthMapping{}, mapStoreErr(err)
	}
	return mappingFromDoc(doc), nil
}

func (s *mappingStore) Create(ctx context.Context, m AuthMapping) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.ApprovalStatus == "" {
		m.ApprovalStatus = ApprovalPending
	}
	return s.docs.Set(ctx, docstore.NewPath(m.ProviderUID, mappingsCollection), docstore.Fields{
		"organization_id": m.OrganizationID,
		"role":            string(m.Role),
		"approval_status": string(m.ApprovalStatus),
		"created_at":      m.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *mappingStore) SetApproval(ctx context.Context, providerUID string, status ApprovalStatus) error {
	err := s.docs.Update(ctx, docstore.NewPath(providerUID, mappingsCollection), docstore.Fields{
		"approval_status": string(status),
	})
	return mapStoreErr(err)
}

func (s *mappingStore) ListByOrg(ctx context.Context, organizationID string) ([]AuthMapping, error) {
	docs, err := s.docs.QueryEquals(ctx, mappingsCollection, "organization_id", organizationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	mappings := make([]AuthMapping, 0, len(docs))
	for _, doc := range docs {
		mappings = append(mappings, mappingFromDoc(doc))
	}
	return mappings, nil
}

func mappingFromDoc(doc docstore.Document) AuthMapping {
	return AuthMapping{
		ProviderUID:    doc.Path.ID,
		OrganizationID: doc.String("organization_id"),
		Role:           Kind(doc.String("role")),
		ApprovalStatus: ApprovalStatus(doc.String("approval_status")),
		CreatedAt:      parseTime(doc.String("created_at")),
	}
}

// Staff profiles --------------------------------------------------------------

type staffStore struct{ docs docstore.Store }

func (s *staffStore) Find(ctx context.Context, organizationID, providerUID string) (StaffRecord, error) {
	doc, err := s.docs.Get(ctx, docstore.NewPath(providerUID, staffCollection(organizationID)...))
	if err != nil {
		return StaffRecord{}, mapStoreErr(err)
	}
	return StaffRecord{
		ProviderUID:    providerUID,
		OrganizationID: organizationID,
		Name:           doc.String("name"),
		Email:          doc.String("email"),
		Role:           Kind(doc.String("role")),
		LastLogin:      parseTime(doc.String("last_login")),
	}, nil
}

func (s *staffStore) Put(ctx context.Context, rec StaffRecord) error {
	path := docstore.NewPath(rec.ProviderUID, staffCollection(rec.OrganizationID)...)
	fields := docstore.Fields{
		"name":  rec.Name,
		"email": rec.Email,
		"role":  string(rec.Role),
	}
	if !rec.LastLogin.IsZero() {
		fields["last_login"] = rec.LastLogin.Format(time.RFC3339Nano)
	}
	return s.docs.Set(ctx, path, fields)
}

func (s *staffStore) SetLastLogin(ctx context.Context, organizationID, providerUID string, at time.Time) error {
	path := docstore.NewPath(providerUID, staffCollection(organizationID)...)
	err := s.docs.Update(ctx, path, docstore.Fields{
		"last_login": at.UTC().Format(time.RFC3339Nano),
	})
	return mapStoreErr(err)
}

// helpers ---------------------------------------------------------------------

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"unihr.org/internal/docstore"
	"unihr.org/internal/provider"
)

type stubProvider struct {
	email    string
	secret   string
	uid      string
	signedIn map[string]bool
	err      error
}

func (p *stubProvider) Authenticate(ctx context.Context, email, secret string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if email != p.email || secret != p.secret {
		return "", provider.ErrBadCredentials
	}
	p.signedIn[p.uid] = true
	return p.uid, nil
}

func (p *stubProvider) SignOut(ctx context.Context, uid string) error {
	delete(p.signedIn, uid)
	return nil
}

func (p *stubProvider) CurrentUser(ctx context.Context, uid string) (bool, error) {
	return p.signedIn[uid], nil
}

func mustHash(t *testing.T, secret string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func newTestResolver(t *testing.T, prov provider.Provider, opts ...Option) (*Resolver, Store) {
	t.Helper()
	store := NewDocStore(docstore.NewMemory())
	r, err := NewResolver(store, prov, opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, store
}

func emptyProvider() *stubProvider {
	return &stubProvider{signedIn: map[string]bool{}}
}

func TestResolveSystemAdminSecretMismatch(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	ctx := context.Background()
	if err := store.SystemAdmins().Create(ctx, SystemAdminRecord{
		Username:   "root",
		SecretHash: mustHash(t, "correct horse"),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := r.Resolve(ctx, SystemAdminLogin{Username: "root"}, "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if out.Descriptor.IsAuthenticated() {
		t.Fatalf("secret mismatch must never yield a descriptor: %+v", out.Descriptor)
	}
}

func TestResolveSystemAdminSuccess(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	ctx := context.Background()
	if err := store.SystemAdmins().Create(ctx, SystemAdminRecord{
		Username:    "root",
		SecretHash:  mustHash(t, "correct horse"),
		DisplayName: "Root Admin",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := r.Resolve(ctx, SystemAdminLogin{Username: "root"}, "correct horse")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d := out.Descriptor
	if d.Kind != KindSystemAdmin || d.DisplayName != "Root Admin" || !d.IsAuthenticated() {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestResolveSystemAdminUnknownUser(t *testing.T) {
	r, _ := newTestResolver(t, emptyProvider())
	if _, err := r.Resolve(context.Background(), SystemAdminLogin{Username: "ghost"}, "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func seedOrganization(t *testing.T, store Store, id, code string) {
	t.Helper()
	if err := store.Organizations().Create(context.Background(), Organization{
		ID:   id,
		Code: code,
		Name: "State University",
	}); err != nil {
		t.Fatalf("Create organization: %v", err)
	}
}

func TestResolveEmployeeByOrganizationCode(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	ctx := context.Background()
	seedOrganization(t, store, "org-state", "ST-2024")
	if err := store.Employees().Create(ctx, EmployeeRecord{
		EmployeeID:     "EMP100",
		OrganizationID: "org-state",
		Name:           "Jordan Reyes",
	}); err != nil {
		t.Fatalf("Create employee: %v", err)
	}

	out, err := r.Resolve(ctx, EmployeeLogin{EmployeeID: "EMP100", OrganizationID: "ST-2024"}, "anything")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d := out.Descriptor
	if d.Kind != KindEmployee {
		t.Fatalf("kind = %q, want employee", d.Kind)
	}
	if d.OrganizationID != "org-state" || d.SubjectID != "org-state/EMP100" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestResolveEmployeeVerifiesHashedSecret(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	ctx := context.Background()
	seedOrganization(t, store, "org-state", "ST-2024")
	if err := store.Employees().Create(ctx, EmployeeRecord{
		EmployeeID:     "EMP200",
		OrganizationID: "org-state",
		SecretHash:     mustHash(t, "s3cret"),
	}); err != nil {
		t.Fatalf("Create employee: %v", err)
	}

	if _, err := r.Resolve(ctx, EmployeeLogin{EmployeeID: "EMP200", OrganizationID: "ST-2024"}, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := r.Resolve(ctx, EmployeeLogin{EmployeeID: "EMP200", OrganizationID: "ST-2024"}, "s3cret"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestResolveEmployeeUnknownOrganization(t *testing.T) {
	r, _ := newTestResolver(t, emptyProvider())
	if _, err := r.Resolve(context.Background(), EmployeeLogin{EmployeeID: "EMP100", OrganizationID: "NOPE"}, "x"); !errors.Is(err, ErrOrganizationNotFound) {
		t.Fatalf("expected ErrOrganizationNotFound, got %v", err)
	}
}

func TestResolveEmployeeUnknownEmployee(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	seedOrganization(t, store, "org-state", "ST-2024")
	if _, err := r.Resolve(context.Background(), EmployeeLogin{EmployeeID: "EMP999", OrganizationID: "ST-2024"}, "x"); !errors.Is(err, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func hrProvider() *stubProvider {
	return &stubProvider{
		email:    "dana@university.edu",
		secret:   "hr-secret",
		uid:      "uid-dana",
		signedIn: map[string]bool{},
	}
}

func TestResolveHRSuccess(t *testing.T) {
	prov := hrProvider()
	r, store := newTestResolver(t, prov)
	ctx := context.Background()
	if err := store.Mappings().Create(ctx, AuthMapping{
		ProviderUID:    "uid-dana",
		OrganizationID: "org-state",
		Role:           KindHRPersonnel,
		ApprovalStatus: ApprovalApproved,
	}); err != nil {
		t.Fatalf("Create mapping: %v", err)
	}
	if err := store.Staff().Put(ctx, StaffRecord{
		ProviderUID:    "uid-dana",
		OrganizationID: "org-state",
		Name:           "Dana Whitfield",
		Email:          "dana@university.edu",
		Role:           KindHRPersonnel,
	}); err != nil {
		t.Fatalf("Put staff: %v", err)
	}

	out, err := r.Resolve(ctx, StandardLogin{Email: "dana@university.edu"}, "hr-secret")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	d := out.Descriptor
	if d.Kind != KindHRPersonnel || d.SubjectID != "uid-dana" || d.DisplayName != "Dana Whitfield" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
	if len(out.SideEffects) != 1 || out.SideEffects[0].Name != "staff.last_login" || out.SideEffects[0].Err != nil {
		t.Fatalf("unexpected side effects: %+v", out.SideEffects)
	}
}

func TestResolveHRLastLoginFailureIsBestEffort(t *testing.T) {
	prov := hrProvider()
	r, store := newTestResolver(t, prov)
	ctx := context.Background()
	// Mapping exists but no staff profile: the last-login update has no record
	// to patch and fails as a side effect only.
	if err := store.Mappings().Create(ctx, AuthMapping{
		ProviderUID:    "uid-dana",
		OrganizationID: "org-state",
		Role:           KindHRHead,
		ApprovalStatus: ApprovalApproved,
	}); err != nil {
		t.Fatalf("Create mapping: %v", err)
	}

	out, err := r.Resolve(ctx, StandardLogin{Email: "dana@university.edu"}, "hr-secret")
	if err != nil {
		t.Fatalf("primary operation must succeed independent of side effects: %v", err)
	}
	if len(out.SideEffects) != 1 || out.SideEffects[0].Err == nil {
		t.Fatalf("expected a failed side effect, got %+v", out.SideEffects)
	}
	if out.Descriptor.Kind != KindHRHead {
		t.Fatalf("unexpected descriptor: %+v", out.Descriptor)
	}
}

func TestResolveHRPendingApproval(t *testing.T) {
	prov := hrProvider()
	r, store := newTestResolver(t, prov)
	ctx := context.Background()
	if err := store.Mappings().Create(ctx, AuthMapping{
		ProviderUID:    "uid-dana",
		OrganizationID: "org-state",
		Role:           KindHRPersonnel,
		ApprovalStatus: ApprovalPending,
	}); err != nil {
		t.Fatalf("Create mapping: %v", err)
	}

	if _, err := r.Resolve(ctx, StandardLogin{Email: "dana@university.edu"}, "hr-secret"); !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}
}

func TestResolveHRMissingMappingSignsBackOut(t *testing.T) {
	prov := hrProvider()
	r, _ := newTestResolver(t, prov)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, StandardLogin{Email: "dana@university.edu"}, "hr-secret"); !errors.Is(err, ErrAccountNotConfigured) {
		t.Fatalf("expected ErrAccountNotConfigured, got %v", err)
	}
	if signedIn, _ := prov.CurrentUser(ctx, "uid-dana"); signedIn {
		t.Fatalf("compensating sign-out must leave no current provider user")
	}
}

func TestResolveHRBadCredentials(t *testing.T) {
	r, _ := newTestResolver(t, hrProvider())
	if _, err := r.Resolve(context.Background(), StandardLogin{Email: "dana@university.edu"}, "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestResolveHRProviderUnavailable(t *testing.T) {
	prov := hrProvider()
	prov.err = provider.ErrUnavailable
	r, _ := newTestResolver(t, prov)
	if _, err := r.Resolve(context.Background(), StandardLogin{Email: "dana@university.edu"}, "hr-secret"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

// slowStore blocks every read until the per-call deadline fires.
type slowStore struct {
	docstore.Store
}

func (s slowStore) Get(ctx context.Context, path docstore.Path) (docstore.Document, error) {
	<-ctx.Done()
	return docstore.Document{}, ctx.Err()
}

func (s slowStore) QueryEquals(ctx context.Context, collection, field string, value any) ([]docstore.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveTimeout(t *testing.T) {
	store := NewDocStore(slowStore{Store: docstore.NewMemory()})
	r, err := NewResolver(store, emptyProvider(), WithCallTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Resolve(context.Background(), SystemAdminLogin{Username: "root"}, "x"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRefreshEmployee(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	ctx := context.Background()
	seedOrganization(t, store, "org-state", "ST-2024")
	if err := store.Employees().Create(ctx, EmployeeRecord{
		EmployeeID:     "EMP100",
		OrganizationID: "org-state",
		Name:           "Jordan Reyes",
	}); err != nil {
		t.Fatalf("Create employee: %v", err)
	}

	d, err := r.Refresh(ctx, Descriptor{Kind: KindEmployee, SubjectID: "org-state/EMP100"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if d.DisplayName != "Jordan Reyes" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

func TestRefreshHRPendingApproval(t *testing.T) {
	r, store := newTestResolver(t, emptyProvider())
	ctx := context.Background()
	if err := store.Mappings().Create(ctx, AuthMapping{
		ProviderUID:    "uid-dana",
		OrganizationID: "org-state",
		Role:           KindHRPersonnel,
		ApprovalStatus: ApprovalPending,
	}); err != nil {
		t.Fatalf("Create mapping: %v", err)
	}
	if _, err := r.Refresh(ctx, Descriptor{Kind: KindHRPersonnel, SubjectID: "uid-dana"}); !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}
}

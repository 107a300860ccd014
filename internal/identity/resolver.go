package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"

	"unihr.org/internal/docstore"
	"unihr.org/internal/obs"
	"unihr.org/internal/provider"
)

const (
	defaultCallTimeout = 8 * time.Second
	defaultOrgCacheLen = 128
	defaultOrgCacheTTL = time.Minute
)

// SideEffect reports the outcome of a best-effort write performed alongside a
// successful login. A failed side effect never fails the login itself.
type SideEffect struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// Outcome is the uniform success result of Resolve.
type Outcome struct {
	Descriptor  Descriptor
	SideEffects []SideEffect
}

// Resolver executes one of the four authentication paths for a login request
// and normalizes every failure into the login error taxonomy.
type Resolver struct {
	store    Store
	provider provider.Provider

	callTimeout time.Duration
	orgCache    *expirable.LRU[string, Organization]
	now         func() time.Time
}

// Option configures Resolver behavior.
type Option func(*Resolver)

// WithCallTimeout sets the fixed per-backend-call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithOrgCache sizes the organization lookup cache.
func WithOrgCache(size int, ttl time.Duration) Option {
	return func(r *Resolver) {
		if size > 0 && ttl > 0 {
			r.orgCache = expirable.NewLRU[string, Organization](size, nil, ttl)
		}
	}
}

// NewResolver constructs a Resolver over the credential store and the
// identity provider.
func NewResolver(store Store, prov provider.Provider, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	if prov == nil {
		return nil, errors.New("identity: provider is required")
	}
	r := &Resolver{
		store:       store,
		provider:    prov,
		callTimeout: defaultCallTimeout,
		orgCache:    expirable.NewLRU[string, Organization](defaultOrgCacheLen, nil, defaultOrgCacheTTL),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve runs the authentication path selected by the request and returns a
// normalized outcome. Backend failures never escape un-mapped.
func (r *Resolver) Resolve(ctx context.Context, req LoginRequest, secret string) (Outcome, error) {
	switch req := req.(type) {
	case SystemAdminLogin:
		return r.resolveSystemAdmin(ctx, req, secret)
	case EmployeeLogin:
		return r.resolveEmployee(ctx, req, secret)
	case StandardLogin:
		return r.resolveHR(ctx, req, secret)
	default:
		return Outcome{}, fmt.Errorf("%w: unsupported login request", ErrInvalidCredentials)
	}
}

func (r *Resolver) resolveSystemAdmin(ctx context.Context, req SystemAdminLogin, secret string) (Outcome, error) {
	var rec SystemAdminRecord
	err := r.step(ctx, func(c context.Context) error {
		var e error
		rec, e = r.store.SystemAdmins().FindByUsername(c, req.Username)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		return Outcome{}, ErrInvalidCredentials
	}
	if err != nil {
		return Outcome{}, err
	}
	if rec.SecretHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(rec.SecretHash), []byte(secret)) != nil {
		return Outcome{}, ErrInvalidCredentials
	}

	now := r.now().UTC()
	name := rec.DisplayName
	if name == "" {
		name = req.Username
	}
	return Outcome{Descriptor: Descriptor{
		Kind:           KindSystemAdmin,
		SubjectID:      fmt.Sprintf("sysadmin-%d", now.UnixMilli()),
		DisplayName:    name,
		Email:          strings.ToLower(req.Username) + "@system.unihr.local",
		ApprovalStatus: ApprovalApproved,
		ResolvedAt:     now,
	}}, nil
}

func (r *Resolver) resolveEmployee(ctx context.Context, req EmployeeLogin, secret string) (Outcome, error) {
	org, err := r.lookupOrganization(ctx, req.OrganizationID)
	if err != nil {
		return Outcome{}, err
	}

	var rec EmployeeRecord
	err = r.step(ctx, func(c context.Context) error {
		var e error
		rec, e = r.store.Employees().Find(c, org.ID, req.EmployeeID)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		return Outcome{}, ErrEmployeeNotFound
	}
	if err != nil {
		return Outcome{}, err
	}

	if secret == "" {
		return Outcome{}, ErrInvalidCredentials
	}
	if rec.SecretHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(rec.SecretHash), []byte(secret)) != nil {
			return Outcome{}, ErrInvalidCredentials
		}
	} else {
		// Legacy employee records carry no secret hash; any non-empty secret
		// is accepted for them. TODO(security): backfill hashes and make
		// verification unconditional.
		obs.LogEvent(map[string]any{
			"level":       "warn",
			"msg":         "employee secret accepted without verification",
			"employee_id": rec.EmployeeID,
			"org_id":      org.ID,
		})
	}

	now := r.now().UTC()
	name := rec.Name
	if name == "" {
		name = rec.EmployeeID
	}
	return Outcome{Descriptor: Descriptor{
		Kind:           KindEmployee,
		SubjectID:      org.ID + "/" + rec.EmployeeID,
		OrganizationID: org.ID,
		DisplayName:    name,
		Email:          strings.ToLower(rec.EmployeeID) + "@" + strings.ToLower(org.ID) + ".unihr.local",
		ApprovalStatus: ApprovalApproved,
		ResolvedAt:     now,
	}}, nil
}

func (r *Resolver) resolveHR(ctx context.Context, req StandardLogin, secret string) (Outcome, error) {
	var uid string
	err := r.step(ctx, func(c context.Context) error {
		var e error
		uid, e = r.provider.Authenticate(c, req.Email, secret)
		return e
	})
	if errors.Is(err, provider.ErrBadCredentials) {
		return Outcome{}, ErrInvalidCredentials
	}
	if err != nil {
		return Outcome{}, err
	}

	var mapping AuthMapping
	err = r.step(ctx, func(c context.Context) error {
		var e error
		mapping, e = r.store.Mappings().Find(c, uid)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		// The provider accepted the credentials but no mapping exists; sign
		// back out so no half-authenticated provider session lingers.
		if sErr := r.provider.SignOut(ctx, uid); sErr != nil {
			obs.LogEvent(map[string]any{
				"level": "warn",
				"msg":   "compensating provider sign-out failed",
				"uid":   uid,
				"error": sErr.Error(),
			})
		}
		return Outcome{}, ErrAccountNotConfigured
	}
	if err != nil {
		return Outcome{}, err
	}
	if mapping.Role != KindHRHead && mapping.Role != KindHRPersonnel {
		return Outcome{}, ErrAccountNotConfigured
	}
	if mapping.ApprovalStatus == ApprovalPending {
		return Outcome{}, ErrPendingApproval
	}

	desc := r.hrDescriptor(ctx, uid, req.Email, mapping)

	outcome := Outcome{Descriptor: desc}
	sideErr := r.store.Staff().SetLastLogin(ctx, mapping.OrganizationID, uid, r.now())
	outcome.SideEffects = append(outcome.SideEffects, SideEffect{Name: "staff.last_login", Err: sideErr})
	if sideErr != nil {
		obs.LogEvent(map[string]any{
			"level": "warn",
			"msg":   "last-login write failed",
			"uid":   uid,
			"error": sideErr.Error(),
		})
	}
	return outcome, nil
}

// Refresh re-runs the lookup behind an existing descriptor and returns a
// replacement. Used by session resume and refresh; never prompts for a secret.
func (r *Resolver) Refresh(ctx context.Context, d Descriptor) (Descriptor, error) {
	now := r.now().UTC()
	switch d.Kind {
	case KindSystemAdmin:
		d.ResolvedAt = now
		return d, nil
	case KindEmployee:
		orgID, employeeID, ok := strings.Cut(d.SubjectID, "/")
		if !ok {
			return Descriptor{}, ErrEmployeeNotFound
		}
		var rec EmployeeRecord
		err := r.step(ctx, func(c context.Context) error {
			var e error
			rec, e = r.store.Employees().Find(c, orgID, employeeID)
			return e
		})
		if errors.Is(err, ErrNotFound) {
			return Descriptor{}, ErrEmployeeNotFound
		}
		if err != nil {
			return Descriptor{}, err
		}
		if rec.Name != "" {
			d.DisplayName = rec.Name
		}
		d.ResolvedAt = now
		return d, nil
	case KindHRHead, KindHRPersonnel:
		var mapping AuthMapping
		err := r.step(ctx, func(c context.Context) error {
			var e error
			mapping, e = r.store.Mappings().Find(c, d.SubjectID)
			return e
		})
		if errors.Is(err, ErrNotFound) {
			return Descriptor{}, ErrAccountNotConfigured
		}
		if err != nil {
			return Descriptor{}, err
		}
		if mapping.ApprovalStatus == ApprovalPending {
			return Descriptor{}, ErrPendingApproval
		}
		return r.hrDescriptor(ctx, d.SubjectID, d.Email, mapping), nil
	default:
		return Descriptor{}, ErrInvalidCredentials
	}
}

func (r *Resolver) hrDescriptor(ctx context.Context, uid, email string, mapping AuthMapping) Descriptor {
	desc := Descriptor{
		Kind:           mapping.Role,
		SubjectID:      uid,
		OrganizationID: mapping.OrganizationID,
		DisplayName:    email,
		Email:          email,
		ApprovalStatus: mapping.ApprovalStatus,
		ResolvedAt:     r.now().UTC(),
	}
	// Staff profile enriches the display name; lookup failures are swallowed.
	if staff, err := r.store.Staff().Find(ctx, mapping.OrganizationID, uid); err == nil && staff.Name != "" {
		desc.DisplayName = staff.Name
	}
	return desc
}

func (r *Resolver) lookupOrganization(ctx context.Context, requested string) (Organization, error) {
	if org, ok := r.orgCache.Get(requested); ok {
		return org, nil
	}

	var org Organization
	err := r.step(ctx, func(c context.Context) error {
		var e error
		org, e = r.store.Organizations().FindByCode(c, requested)
		return e
	})
	if errors.Is(err, ErrNotFound) {
		// Fall back to treating the supplied id as a direct record key.
		err = r.step(ctx, func(c context.Context) error {
			var e error
			org, e = r.store.Organizations().Get(c, requested)
			return e
		})
		if errors.Is(err, ErrNotFound) {
			return Organization{}, ErrOrganizationNotFound
		}
	}
	if err != nil {
		return Organization{}, err
	}
	r.orgCache.Add(requested, org)
	return org, nil
}

// step runs one backend call under the fixed per-call deadline and maps
// transport-level failures into the login taxonomy.
func (r *Resolver) step(ctx context.Context, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	err := fn(cctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, docstore.ErrUnavailable), errors.Is(err, provider.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	default:
		return err
	}
}

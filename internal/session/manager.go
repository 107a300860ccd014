// Package session owns the lifetime of resolved session descriptors: one
// descriptor per live session, established after login, replaced on refresh,
// discarded on sign-out. There is no ambient global; the Manager is built in
// main and injected where needed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"unihr.org/internal/identity"
	"unihr.org/internal/ids"
	"unihr.org/internal/kv"
	"unihr.org/internal/provider"
)

const (
	defaultIssuer   = "unihr"
	defaultHRTTL    = 12 * time.Hour
	defaultLocalTTL = 2 * time.Hour
)

var (
	// ErrNoSession indicates the token does not refer to a live session.
	ErrNoSession = errors.New("session: no active session")
	// ErrInvalidToken indicates the bearer token failed validation.
	ErrInvalidToken = errors.New("session: invalid token")
)

// Refresher re-runs the lookup behind a descriptor; implemented by the
// identity resolver.
type Refresher interface {
	Refresh(ctx context.Context, d identity.Descriptor) (identity.Descriptor, error)
}

// Manager issues session tokens and stores descriptor markers in the kv store.
// HR sessions are anchored in the identity provider; Employee and SystemAdmin
// sessions exist only as markers and are deliberately shorter-lived.
type Manager struct {
	kvs       kv.Store
	prov      provider.Provider
	refresher Refresher

	secret   []byte
	issuer   string
	hrTTL    time.Duration
	localTTL time.Duration
	now      func() time.Time
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			m.issuer = issuer
		}
	}
}

// WithTTLs overrides session lifetimes for HR and local (Employee/SystemAdmin) kinds.
func WithTTLs(hr, local time.Duration) ManagerOption {
	return func(m *Manager) {
		if hr > 0 {
			m.hrTTL = hr
		}
		if local > 0 {
			m.localTTL = local
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewManager constructs a Manager. secret signs session tokens and is required.
func NewManager(kvs kv.Store, prov provider.Provider, refresher Refresher, secret string, opts ...ManagerOption) (*Manager, error) {
	if kvs == nil {
		return nil, errors.New("session: kv store is required")
	}
	if prov == nil {
		return nil, errors.New("session: provider is required")
	}
	if refresher == nil {
		return nil, errors.New("session: refresher is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session: signing secret is required")
	}
	m := &Manager{
		kvs:       kvs,
		prov:      prov,
		refresher: refresher,
		secret:    []byte(secret),
		issuer:    defaultIssuer,
		hrTTL:     defaultHRTTL,
		localTTL:  defaultLocalTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type sessionClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Establish stores the descriptor under a fresh session id and returns the
// signed bearer token for it.
func (m *Manager) Establish(ctx context.Context, d identity.Descriptor) (string, error) {
	if !d.IsAuthenticated() {
		return "", fmt.Errorf("session: descriptor is not authenticated")
	}
	sid := ids.New()
	ttl := m.ttlFor(d)

	marker, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	if err := m.kvs.Set(ctx, markerKey(sid), string(marker), ttl); err != nil {
		return "", err
	}

	now := m.now().UTC()
	claims := sessionClaims{
		Kind: string(d.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   d.SubjectID,
			ID:        sid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Resume restores the descriptor behind a token. HR descriptors are
// re-resolved through the same mapping lookup as the login path; Employee and
// SystemAdmin descriptors come straight from the persisted marker.
func (m *Manager) Resume(ctx context.Context, token string) (identity.Descriptor, error) {
	sid, d, err := m.load(ctx, token)
	if err != nil {
		return identity.Descriptor{}, err
	}
	if !d.IsHR() {
		return d, nil
	}

	if signedIn, err := m.prov.CurrentUser(ctx, d.SubjectID); err == nil && !signedIn {
		_ = m.kvs.Delete(ctx, markerKey(sid))
		return identity.Descriptor{}, ErrNoSession
	}
	fresh, err := m.refresher.Refresh(ctx, d)
	if err != nil {
		// A failed background refresh discards the session.
		_ = m.kvs.Delete(ctx, markerKey(sid))
		return identity.Descriptor{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	m.storeMarker(ctx, sid, fresh)
	return fresh, nil
}

// Refresh re-runs the lookup for the current subject and replaces the
// descriptor. The boolean is false when no subject is active.
func (m *Manager) Refresh(ctx context.Context, token string) (identity.Descriptor, bool, error) {
	sid, d, err := m.load(ctx, token)
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrInvalidToken) {
		return identity.Descriptor{}, false, nil
	}
	if err != nil {
		return identity.Descriptor{}, false, err
	}

	fresh, err := m.refresher.Refresh(ctx, d)
	if err != nil {
		_ = m.kvs.Delete(ctx, markerKey(sid))
		return identity.Descriptor{}, false, err
	}
	m.storeMarker(ctx, sid, fresh)
	return fresh, true, nil
}

// SignOut tears the session down. HR kinds additionally sign out of the
// identity provider; Employee and SystemAdmin kinds never really signed in to
// it, so only their marker is discarded.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	sid, d, err := m.load(ctx, token)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	if d.IsHR() {
		if err := m.prov.SignOut(ctx, d.SubjectID); err != nil {
			return err
		}
	}
	return m.kvs.Delete(ctx, markerKey(sid))
}

func (m *Manager) load(ctx context.Context, token string) (string, identity.Descriptor, error) {
	claims, err := m.parse(token)
	if err != nil {
		return "", identity.Descriptor{}, err
	}
	raw, err := m.kvs.Get(ctx, markerKey(claims.ID))
	if errors.Is(err, kv.ErrNotFound) {
		return "", identity.Descriptor{}, ErrNoSession
	}
	if err != nil {
		return "", identity.Descriptor{}, err
	}
	var d identity.Descriptor
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return "", identity.Descriptor{}, ErrNoSession
	}
	return claims.ID, d, nil
}

func (m *Manager) parse(token string) (*sessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != m.issuer || claims.ID == "" || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) storeMarker(ctx context.Context, sid string, d identity.Descriptor) {
	marker, err := json.Marshal(d)
	if err != nil {
		return
	}
	_ = m.kvs.Set(ctx, markerKey(sid), string(marker), m.ttlFor(d))
}

func (m *Manager) ttlFor(d identity.Descriptor) time.Duration {
	if d.IsHR() {
		return m.hrTTL
	}
	return m.localTTL
}

func markerKey(sid string) string {
	return "session:" + sid
}

// Package provider abstracts the hosted identity provider the HR login path
// authenticates against. The rest of the service treats it as an opaque
// capability; only HR-role actors ever exist inside it.
package provider

import (
	"context"
	"errors"
)

var (
	// ErrBadCredentials covers unknown emails and secret mismatches alike.
	ErrBadCredentials = errors.New("provider: invalid credentials")
	ErrUnavailable    = errors.New("provider: unavailable")
)

// Provider is the identity-provider capability.
type Provider interface {
	// Authenticate verifies the email/secret pair and returns the provider UID.
	Authenticate(ctx context.Context, email, secret string) (string, error)
	// SignOut revokes the provider-side signed-in state for the UID.
	SignOut(ctx context.Context, uid string) error
	// CurrentUser reports whether the UID still has provider-side signed-in state.
	CurrentUser(ctx context.Context, uid string) (bool, error)
}

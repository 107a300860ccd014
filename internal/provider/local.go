package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"unihr.org/internal/docstore"
	"unihr.org/internal/ids"
)

const usersCollection = "provider_users"

// Local implements Provider on top of the document store. Signed-in state is
// held in memory; it exists so the compensating sign-out on unconfigured
// accounts is observable.
type Local struct {
	docs docstore.Store

	mu       sync.Mutex
	signedIn map[string]struct{}
}

var _ Provider = (*Local)(nil)

func NewLocal(docs docstore.Store) *Local {
	return &Local{docs: docs, signedIn: make(map[string]struct{})}
}

// CreateUser registers a provider account and returns its UID. Used by the
// signup flow and by seeding.
func (l *Local) CreateUser(ctx context.Context, email, secret string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || secret == "" {
		return "", ErrBadCredentials
	}
	existing, err := l.docs.QueryEquals(ctx, usersCollection, "email", email)
	if err != nil {
		return "", wrap(err)
	}
	if len(existing) > 0 {
		return "", fmt.Errorf("provider: account %s already exists", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	uid := ids.New()
	err = l.docs.Set(ctx, docstore.NewPath(uid, usersCollection), docstore.Fields{
		"email":         email,
		"password_hash": string(hash),
	})
	if err != nil {
		return "", wrap(err)
	}
	return uid, nil
}

func (l *Local) Authenticate(ctx context.Context, email, secret string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || secret == "" {
		return "", ErrBadCredentials
	}
	docs, err := l.docs.QueryEquals(ctx, usersCollection, "email", email)
	if err != nil {
		return "", wrap(err)
	}
	if len(docs) == 0 {
		return "", ErrBadCredentials
	}
	doc := docs[0]
	if bcrypt.CompareHashAndPassword([]byte(doc.String("password_hash")), []byte(secret)) != nil {
		return "", ErrBadCredentials
	}
	uid := doc.Path.ID
	l.mu.Lock()
	l.signedIn[uid] = struct{}{}
	l.mu.Unlock()
	return uid, nil
}

func (l *Local) SignOut(ctx context.Context, uid string) error {
	l.mu.Lock()
	delete(l.signedIn, uid)
	l.mu.Unlock()
	return nil
}

func (l *Local) CurrentUser(ctx context.Context, uid string) (bool, error) {
	l.mu.Lock()
	_, ok := l.signedIn[uid]
	l.mu.Unlock()
	return ok, nil
}

func wrap(err error) error {
	if errors.Is(err, docstore.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"unihr.org/internal/docstore"
	"unihr.org/internal/ids"
	"unihr.org/internal/obs"
)

const (
	defaultRetention   = 30 * 24 * time.Hour
	defaultCallTimeout = 8 * time.Second
)

// Service drives the posting lifecycle over the document store. The store is
// the single source of truth; postings are partitioned by organization id and
// never duplicated across collections.
type Service struct {
	store       docstore.Store
	retention   time.Duration
	callTimeout time.Duration
	now         func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithRetention sets how long a soft-deleted posting survives before it
// becomes eligible for the cleanup sweep.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithCallTimeout bounds each backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service over the given document store.
func NewService(store docstore.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("jobs: document store is required")
	}
	s := &Service{
		store:       store,
		retention:   defaultRetention,
		callTimeout: defaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the caller-supplied fields for a new posting.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Location    string `json:"location"`
	PostedBy    string `json:"posted_by"`
}

// Create stores a new open posting under the organization.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (Posting, error) {
	if strings.TrimSpace(orgID) == "" {
		return Posting{}, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return Posting{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	now := s.now().UTC()
	p := Posting{
		ID:             ids.New(),
		OrganizationID: orgID,
		Title:          in.Title,
		Description:    in.Description,
		Department:     in.Department,
		Location:       in.Location,
		Status:         StatusOpen,
		PostedBy:       in.PostedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.step(ctx, func(ctx context.Context) error {
		return s.store.Set(ctx, postingPath(orgID, p.ID), encodePosting(p))
	})
	if err != nil {
		return Posting{}, err
	}
	return p, nil
}

// Get returns one posting, deleted or not.
func (s *Service) Get(ctx context.Context, orgID, id string) (Posting, error) {
	var doc docstore.Document
	err := s.step(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.store.Get(ctx, postingPath(orgID, id))
		return err
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return Posting{}, ErrNotFound
	}
	if err != nil {
		return Posting{}, err
	}
	return decodePosting(doc), nil
}

// List returns the organization's live postings. Soft-deleted records are
// excluded at the query boundary, not filtered by callers.
func (s *Service) List(ctx context.Context, orgID string) ([]Posting, error) {
	return s.queryByDeleted(ctx, orgID, false)
}

// ListTrash returns only the organization's soft-deleted postings.
func (s *Service) ListTrash(ctx context.Context, orgID string) ([]Posting, error) {
	return s.queryByDeleted(ctx, orgID, true)
}

func (s *Service) queryByDeleted(ctx context.Context, orgID string, deleted bool) ([]Posting, error) {
	var docs []docstore.Document
	err := s.step(ctx, func(ctx context.Context) error {
		var err error
		docs, err = s.store.QueryEquals(ctx, postingCollection(orgID), "is_deleted", deleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	postings := make([]Posting, 0, len(docs))
	for _, doc := range docs {
		postings = append(postings, decodePosting(doc))
	}
	sort.Slice(postings, func(i, j int) bool {
		return postings[i].CreatedAt.After(postings[j].CreatedAt)
	})
	return postings, nil
}

// UpdateInput patches posting details; nil fields are left untouched.
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Department  *string `json:"department"`
	Location    *string `json:"location"`
}

// Update patches the given fields and returns the updated posting.
func (s *Service) Update(ctx context.Context, orgID, id string, in UpdateInput) (Posting, error) {
	partial := docstore.Fields{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return Posting{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
		}
		partial["title"] = *in.Title
	}
	if in.Description != nil {
		partial["description"] = *in.Description
	}
	if in.Department != nil {
		partial["department"] = *in.Department
	}
	if in.Location != nil {
		partial["location"] = *in.Location
	}
	if len(partial) == 0 {
		return s.Get(ctx, orgID, id)
	}
	partial["updated_at"] = s.now().UTC().Format(time.RFC3339Nano)
	if err := s.update(ctx, orgID, id, partial); err != nil {
		return Posting{}, err
	}
	return s.Get(ctx, orgID, id)
}

// SetStatus toggles the publication state, independent of soft-delete.
func (s *Service) SetStatus(ctx context.Context, orgID, id string, status Status) (Posting, error) {
	if !status.Valid() {
		return Posting{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	partial := docstore.Fields{
		"status":     string(status),
		"updated_at": s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.update(ctx, orgID, id, partial); err != nil {
		return Posting{}, err
	}
	return s.Get(ctx, orgID, id)
}

// SoftDelete marks the posting deleted. The confirmation text must match the
// posting's title exactly, case included; a mismatch is reported before the
// delete write is attempted.
func (s *Service) SoftDelete(ctx context.Context, orgID, id, confirmation string) (Posting, error) {
	p, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Posting{}, err
	}
	if confirmation != p.Title {
		return Posting{}, ErrConfirmationMismatch
	}
	now := s.now().UTC()
	deadline := now.Add(s.retention)
	partial := docstore.Fields{
		"is_deleted":             true,
		"deleted_at":             now.Format(time.RFC3339Nano),
		"scheduled_for_deletion": deadline.Format(time.RFC3339Nano),
		"updated_at":             now.Format(time.RFC3339Nano),
	}
	if err := s.update(ctx, orgID, id, partial); err != nil {
		return Posting{}, err
	}
	p.IsDeleted = true
	p.DeletedAt = &now
	p.ScheduledForDeletion = &deadline
	p.UpdatedAt = now
	return p, nil
}

// Restore clears the soft-delete state unconditionally; no confirmation is
// required in this direction.
func (s *Service) Restore(ctx context.Context, orgID, id string) (Posting, error) {
	partial := docstore.Fields{
		"is_deleted":             false,
		"deleted_at":             nil,
		"scheduled_for_deletion": nil,
		"updated_at":             s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.update(ctx, orgID, id, partial); err != nil {
		return Posting{}, err
	}
	return s.Get(ctx, orgID, id)
}

// Purge permanently removes a posting. Only soft-deleted postings qualify.
func (s *Service) Purge(ctx context.Context, orgID, id string) error {
	p, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !p.IsDeleted {
		return ErrNotDeleted
	}
	err = s.step(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, postingPath(orgID, id))
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// SweepFailure records one posting the sweep could not purge.
type SweepFailure struct {
	PostingID string `json:"posting_id"`
	Reason    string `json:"reason"`
}

// SweepReport aggregates the outcome of one cleanup sweep.
type SweepReport struct {
	OrganizationID string         `json:"organization_id"`
	Scanned        int            `json:"scanned"`
	Purged         int            `json:"purged"`
	Failures       []SweepFailure `json:"failures,omitempty"`
	SweptAt        time.Time      `json:"swept_at"`
}

// RunCleanupSweep purges every soft-deleted posting in the organization whose
// purge deadline has elapsed. Each purge attempt is independent: a failed one
// is collected in the report and never aborts the sweep.
func (s *Service) RunCleanupSweep(ctx context.Context, orgID string) (SweepReport, error) {
	now := s.now().UTC()
	report := SweepReport{OrganizationID: orgID, SweptAt: now}

	var docs []docstore.Document
	err := s.step(ctx, func(ctx context.Context) error {
		var err error
		docs, err = s.store.QueryEquals(ctx, postingCollection(orgID), "is_deleted", true)
		return err
	})
	if err != nil {
		return report, err
	}

	report.Scanned = len(docs)
	for _, doc := range docs {
		p := decodePosting(doc)
		if p.ScheduledForDeletion == nil || p.ScheduledForDeletion.After(now) {
			continue
		}
		err := s.step(ctx, func(ctx context.Context) error {
			return s.store.Delete(ctx, postingPath(orgID, p.ID))
		})
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{PostingID: p.ID, Reason: err.Error()})
			continue
		}
		report.Purged++
	}

	obs.ObserveSweep(report.Purged, len(report.Failures))
	obs.LogEvent(map[string]any{
		"level":           "info",
		"event":           "jobs.cleanup_sweep",
		"organization_id": orgID,
		"scanned":         report.Scanned,
		"purged":          report.Purged,
		"failed":          len(report.Failures),
	})
	return report, nil
}

func (s *Service) update(ctx context.Context, orgID, id string, partial docstore.Fields) error {
	err := s.step(ctx, func(ctx context.Context) error {
		return s.store.Update(ctx, postingPath(orgID, id), partial)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// step bounds one backend call with the fixed per-call deadline. The deadline
// races the call; losing maps to context.DeadlineExceeded, but the underlying
// request is not aborted mid-flight by anything beyond context cancellation.
func (s *Service) step(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return err
}

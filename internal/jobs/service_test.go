package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"unihr.org/internal/docstore"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func mustCreate(t *testing.T, svc *Service, orgID, title string) Posting {
	t.Helper()
	p, err := svc.Create(context.Background(), orgID, CreateInput{Title: title})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return p
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, "org-1", "Registrar")

	got, err := svc.Get(context.Background(), "org-1", p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Registrar" || got.Status != StatusOpen || got.IsDeleted {
		t.Fatalf("unexpected posting: %+v", got)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Create(context.Background(), "org-1", CreateInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSoftDeleteConfirmationIsCaseSensitive(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, "org-1", "Nurse Educator")

	if _, err := svc.SoftDelete(context.Background(), "org-1", p.ID, "nurse educator"); !errors.Is(err, ErrConfirmationMismatch) {
		t.Fatalf("expected ErrConfirmationMismatch, got %v", err)
	}
	got, err := svc.Get(context.Background(), "org-1", p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IsDeleted {
		t.Fatalf("mismatched confirmation must not delete the posting")
	}
}

func TestSoftDeleteSetsDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t,
		WithClock(func() time.Time { return now }),
		WithRetention(72*time.Hour),
	)
	p := mustCreate(t, svc, "org-1", "Lab Technician")

	deleted, err := svc.SoftDelete(context.Background(), "org-1", p.ID, "Lab Technician")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if !deleted.IsDeleted {
		t.Fatalf("posting should be deleted")
	}
	if deleted.DeletedAt == nil || !deleted.DeletedAt.Equal(now) {
		t.Fatalf("deleted_at = %v, want %v", deleted.DeletedAt, now)
	}
	want := now.Add(72 * time.Hour)
	if deleted.ScheduledForDeletion == nil || !deleted.ScheduledForDeletion.Equal(want) {
		t.Fatalf("scheduled_for_deletion = %v, want %v", deleted.ScheduledForDeletion, want)
	}
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, "org-1", "Admissions Officer")

	before, err := svc.Get(context.Background(), "org-1", p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if _, err := svc.SoftDelete(context.Background(), "org-1", p.ID, "Admissions Officer"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	after, err := svc.Restore(context.Background(), "org-1", p.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if after.IsDeleted != before.IsDeleted {
		t.Fatalf("is_deleted = %v, want %v", after.IsDeleted, before.IsDeleted)
	}
	if after.DeletedAt != nil || after.ScheduledForDeletion != nil {
		t.Fatalf("restore must clear deleted_at and scheduled_for_deletion, got %+v", after)
	}
}

func TestListExcludesDeleted(t *testing.T) {
	svc, _ := newTestService(t)
	live := mustCreate(t, svc, "org-1", "Live Posting")
	dead := mustCreate(t, svc, "org-1", "Dead Posting")
	if _, err := svc.SoftDelete(context.Background(), "org-1", dead.ID, "Dead Posting"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	listed, err := svc.List(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != live.ID {
		t.Fatalf("List should return only the live posting, got %+v", listed)
	}

	trash, err := svc.ListTrash(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListTrash: %v", err)
	}
	if len(trash) != 1 || trash[0].ID != dead.ID {
		t.Fatalf("ListTrash should return only the deleted posting, got %+v", trash)
	}
}

func TestPurgeRequiresDeleted(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, "org-1", "Bursar")

	if err := svc.Purge(context.Background(), "org-1", p.ID); !errors.Is(err, ErrNotDeleted) {
		t.Fatalf("expected ErrNotDeleted, got %v", err)
	}

	if _, err := svc.SoftDelete(context.Background(), "org-1", p.ID, "Bursar"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if err := svc.Purge(context.Background(), "org-1", p.ID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := svc.Get(context.Background(), "org-1", p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestSetStatusTogglesIndependently(t *testing.T) {
	svc, _ := newTestService(t)
	p := mustCreate(t, svc, "org-1", "Librarian")

	closed, err := svc.SetStatus(context.Background(), "org-1", p.ID, StatusClosed)
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if closed.Status != StatusClosed || closed.IsDeleted {
		t.Fatalf("unexpected posting: %+v", closed)
	}
	if _, err := svc.SetStatus(context.Background(), "org-1", p.ID, Status("archived")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCleanupSweepHonorsDeadline(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := newTestService(t,
		WithClock(func() time.Time { return clock }),
		WithRetention(24*time.Hour),
	)
	ctx := context.Background()

	overdue := mustCreate(t, svc, "org-1", "Overdue")
	if _, err := svc.SoftDelete(ctx, "org-1", overdue.ID, "Overdue"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	// Deleted later: its deadline is still in the future at sweep time.
	clock = now.Add(20 * time.Hour)
	pending := mustCreate(t, svc, "org-1", "Pending")
	if _, err := svc.SoftDelete(ctx, "org-1", pending.ID, "Pending"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	clock = now.Add(30 * time.Hour)
	report, err := svc.RunCleanupSweep(ctx, "org-1")
	if err != nil {
		t.Fatalf("RunCleanupSweep: %v", err)
	}
	if report.Scanned != 2 || report.Purged != 1 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := svc.Get(ctx, "org-1", overdue.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("overdue posting should be purged, got %v", err)
	}
	if _, err := svc.Get(ctx, "org-1", pending.ID); err != nil {
		t.Fatalf("pending posting should survive, got %v", err)
	}
}

func TestCleanupSweepScopedToOrganization(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := newTestService(t,
		WithClock(func() time.Time { return clock }),
		WithRetention(time.Hour),
	)
	ctx := context.Background()

	other := mustCreate(t, svc, "org-2", "Elsewhere")
	if _, err := svc.SoftDelete(ctx, "org-2", other.ID, "Elsewhere"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	clock = now.Add(2 * time.Hour)
	report, err := svc.RunCleanupSweep(ctx, "org-1")
	if err != nil {
		t.Fatalf("RunCleanupSweep: %v", err)
	}
	if report.Scanned != 0 || report.Purged != 0 {
		t.Fatalf("sweep leaked across organizations: %+v", report)
	}
	if _, err := svc.Get(ctx, "org-2", other.ID); err != nil {
		t.Fatalf("other organization's posting should survive, got %v", err)
	}
}

// failingDeletes wraps a store and fails Delete for specific ids.
type failingDeletes struct {
	docstore.Store
	failIDs map[string]bool
}

func (f *failingDeletes) Delete(ctx context.Context, path docstore.Path) error {
	if f.failIDs[path.ID] {
		return docstore.ErrUnavailable
	}
	return f.Store.Delete(ctx, path)
}

func TestCleanupSweepCollectsPartialFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	mem := docstore.NewMemory()
	wrapped := &failingDeletes{Store: mem, failIDs: map[string]bool{}}
	svc, err := NewService(wrapped,
		WithClock(func() time.Time { return clock }),
		WithRetention(time.Hour),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	bad := mustCreate(t, svc, "org-1", "Will Fail")
	good := mustCreate(t, svc, "org-1", "Will Purge")
	for _, p := range []Posting{bad, good} {
		if _, err := svc.SoftDelete(ctx, "org-1", p.ID, p.Title); err != nil {
			t.Fatalf("SoftDelete: %v", err)
		}
	}
	wrapped.failIDs[bad.ID] = true

	clock = now.Add(2 * time.Hour)
	report, err := svc.RunCleanupSweep(ctx, "org-1")
	if err != nil {
		t.Fatalf("RunCleanupSweep: %v", err)
	}
	if report.Purged != 1 {
		t.Fatalf("sweep must continue past failures, purged %d", report.Purged)
	}
	if len(report.Failures) != 1 || report.Failures[0].PostingID != bad.ID {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if _, err := svc.Get(ctx, "org-1", good.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("good posting should be purged, got %v", err)
	}
}

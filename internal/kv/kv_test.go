package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySetGetDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Set(ctx, "sess:1", "marker", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := s.Get(ctx, "sess:1")
	if err != nil || v != "marker" {
		t.Fatalf("Get: %q, %v", v, err)
	}
	if err := s.Delete(ctx, "sess:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "sess:1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	s := NewMemory()
	clock := time.Now()
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	_ = s.Set(ctx, "sess:2", "marker", time.Minute)
	clock = clock.Add(2 * time.Minute)

	if _, err := s.Get(ctx, "sess:2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry to be gone, got %v", err)
	}
}

package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingSweeper struct{ calls int }

func (c *countingSweeper) Sweep() int {
	c.calls++
	return 2
}

type stubPurger struct {
	at  time.Time
	err error
}

func (s *stubPurger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.at = now
	return 3, s.err
}

func TestSessionSweepJob(t *testing.T) {
	if _, err := NewSessionSweepJob(nil, nil); err == nil {
		t.Fatal("expected nil manager rejected")
	}
	sweeper := &countingSweeper{}
	job, err := NewSessionSweepJob(sweeper, testLogger())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != SessionSweepJobName {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil || sweeper.calls != 1 {
		t.Fatalf("expected one sweep, calls=%d err=%v", sweeper.calls, err)
	}
}

func TestSnapshotPurgeJob(t *testing.T) {
	store := &stubPurger{}
	job, err := NewSnapshotPurgeJob(store, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !store.at.Equal(fixed) {
		t.Fatalf("expected purge cutoff %v, got %v", fixed, store.at)
	}

	store.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected purge error surfaced")
	}
}

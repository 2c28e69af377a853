package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

const (
	SessionSweepJobName  = "cart-session-sweep"
	SnapshotPurgeJobName = "cart-snapshot-purge"
)

type sweeper interface {
	Sweep() int
}

// SessionSweepJob evicts idle in-memory cart sessions on this instance.
type SessionSweepJob struct {
	sessions sweeper
	logg     *logger.Logger
}

func NewSessionSweepJob(sessions sweeper, logg *logger.Logger) (*SessionSweepJob, error) {
	if sessions == nil {
		return nil, errors.New("session manager required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SessionSweepJob{sessions: sessions, logg: logg}, nil
}

func (j *SessionSweepJob) Name() string { return SessionSweepJobName }

func (j *SessionSweepJob) Run(ctx context.Context) error {
	if evicted := j.sessions.Sweep(); evicted > 0 {
		j.logg.Info(j.logg.WithField(ctx, "evicted", evicted), "idle cart sessions evicted")
	}
	return nil
}

type purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SnapshotPurgeJob deletes expired cart snapshots from the relational store.
type SnapshotPurgeJob struct {
	store purger
	logg  *logger.Logger
	now   func() time.Time
}

func NewSnapshotPurgeJob(store purger, logg *logger.Logger) (*SnapshotPurgeJob, error) {
	if store == nil {
		return nil, errors.New("snapshot store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SnapshotPurgeJob{store: store, logg: logg, now: time.Now}, nil
}

func (j *SnapshotPurgeJob) Name() string { return SnapshotPurgeJobName }

func (j *SnapshotPurgeJob) Run(ctx context.Context) error {
	purged, err := j.store.PurgeExpired(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	if purged > 0 {
		j.logg.Info(j.logg.WithField(ctx, "purged", purged), "expired cart snapshots purged")
	}
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Name     string
	Logger   *logger.Logger
	Registry *Registry
	// Lock makes each cycle exclusive across instances; nil runs every cycle locally.
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run. Defaults to Interval.
	JobTimeout time.Duration
	// RunOnStart fires a cycle immediately instead of waiting one Interval.
	RunOnStart bool
}

// Service drives a Registry on a fixed cadence.
type Service struct {
	params ServiceParams
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		params.Registry, _ = NewRegistry()
	}
	if params.Interval <= 0 {
		params.Interval = defaultInterval
	}
	if params.JobTimeout <= 0 {
		params.JobTimeout = params.Interval
	}
	if params.Name == "" {
		params.Name = "maintenance"
	}
	return &Service{params: params}, nil
}

func (s *Service) Name() string { return s.params.Name }

// Run blocks until ctx ends and returns ctx.Err().
func (s *Service) Run(ctx context.Context) error {
	logg := s.params.Logger
	ctx = logg.WithField(ctx, "scheduler", s.params.Name)

	ticker := time.NewTicker(s.params.Interval)
	defer ticker.Stop()

	if s.params.RunOnStart {
		s.tickLogged(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tickLogged(ctx)
		}
	}
}

func (s *Service) tickLogged(ctx context.Context) {
	if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.params.Logger.Error(ctx, "scheduled run failed", err)
	}
}

// Tick runs every registered job once, unless another instance holds the lock.
// A failing job does not stop the ones after it.
func (s *Service) Tick(ctx context.Context) error {
	if lock := s.params.Lock; lock != nil {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("lock acquire: %w", err)
		}
		if !ok {
			s.params.Logger.Debug(ctx, "maintenance lock held elsewhere; cycle skipped")
			return nil
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.params.Logger.Error(ctx, "maintenance lock release failed", err)
			}
		}()
	}

	for _, job := range s.params.Registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	logg, name := s.params.Logger, job.Name()
	jobCtx, cancel := context.WithTimeout(logg.WithField(ctx, "job", name), s.params.JobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(start)
	s.params.Metrics.ObserveDuration(name, took)

	jobCtx = logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.params.Metrics.IncFailure(name)
		logg.Error(jobCtx, "job failed", err)
		return
	}
	s.params.Metrics.IncSuccess(name)
	logg.Debug(jobCtx, "job completed")
}

package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	mu   sync.Mutex
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	return t.err
}

func (t *testJob) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry, err := NewRegistry(success, failure)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(reg)
	lock := &fakeLock{}

	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock, Metrics: jobMetrics})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.Tick(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.count() != 1 || failure.count() != 1 {
		t.Fatalf("expected each job once, got %d/%d", success.count(), failure.count())
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}
	if got := testutil.CollectAndCount(reg, "cart_job_failure_total"); got != 1 {
		t.Fatalf("expected one failure series, got %d", got)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "purge"}
	registry, _ := NewRegistry(job)
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: &fakeLock{held: true}})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.Tick(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.count() != 0 {
		t.Fatalf("expected job skipped, ran %d", job.count())
	}
}

func TestServiceRunTicksUntilCanceled(t *testing.T) {
	job := &testJob{name: "sweep"}
	registry, _ := NewRegistry(job)
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Interval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for job.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.count() < 2 {
		t.Fatalf("expected at least two ticks, got %d", job.count())
	}
}

func TestNewServiceRequiresLogger(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected logger requirement")
	}
}

type slowJob struct{ deadlineSeen chan bool }

func (slowJob) Name() string { return "slow" }

func (j slowJob) Run(ctx context.Context) error {
	_, ok := ctx.Deadline()
	j.deadlineSeen <- ok
	<-ctx.Done()
	return ctx.Err()
}

func TestServiceBoundsJobsAndRunsOnStart(t *testing.T) {
	job := slowJob{deadlineSeen: make(chan bool, 1)}
	registry, _ := NewRegistry(job)
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Name:       "purge",
		Logger:     testLogger(),
		Registry:   registry,
		Metrics:    metrics.NewJobMetrics(reg),
		Interval:   time.Hour,
		JobTimeout: 10 * time.Millisecond,
		RunOnStart: true,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if service.Name() != "purge" {
		t.Fatalf("unexpected name %q", service.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	select {
	case ok := <-job.deadlineSeen:
		if !ok {
			t.Fatal("expected job context to carry a deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected RunOnStart to fire before the first interval")
	}

	deadline := time.Now().Add(2 * time.Second)
	for testutil.CollectAndCount(reg, "cart_job_failure_total") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if got := testutil.CollectAndCount(reg, "cart_job_failure_total"); got != 1 {
		t.Fatalf("expected timed-out job recorded as failure, got %d series", got)
	}
}

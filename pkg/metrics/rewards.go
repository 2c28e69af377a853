package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reward sync outcomes.
const (
	OutcomeApplied    = "applied"
	OutcomeCleared    = "cleared"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
	OutcomeSkipped    = "skipped"
)

// RewardSyncMetrics tracks calls to the reward evaluation service.
type RewardSyncMetrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
}

func NewRewardSyncMetrics(reg prometheus.Registerer) *RewardSyncMetrics {
	if reg == nil {
		return &RewardSyncMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reward_sync_total",
		Help: "Reward sync cycles by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_reward_request_duration_seconds",
		Help:    "Latency of reward evaluation requests.",
		Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
	})
	reg.MustRegister(requests, latency)
	return &RewardSyncMetrics{requests: requests, latency: latency}
}

func (r *RewardSyncMetrics) Inc(outcome string) {
	if r == nil || r.requests == nil {
		return
	}
	r.requests.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (r *RewardSyncMetrics) ObserveLatency(d time.Duration) {
	if r == nil || r.latency == nil {
		return
	}
	r.latency.Observe(d.Seconds())
}

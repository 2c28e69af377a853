package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics counts reducer actions, persistence failures and seed ingestion.
type CartMetrics struct {
	actions      *prometheus.CounterVec
	persistFails *prometheus.CounterVec
	seeds        *prometheus.CounterVec
	sessions     prometheus.Gauge
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_actions_total",
		Help: "Cart actions applied by type.",
	}, []string{"action"})
	persistFails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persistence_failures_total",
		Help: "Snapshot load/save failures by operation.",
	}, []string{"op"})
	seeds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_seed_ingest_total",
		Help: "Seed cookie ingestion attempts by result.",
	}, []string{"result"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_active_sessions",
		Help: "Cart sessions currently held in memory.",
	})
	reg.MustRegister(actions, persistFails, seeds, sessions)
	return &CartMetrics{actions: actions, persistFails: persistFails, seeds: seeds, sessions: sessions}
}

func (c *CartMetrics) IncAction(name string) {
	if c == nil || c.actions == nil {
		return
	}
	c.actions.WithLabelValues(normalizeLabel(name)).Inc()
}

func (c *CartMetrics) IncPersistFailure(op string) {
	if c == nil || c.persistFails == nil {
		return
	}
	c.persistFails.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncSeed(result string) {
	if c == nil || c.seeds == nil {
		return
	}
	c.seeds.WithLabelValues(normalizeLabel(result)).Inc()
}

func (c *CartMetrics) SetSessions(n int) {
	if c == nil || c.sessions == nil {
		return
	}
	c.sessions.Set(float64(n))
}

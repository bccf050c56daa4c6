package observability

import (
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the trust backend.
type Metrics struct {
	RecalcTotal      *prometheus.CounterVec
	RecalcDuration   *prometheus.HistogramVec
	DedupSkips       *prometheus.CounterVec
	CascadeVouches   *prometheus.CounterVec
	BackfillErrors   *prometheus.CounterVec
	OutboxJobs       *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// NewMetrics builds the collectors and registers them on reg. pool may be nil.
func NewMetrics(reg prometheus.Registerer, pool *pgxpool.Pool) *Metrics {
	m := &Metrics{
		RecalcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feyza_trust_recalculations_total",
			Help: "Trust score recalculations, by weight profile and outcome.",
		}, []string{"profile", "outcome"}),
		RecalcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feyza_trust_recalculation_duration_seconds",
			Help:    "Duration of trust score recalculations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"profile"}),
		DedupSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feyza_trust_dedup_skips_total",
			Help: "Guarded trust events skipped because they were already recorded, by family.",
		}, []string{"family"}),
		CascadeVouches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feyza_vouch_cascade_vouches_total",
			Help: "Vouches visited by strength re-pricing, by outcome.",
		}, []string{"outcome"}),
		BackfillErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feyza_backfill_errors_total",
			Help: "Per-row backfill failures, by job.",
		}, []string{"job"}),
		OutboxJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feyza_outbox_jobs_total",
			Help: "Outbox jobs processed, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feyza_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feyza_api_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
	}

	reg.MustRegister(
		m.RecalcTotal,
		m.RecalcDuration,
		m.DedupSkips,
		m.CascadeVouches,
		m.BackfillErrors,
		m.OutboxJobs,
		m.RequestDuration,
		m.RequestsInFlight,
	)

	if pool != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "feyza_db_connection_pool_active",
				Help: "Number of active database connections.",
			}, func() float64 { return float64(pool.Stat().AcquiredConns()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "feyza_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			}, func() float64 { return float64(pool.Stat().IdleConns()) }),
		)
	}
	return m
}

// ObserveRecalc matches trust.RecalcObserver.
func (m *Metrics) ObserveRecalc(profile string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if profile == "" {
		profile = "unknown"
	}
	m.RecalcTotal.WithLabelValues(profile, outcome).Inc()
	m.RecalcDuration.WithLabelValues(profile).Observe(took.Seconds())
}

func (m *Metrics) ObserveDedupSkip(family trust.Family) {
	m.DedupSkips.WithLabelValues(string(family)).Inc()
}

func (m *Metrics) ObserveCascade(res *trust.CascadeResult) {
	m.CascadeVouches.WithLabelValues("updated").Add(float64(res.Updated))
	m.CascadeVouches.WithLabelValues("unchanged").Add(float64(res.Unchanged))
	m.CascadeVouches.WithLabelValues("error").Add(float64(len(res.Errors)))
}

func (m *Metrics) ObserveBackfillErrors(job string, n int) {
	if n > 0 {
		m.BackfillErrors.WithLabelValues(job).Add(float64(n))
	}
}

func (m *Metrics) ObserveOutboxJob(topic, outcome string) {
	m.OutboxJobs.WithLabelValues(topic, outcome).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine exposes. A single instance is
// created at wiring time and shared by the identity cache and the quota
// sync engine.
type Metrics struct {
	MacLookupTotal     prometheus.Counter
	MacLookupCacheHits prometheus.Counter
	MacLookupGraceHits prometheus.Counter
	MacLookupFail      prometheus.Counter
	MacLookupLatency   prometheus.Histogram
	MacGraceCacheSize  prometheus.Gauge

	QuotaSyncUsersTotal  prometheus.Counter
	QuotaSyncUsersFailed prometheus.Counter
	QuotaSyncTicks       prometheus.Counter
	QuotaSyncLastRunUnix prometheus.Gauge

	AuditMismatches prometheus.Counter

	TaskRuns     *prometheus.CounterVec
	TaskFailures *prometheus.CounterVec
}

// New registers all collectors on the given registerer. Latency buckets are
// histogram edges in milliseconds; an empty slice falls back to sane
// defaults for LAN round trips.
func New(reg prometheus.Registerer, latencyBucketsMs []int64) *Metrics {
	buckets := make([]float64, 0, len(latencyBucketsMs))
	for _, ms := range latencyBucketsMs {
		buckets = append(buckets, float64(ms))
	}
	if len(buckets) == 0 {
		buckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}
	}

	m := &Metrics{
		MacLookupTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mac_lookup_total",
			Help: "Total MAC-by-IP lookups.",
		}),
		MacLookupCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mac_lookup_cache_hits",
			Help: "Lookups served from the shared cache.",
		}),
		MacLookupGraceHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mac_lookup_cache_grace_hits",
			Help: "Lookups served from the in-process grace map.",
		}),
		MacLookupFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mac_lookup_fail",
			Help: "Lookups that resolved no MAC.",
		}),
		MacLookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mac_lookup_duration_milliseconds",
			Help:    "MAC lookup latency in milliseconds.",
			Buckets: buckets,
		}),
		MacGraceCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mac_grace_cache_size",
			Help: "Entries currently held in the grace map.",
		}),
		QuotaSyncUsersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_sync_users_total",
			Help: "Users processed by quota sync ticks.",
		}),
		QuotaSyncUsersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_sync_users_failed",
			Help: "Users whose quota sync failed this tick.",
		}),
		QuotaSyncTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quota_sync_ticks_total",
			Help: "Completed quota sync ticks.",
		}),
		QuotaSyncLastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quota_sync_last_run_timestamp_seconds",
			Help: "Unix time of the last completed quota sync tick.",
		}),
		AuditMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "access_audit_mismatches_total",
			Help: "Parity mismatches found by the access auditor.",
		}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_task_runs_total",
			Help: "Scheduled task executions.",
		}, []string{"task", "result"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_task_failures_total",
			Help: "Scheduled task failures by task name.",
		}, []string{"task"}),
	}

	reg.MustRegister(
		m.MacLookupTotal, m.MacLookupCacheHits, m.MacLookupGraceHits,
		m.MacLookupFail, m.MacLookupLatency, m.MacGraceCacheSize,
		m.QuotaSyncUsersTotal, m.QuotaSyncUsersFailed, m.QuotaSyncTicks,
		m.QuotaSyncLastRunUnix, m.AuditMismatches, m.TaskRuns, m.TaskFailures,
	)
	return m
}

// NewForTest builds an unregistered metrics set for use in unit tests.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry(), nil)
}

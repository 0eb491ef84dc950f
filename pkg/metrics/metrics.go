package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fan-out metrics
	HostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tugtainer_hosts_total",
			Help: "Total number of hosts by enabled state",
		},
		[]string{"enabled"},
	)

	CheckAllDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tugtainer_check_all_duration_seconds",
			Help:    "Time taken for a global fan-out check_all run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CheckAllRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tugtainer_check_all_runs_total",
			Help: "Total number of check_all runs by final status",
		},
		[]string{"status"},
	)

	// Per-host metrics
	CheckHostDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tugtainer_check_host_duration_seconds",
			Help:    "Time taken for a per-host check/update run in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host_id"},
	)

	HostClientCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tugtainer_host_client_calls_total",
			Help: "Total number of host client calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	HostClientCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tugtainer_host_client_call_duration_seconds",
			Help:    "Host client round-trip duration in seconds by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Container availability / update outcome metrics
	ContainersCheckedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tugtainer_containers_checked_total",
			Help: "Total number of per-container availability checks performed",
		},
	)

	UpdatesAvailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tugtainer_updates_available_total",
			Help: "Total number of containers found to have an available update",
		},
	)

	ContainerOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tugtainer_container_outcomes_total",
			Help: "Total number of group-item outcomes by result (every per-item result value; empty for items with no action)",
		},
		[]string{"result"},
	)

	DigestResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tugtainer_digest_resolutions_total",
			Help: "Total number of platform digest resolutions by cache outcome (hit, miss)",
		},
		[]string{"outcome"},
	)

	// Progress cache metrics
	ProgressCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tugtainer_progress_cache_entries",
			Help: "Current number of entries held in the progress cache",
		},
	)

	ProgressCacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tugtainer_progress_cache_evictions_total",
			Help: "Total number of progress cache entries evicted for exceeding capacity",
		},
	)

	// Agent-side HTTP surface metrics
	AgentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tugtainer_agent_requests_total",
			Help: "Total number of agent HTTP requests by path and status",
		},
		[]string{"path", "status"},
	)

	AgentRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tugtainer_agent_request_duration_seconds",
			Help:    "Agent HTTP request duration in seconds by path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// Leader election metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tugtainer_raft_is_leader",
			Help: "Whether this controller replica currently holds raft leadership (1 = leader, 0 = follower)",
		},
	)

	// Notifier metrics
	NotificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tugtainer_notifications_sent_total",
			Help: "Total number of notifications dispatched by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tugtainer_notifications_skipped_total",
			Help: "Total number of runs where dispatch was skipped because no result was worthy",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HostsTotal,
		CheckAllDuration,
		CheckAllRunsTotal,
		CheckHostDuration,
		HostClientCallsTotal,
		HostClientCallDuration,
		ContainersCheckedTotal,
		UpdatesAvailableTotal,
		ContainerOutcomesTotal,
		DigestResolutionsTotal,
		ProgressCacheSize,
		ProgressCacheEvictionsTotal,
		AgentRequestsTotal,
		AgentRequestDuration,
		RaftLeader,
		NotificationsSentTotal,
		NotificationsSkippedTotal,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records elapsed time against a plain histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records elapsed time against a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Package metrics defines the node's Prometheus instrumentation, exposed
// read-only via internal/httpapi's /metrics endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	KeysTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kvstore_keys_total",
			Help: "Total number of live keys in the mapping",
		},
	)

	WALAppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_wal_appends_total",
			Help: "Total number of WAL entries appended, by kind",
		},
		[]string{"kind"},
	)

	WALAppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvstore_wal_append_duration_seconds",
			Help:    "Time to append and fsync one WAL entry",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_snapshots_total",
			Help: "Total number of mapping snapshots attempted, by outcome",
		},
		[]string{"outcome"},
	)

	IndexSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_index_snapshots_total",
			Help: "Total number of index snapshots attempted, by outcome",
		},
		[]string{"outcome"},
	)

	// Leader-strategy metrics.
	RaftTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kvstore_raft_term",
			Help: "Current election term",
		},
	)

	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kvstore_raft_is_leader",
			Help: "Whether this node believes itself to be the leader (1) or not (0)",
		},
	)

	RaftElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kvstore_raft_elections_total",
			Help: "Total number of elections this node has started",
		},
	)

	RaftQuorumWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kvstore_raft_quorum_write_duration_seconds",
			Help:    "Time from local apply to quorum acknowledgement",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Masterless-strategy metrics.
	ReplicationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kvstore_replication_queue_depth",
			Help: "Number of writes waiting for the next fan-out drain",
		},
	)

	ConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kvstore_conflicts_total",
			Help: "Total number of concurrent-write conflicts detected",
		},
	)

	// Dispatcher metrics.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_requests_total",
			Help: "Total number of wire requests handled, by command and status",
		},
		[]string{"command", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kvstore_request_duration_seconds",
			Help:    "Time to handle one wire request, by command",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

func init() {
	prometheus.MustRegister(
		KeysTotal,
		WALAppendsTotal,
		WALAppendDuration,
		SnapshotsTotal,
		IndexSnapshotsTotal,
		RaftTerm,
		RaftIsLeader,
		RaftElectionsTotal,
		RaftQuorumWriteDuration,
		ReplicationQueueDepth,
		ConflictsTotal,
		RequestsTotal,
		RequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a histogram observation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

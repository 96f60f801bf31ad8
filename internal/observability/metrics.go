package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	Ok   = "ok"
	Fail = "fail"
	Miss = "miss"
)

// Metrics holds the queue's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	operations       *prometheus.CounterVec
	depth            prometheus.Gauge
	walAppends       *prometheus.CounterVec
	replaySkipped    prometheus.Counter
	snapshotDuration prometheus.Histogram
	auditWrites      *prometheus.CounterVec
}

// NewMetrics creates collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketq_operations_total",
			Help: "Cumulative queue operations by name and result.",
		}, []string{"op", "result"}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ticketq_queue_depth",
			Help: "Number of tickets currently queued.",
		}),
		walAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketq_wal_appends_total",
			Help: "Cumulative write-ahead log appends by record type.",
		}, []string{"record"}),
		replaySkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ticketq_replay_skipped_lines_total",
			Help: "Cumulative malformed log lines skipped during replay.",
		}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticketq_snapshot_duration_seconds",
			Help:    "Time spent writing snapshots while holding the queue lock.",
			Buckets: prometheus.DefBuckets,
		}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketq_audit_writes_total",
			Help: "Cumulative audit writes by category and result.",
		}, []string{"category", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.depth, m.walAppends, m.replaySkipped, m.snapshotDuration, m.auditWrites)
	}
	return m
}

// RecordOperation increments the operation counter.
func (m *Metrics) RecordOperation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// SetDepth records the current queue length.
func (m *Metrics) SetDepth(n int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(n))
}

// RecordAppend counts one log record.
func (m *Metrics) RecordAppend(record string) {
	if m == nil {
		return
	}
	m.walAppends.WithLabelValues(record).Inc()
}

// RecordReplaySkipped counts malformed lines.
func (m *Metrics) RecordReplaySkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.replaySkipped.Add(float64(n))
}

// ObserveSnapshot records snapshot write latency.
func (m *Metrics) ObserveSnapshot(d time.Duration) {
	if m == nil {
		return
	}
	m.snapshotDuration.Observe(d.Seconds())
}

// RecordAudit counts an audit write attempt.
func (m *Metrics) RecordAudit(category string, ok bool) {
	if m == nil {
		return
	}
	result := Ok
	if !ok {
		result = Fail
	}
	m.auditWrites.WithLabelValues(category, result).Inc()
}

// Package audit records security-relevant events to one or more sinks. Audit
// writes are best effort: a failing sink is logged and never undoes the
// queue mutation that produced the entry.
package audit

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/observability"
)

// TimestampLayout formats Entry.Time in file records.
const TimestampLayout = "2006-01-02T15:04:05"

// Entry is one audit record.
type Entry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Category Category  `json:"category"`
	Detail   string    `json:"detail"`
	Host     string    `json:"host"`
	User     string    `json:"user"`
}

var recordEscaper = strings.NewReplacer(",", ";", "\r", " ", "\n", " ")

// Record renders e as `timestamp,detail,host,user`.
func (e Entry) Record() string {
	return strings.Join([]string{
		e.Time.Format(TimestampLayout),
		recordEscaper.Replace(e.Detail),
		recordEscaper.Replace(e.Host),
		recordEscaper.Replace(e.User),
	}, ",")
}

// Sink persists entries.
type Sink interface {
	Name() string
	Write(ctx context.Context, e Entry) error
}

// Logger fans entries out to its sinks.
type Logger struct {
	sinks   []Sink
	host    string
	now     func() time.Time
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customizes a Logger.
type Option func(*Logger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithHost overrides the host recorded on each entry.
func WithHost(host string) Option {
	return func(l *Logger) { l.host = host }
}

// WithMetrics counts writes per category.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// NewLogger builds an audit logger writing to sinks.
func NewLogger(logger *zap.Logger, sinks []Sink, opts ...Option) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	host, err := os.Hostname()
	if err != nil {
		host = "UNKNOWN_HOST"
	}
	l := &Logger{sinks: sinks, host: host, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogAuditEvent writes detail under category on behalf of caller. It reports
// whether every sink accepted the entry.
func (l *Logger) LogAuditEvent(ctx context.Context, caller domain.Caller, detail string, category Category) bool {
	e := Entry{
		ID:       uuid.NewString(),
		Time:     l.now(),
		Category: category,
		Detail:   detail,
		Host:     l.host,
		User:     caller.Name(),
	}

	ok := true
	for _, sink := range l.sinks {
		if err := sink.Write(ctx, e); err != nil {
			ok = false
			l.logger.Warn("audit write failed",
				zap.String("sink", sink.Name()),
				zap.String("category", string(category)),
				zap.Error(err))
		}
	}
	l.metrics.RecordAudit(string(category), ok)
	l.logger.Debug("audit", zap.String("category", string(category)), zap.String("record", e.Record()))
	return ok
}

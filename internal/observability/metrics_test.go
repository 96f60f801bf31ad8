package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/PlanetLumi/TicketSystem/internal/config"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordOperation("add", Ok)
	m.RecordOperation("add", Ok)
	m.RecordOperation("delete", Miss)
	m.SetDepth(3)
	m.RecordAppend("ADD")
	m.RecordReplaySkipped(2)
	m.RecordReplaySkipped(0)
	m.ObserveSnapshot(5 * time.Millisecond)
	m.RecordAudit("TCREATION", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("add", Ok)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("delete", Miss)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.depth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walAppends.WithLabelValues("ADD")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.replaySkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.auditWrites.WithLabelValues("TCREATION", Fail)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.snapshotDuration))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation("add", Ok)
		m.SetDepth(1)
		m.RecordAppend("ADD")
		m.RecordReplaySkipped(1)
		m.ObserveSnapshot(time.Second)
		m.RecordAudit("TUPDATE", true)
	})
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "nonsense"})
	assert.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}

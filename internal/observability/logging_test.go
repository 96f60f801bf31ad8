package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/PlanetLumi/TicketSystem/internal/config"
)

func TestLoggerWritesJSON(t *testing.T) {
	buf := &zaptest.Buffer{}
	logger, err := newLogger(config.LoggerConfig{Level: "DEBUG", Format: "json"}, buf)
	require.NoError(t, err)

	logger.Debug("queue replayed", zap.Int("tickets", 3))
	require.NoError(t, logger.Sync())

	lines := buf.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"level":"debug"`)
	assert.Contains(t, lines[0], `"logger":"ticketq"`)
	assert.Contains(t, lines[0], `"message":"queue replayed"`)
	assert.Contains(t, lines[0], `"tickets":3`)
}

func TestLoggerFallsBackToInfo(t *testing.T) {
	buf := &zaptest.Buffer{}
	logger, err := newLogger(config.LoggerConfig{Level: "chatty"}, buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown")

	lines := buf.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "unknown LOG_LEVEL")
	assert.Contains(t, lines[1], "shown")
}

func TestLoggerConsoleFormat(t *testing.T) {
	buf := &zaptest.Buffer{}
	logger, err := newLogger(config.LoggerConfig{Level: "info", Format: "console"}, buf)
	require.NoError(t, err)

	logger.Warn("snapshot denied")
	require.Len(t, buf.Lines(), 1)
	assert.Contains(t, buf.Lines()[0], "WARN")
	assert.Contains(t, buf.Lines()[0], "snapshot denied")

	_, err = newLogger(config.LoggerConfig{Format: "xml"}, buf)
	assert.Error(t, err)
}

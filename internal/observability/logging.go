package observability

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/PlanetLumi/TicketSystem/internal/config"
)

// LoggerName prefixes every entry.
const LoggerName = "ticketq"

// NewLogger builds the process logger on stderr; stdout carries command
// output. An unknown level falls back to info and is reported as the first
// entry.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	return newLogger(cfg, zapcore.Lock(os.Stderr))
}

func newLogger(cfg config.LoggerConfig, out zapcore.WriteSyncer) (*zap.Logger, error) {
	level, levelErr := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if levelErr != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.MessageKey = "message"
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, errors.Errorf("unknown LOG_FORMAT %q", cfg.Format)
	}

	logger := zap.New(zapcore.NewCore(enc, out, level), zap.ErrorOutput(out)).Named(LoggerName)
	if levelErr != nil {
		logger.Warn("unknown LOG_LEVEL; using info", zap.String("level", cfg.Level))
	}
	return logger, nil
}

package main

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/access"
	"github.com/PlanetLumi/TicketSystem/internal/audit"
	"github.com/PlanetLumi/TicketSystem/internal/config"
	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/events"
	"github.com/PlanetLumi/TicketSystem/internal/observability"
	"github.com/PlanetLumi/TicketSystem/internal/persistence"
	"github.com/PlanetLumi/TicketSystem/internal/queue"
	"github.com/PlanetLumi/TicketSystem/internal/sealed"
	"github.com/PlanetLumi/TicketSystem/internal/session"
	"github.com/PlanetLumi/TicketSystem/internal/snapshot"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// app holds the wired collaborators for one CLI invocation.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	fs         afero.Fs
	out        io.Writer
	registry   *prometheus.Registry
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	audit      *audit.Logger
	tokens     *session.TokenManager
	cipher     snapshot.Cipher
	queue      *queue.Queue
	closers    []func()
}

// newApp wires sinks and tokens. The queue itself is opened by openQueue so
// commands that never touch it do not replay the log.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, fs afero.Fs, out io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		fs:       fs,
		out:      out,
		registry: prometheus.NewRegistry(),
		tokens:   session.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL()),
	}
	a.metrics = observability.NewMetrics(a.registry)
	a.dispatcher = events.NewInMemoryDispatcher(logger)

	sinks, err := a.auditSinks(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.audit = audit.NewLogger(logger, sinks, audit.WithMetrics(a.metrics))
	audit.NewRecorder(a.dispatcher, a.audit, logger).RegisterHandlers()

	if a.cipher, err = snapshotCipher(cfg.Snapshot); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) auditSinks(ctx context.Context) ([]audit.Sink, error) {
	fileSink, err := audit.NewFileSink(a.fs, a.cfg.Audit.Dir)
	if err != nil {
		return nil, apperrors.NewStorageError("opening audit dir", err)
	}
	sinks := []audit.Sink{fileSink}

	if a.cfg.Audit.RedisEnabled {
		rdb, err := persistence.NewRedis(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		sinks = append(sinks, audit.NewRedisSink(rdb.Client, a.cfg.Audit.RedisKey))
	}
	if a.cfg.Audit.PostgresEnabled {
		pg, err := persistence.NewPostgres(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		sinks = append(sinks, audit.NewPostgresSink(pg.Pool))
	}
	return sinks, nil
}

// snapshotCipher builds the snapshot AEAD from a hex key or a passphrase.
// With neither configured, snapshots are disabled and the cipher is nil.
func snapshotCipher(cfg config.SnapshotConfig) (snapshot.Cipher, error) {
	var key []byte
	var err error
	switch {
	case cfg.Key != "":
		key, err = sealed.ParseHexKey(cfg.Key)
	case cfg.Passphrase != "":
		key, err = sealed.DeriveKey(cfg.Passphrase, cfg.Salt)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewValidationError("invalid snapshot key: "+err.Error(), nil)
	}
	aead, err := sealed.New(key)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid snapshot key: "+err.Error(), nil)
	}
	return aead, nil
}

func (a *app) queueOptions() queue.Options {
	capacity := a.cfg.Queue.Capacity
	if capacity == 0 {
		capacity = -1
	}
	return queue.Options{
		Capacity:     capacity,
		SnapshotPath: a.cfg.Queue.SnapshotPath,
		Cipher:       a.cipher,
		AutoSnapshot: a.cfg.Queue.AutoSnapshot,
		Logger:       a.logger,
		Metrics:      a.metrics,
		Dispatcher:   a.dispatcher,
	}
}

// openQueue rebuilds the queue from the log.
func (a *app) openQueue() (*queue.Queue, error) {
	if a.queue != nil {
		return a.queue, nil
	}
	if dir := filepath.Dir(a.cfg.Queue.LogPath); dir != "." {
		if err := a.fs.MkdirAll(dir, 0o700); err != nil {
			return nil, apperrors.NewStorageError("creating log dir", err)
		}
	}
	q, err := queue.ReplayFromLog(a.fs, a.cfg.Queue.LogPath, a.queueOptions())
	if err != nil {
		return nil, err
	}
	a.queue = q
	return q, nil
}

// caller resolves the session token.
func (a *app) caller(token string) (domain.Caller, error) {
	if token == "" {
		return domain.Caller{}, apperrors.NewForbidden("a session token is required; see `ticketq token`")
	}
	return a.tokens.Parse(token)
}

// authorize checks command against the caller's level and audits denials.
func (a *app) authorize(ctx context.Context, caller domain.Caller, command access.Command) error {
	if access.Allowed(caller, command) {
		return nil
	}
	a.metrics.RecordOperation(string(command), observability.Fail)
	_ = a.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAccessDenied,
		Actor:     events.ActorFrom(caller),
		Timestamp: time.Now().UTC(),
		Payload:   events.AccessDeniedPayload{Command: string(command)},
	})
	return apperrors.NewForbidden(string(command) + " requires " + access.RequiredLevel(command).String())
}

func (a *app) close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.Warn("closing queue", zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			a.logger.Warn("writing metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
}

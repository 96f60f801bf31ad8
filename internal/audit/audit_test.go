package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/events"
)

var (
	ctx  = context.Background()
	tess = domain.Caller{Username: "tess", Level: domain.SecurityLevelTopLevel}
)

func fixedClock() time.Time { return time.Date(2025, 4, 16, 9, 30, 0, 0, time.UTC) }

type fakePusher struct {
	key    string
	values []interface{}
	err    error
}

func (f *fakePusher) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "rpush", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.key = key
	f.values = append(f.values, values...)
	cmd.SetVal(int64(len(f.values)))
	return cmd
}

type fakeExecer struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ticket_creations.log", FileName(CategoryTCreation))
	assert.Equal(t, "ticket_close.log", FileName("tclose"))
	assert.Equal(t, "general_audit.log", FileName(CategoryAccessDenied))
	assert.Equal(t, "general_audit.log", FileName("SOMETHING"))
}

func TestFileSinkWritesPrimaryAndBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "/audit")
	require.NoError(t, err)

	l := NewLogger(nil, []Sink{sink}, WithClock(fixedClock), WithHost("desk-7"))
	assert.True(t, l.LogAuditEvent(ctx, tess, "User tess created ticket 1, urgent", CategoryTCreation))
	assert.True(t, l.LogAuditEvent(ctx, domain.Caller{}, "second", CategoryTCreation))

	primary, backup := sink.Paths(CategoryTCreation)
	assert.Equal(t, "/audit/ticket_creations.logprimary.txt", primary)
	for _, path := range []string{primary, backup} {
		raw, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		assert.Equal(t,
			"2025-04-16T09:30:00,User tess created ticket 1; urgent,desk-7,tess\n"+
				"2025-04-16T09:30:00,second,desk-7,anonymous\n",
			string(raw))
		info, err := fs.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, "-rw-------", info.Mode().Perm().String())
	}
}

func TestRedisSinkPushesJSON(t *testing.T) {
	pusher := &fakePusher{}
	l := NewLogger(nil, []Sink{NewRedisSink(pusher, "ticketq:audit")}, WithClock(fixedClock), WithHost("h"))
	require.True(t, l.LogAuditEvent(ctx, tess, "polled", CategoryTUpdate))

	assert.Equal(t, "ticketq:audit", pusher.key)
	require.Len(t, pusher.values, 1)
	var e Entry
	require.NoError(t, json.Unmarshal(pusher.values[0].([]byte), &e))
	assert.Equal(t, CategoryTUpdate, e.Category)
	assert.Equal(t, "tess", e.User)
	assert.NotEmpty(t, e.ID)
}

func TestPostgresSinkInserts(t *testing.T) {
	db := &fakeExecer{}
	l := NewLogger(nil, []Sink{NewPostgresSink(db)}, WithClock(fixedClock), WithHost("h"))
	require.True(t, l.LogAuditEvent(ctx, tess, "deleted", CategoryTDelete))

	assert.True(t, strings.HasPrefix(db.sql, "INSERT INTO audit_events"))
	require.Len(t, db.args, 6)
	assert.Equal(t, "TDELETE", db.args[2])
	assert.Equal(t, "tess", db.args[5])
}

func TestFailingSinkIsLoggedAndOthersStillWrite(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	good := &fakePusher{}
	bad := &fakeExecer{err: errors.New("connection refused")}
	l := NewLogger(zap.New(core), []Sink{NewPostgresSink(bad), NewRedisSink(good, "k")})

	assert.False(t, l.LogAuditEvent(ctx, tess, "x", CategoryTUpdate))
	assert.Len(t, good.values, 1)
	assert.Equal(t, 1, logs.FilterMessage("audit write failed").Len())
}

func TestRecorderAuditsQueueEvents(t *testing.T) {
	fs := afero.NewMemMapFs()
	sink, err := NewFileSink(fs, "/audit")
	require.NoError(t, err)

	d := events.NewInMemoryDispatcher(nil)
	NewRecorder(d, NewLogger(nil, []Sink{sink}, WithClock(fixedClock), WithHost("h")), nil).RegisterHandlers()

	actor := events.ActorFrom(tess)
	require.NoError(t, d.Publish(ctx, events.Event{ID: "1", Type: events.EventTicketCreated, TicketID: 3, Actor: actor}))
	require.NoError(t, d.Publish(ctx, events.Event{ID: "2", Type: events.EventSnapshotDenied, Actor: events.Actor{Username: "bob"}}))
	require.NoError(t, d.Publish(ctx, events.Event{
		ID: "3", Type: events.EventAccessDenied, Actor: events.Actor{Username: "bob"},
		Payload: events.AccessDeniedPayload{Command: "DELETE_TICKET"},
	}))

	primary, _ := sink.Paths(CategoryTCreation)
	raw, err := afero.ReadFile(fs, primary)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "User tess created ticket 3")

	primary, _ = sink.Paths(CategoryTClose)
	raw, err = afero.ReadFile(fs, primary)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Unauthorized snapshot attempt by user bob,h,bob")

	primary, _ = sink.Paths(CategoryAccessDenied)
	raw, err = afero.ReadFile(fs, primary)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "User bob denied DELETE_TICKET")
}

func TestDescribePriorityChange(t *testing.T) {
	category, detail := Describe(events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: 5,
		Actor:    events.Actor{Username: "ada"},
		Payload:  events.TicketPriorityChangedPayload{OldPriority: 4, NewPriority: 1},
	})
	assert.Equal(t, CategoryTUpdate, category)
	assert.Equal(t, "User ada updated ticket 5 priority 4 -> 1", detail)
}

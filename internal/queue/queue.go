// Package queue is the durable ticket priority queue. Every operation runs
// under one mutex; each mutation is appended to the write-ahead log before it
// is applied to the heap, and may be followed by a snapshot while the lock is
// still held.
package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/access"
	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/events"
	"github.com/PlanetLumi/TicketSystem/internal/observability"
	"github.com/PlanetLumi/TicketSystem/internal/snapshot"
	"github.com/PlanetLumi/TicketSystem/internal/wal"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

// DefaultCapacity bounds the heap when Options.Capacity is unset.
const DefaultCapacity = 10000

// ErrAlreadyClaimed is returned by Claim when the head ticket has an owner.
var ErrAlreadyClaimed = &apperrors.DomainError{Code: apperrors.CodeConflict, Message: "ticket already claimed"}

// Options configures a Queue.
type Options struct {
	// Capacity bounds the number of live tickets. Zero selects
	// DefaultCapacity; a negative value means unbounded.
	Capacity int
	// LogPath is the write-ahead log. Empty disables logging, which is only
	// appropriate for read-only inspection.
	LogPath string
	// SnapshotPath is where SaveSnapshot writes.
	SnapshotPath string
	// Cipher seals snapshots. Without one SaveSnapshot fails.
	Cipher snapshot.Cipher
	// AutoSnapshot saves after every successful mutation by an ADMIN or
	// TOPLEVEL caller.
	AutoSnapshot bool

	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher
	Clock      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Queue is a min-heap of tickets ordered by priority, durable via an
// append-only log. A Queue is safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	heap *heapStore
	ids  *domain.IDSequence
	log  *wal.Appender
	fs   afero.Fs
	opts Options

	// retired holds every id removed from the heap. Ids are unique for the
	// lifetime of the store, so none of these may be queued again.
	retired map[int64]struct{}
}

// New returns an empty queue. When opts.LogPath is set the log is opened for
// append; existing content is not replayed (see ReplayFromLog).
func New(fs afero.Fs, opts Options) (*Queue, error) {
	opts = opts.withDefaults()
	q := &Queue{
		heap:    newHeapStore(opts.Capacity),
		ids:     domain.NewIDSequence(0),
		fs:      fs,
		opts:    opts,
		retired: make(map[int64]struct{}),
	}
	if opts.LogPath != "" {
		appender, err := wal.OpenAppender(fs, opts.LogPath, wal.WithClock(opts.Clock))
		if err != nil {
			return nil, apperrors.NewStorageError("opening log", err)
		}
		q.log = appender
	}
	return q, nil
}

// ReplayFromLog rebuilds a queue from the log at path and keeps appending to
// it. Replayed records are not written back to the log. The id sequence
// resumes after the largest id the log mentions, and ids the log deleted stay
// retired.
func ReplayFromLog(fs afero.Fs, path string, opts Options) (*Queue, error) {
	opts = opts.withDefaults()
	opts.LogPath = path

	result, err := wal.ReplayFile(fs, path, opts.Logger)
	if err != nil {
		return nil, apperrors.NewStorageError("replaying log", err)
	}
	opts.Metrics.RecordReplaySkipped(result.Skipped)

	q, err := New(fs, opts)
	if err != nil {
		return nil, err
	}
	for i := range result.Tickets {
		t := result.Tickets[i]
		if err := q.heap.add(&t); err != nil {
			_ = q.Close()
			return nil, err
		}
	}
	q.retire(result.Deleted...)
	q.ids.Advance(result.MaxID)
	opts.Metrics.SetDepth(q.heap.len())

	opts.Logger.Info("queue replayed from log",
		zap.String("path", path),
		zap.Int("lines", result.Lines),
		zap.Int("applied", result.Applied),
		zap.Int("skipped", result.Skipped),
		zap.Int("tickets", q.heap.len()),
		zap.Int64("max_id", result.MaxID))
	return q, nil
}

// LoadSnapshot restores a queue from the snapshot at path. ok is false, with a
// nil error, when no snapshot exists. The log at opts.LogPath, if any, is
// opened for append but not replayed.
func LoadSnapshot(fs afero.Fs, path string, c snapshot.Cipher, opts Options) (*Queue, bool, error) {
	state, ok, err := snapshot.Load(fs, path, c)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeCorruptSnapshot {
			return nil, false, err
		}
		return nil, false, apperrors.NewStorageError("loading snapshot", err)
	} else if !ok {
		return nil, false, nil
	}

	opts.Cipher = c
	if opts.SnapshotPath == "" {
		opts.SnapshotPath = path
	}
	q, err := New(fs, opts)
	if err != nil {
		return nil, false, err
	}
	// Slot order is already a valid heap, so re-adding in order never swaps.
	for i := range state.Tickets {
		t := state.Tickets[i]
		if err := q.heap.add(&t); err != nil {
			_ = q.Close()
			return nil, false, err
		}
	}
	q.retire(state.Retired...)
	q.ids.Advance(state.MaxID)
	q.ids.Advance(q.heap.maxID())
	q.opts.Metrics.SetDepth(q.heap.len())
	return q, true, nil
}

// NewTicket builds a ticket with the next id and request type defaults. The
// ticket is not queued until Add.
func (q *Queue) NewTicket(in domain.TicketInput) domain.Ticket {
	return q.ids.NewTicket(in)
}

// Add queues t. It fails with ErrCapacityExceeded, or with ErrDuplicateID
// when the id is live or was removed earlier, before anything is logged. A
// failed log append is a storage error and leaves the heap unchanged.
func (q *Queue) Add(ctx context.Context, caller domain.Caller, t domain.Ticket) error {
	if t.ID <= 0 {
		return apperrors.NewValidationError("ticket id must be positive", map[string]any{"id": t.ID})
	} else if !t.SecurityLevel.Valid() {
		return apperrors.NewValidationError("invalid security level", map[string]any{"level": int(t.SecurityLevel)})
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusOpen
	}
	if t.Type == "" {
		t.Type = domain.RequestTypeOther
	}

	var pending []events.Event
	err := func() error {
		q.mu.Lock()
		defer q.mu.Unlock()

		if q.heap.full() {
			return apperrors.NewCapacityExceeded(q.heap.capacity)
		} else if _, exists := q.heap.findByID(t.ID); exists {
			return apperrors.NewDuplicateID(t.ID)
		} else if _, gone := q.retired[t.ID]; gone {
			return apperrors.NewDuplicateID(t.ID)
		}
		if err := q.appendLocked(wal.OpAdd, t); err != nil {
			return err
		}
		stored := t
		if err := q.heap.add(&stored); err != nil {
			return apperrors.NewInternalError(err)
		}
		q.ids.Advance(t.ID)

		pending = append(pending, q.event(events.EventTicketCreated, caller, t.ID, events.TicketCreatedPayload{
			Title:         t.Title,
			Priority:      t.Priority,
			SecurityLevel: t.SecurityLevel,
		}))
		pending = q.afterMutationLocked(caller, pending)
		return nil
	}()
	q.finish(ctx, "add", err, true, pending)
	return err
}

// Peek returns a copy of the root ticket.
func (q *Queue) Peek() (domain.Ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.heap.peek()
	if !ok {
		return domain.Ticket{}, false
	}
	return *t, true
}

// PollFiltered removes and returns the first ticket in heap slot order that
// caller may see. That is not necessarily the globally smallest visible
// priority. ok is false when nothing is visible.
func (q *Queue) PollFiltered(ctx context.Context, caller domain.Caller) (domain.Ticket, bool, error) {
	var (
		polled  domain.Ticket
		found   bool
		pending []events.Event
	)
	err := func() error {
		q.mu.Lock()
		defer q.mu.Unlock()

		i, ok := q.heap.firstVisible(caller.Level)
		if !ok {
			return nil
		}
		id := q.heap.items[i].ID
		if err := q.appendDeleteLocked(id); err != nil {
			return err
		}
		polled = *q.heap.removeAt(i)
		q.retire(id)
		found = true

		pending = append(pending, q.event(events.EventTicketPolled, caller, id, nil))
		pending = q.afterMutationLocked(caller, pending)
		return nil
	}()
	q.finish(ctx, "poll", err, found, pending)
	return polled, found, err
}

// FindByID returns the heap slot holding id.
func (q *Queue) FindByID(id int64) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.findByID(id)
}

// Get returns a copy of the ticket with id.
func (q *Queue) Get(id int64) (domain.Ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i, ok := q.heap.findByID(id)
	if !ok {
		return domain.Ticket{}, false
	}
	return *q.heap.items[i], true
}

// UpdatePriority changes the priority of ticket id. It returns false when id
// is not queued.
func (q *Queue) UpdatePriority(ctx context.Context, caller domain.Caller, id int64, priority int) (bool, error) {
	var (
		updated bool
		pending []events.Event
	)
	err := func() error {
		q.mu.Lock()
		defer q.mu.Unlock()

		i, ok := q.heap.findByID(id)
		if !ok {
			return nil
		}
		next := *q.heap.items[i]
		old := next.Priority
		next.Priority = priority
		if err := q.appendLocked(wal.OpUpdate, next); err != nil {
			return err
		}
		q.heap.updatePriority(i, priority)
		updated = true

		pending = append(pending, q.event(events.EventTicketPriorityChanged, caller, id, events.TicketPriorityChangedPayload{
			OldPriority: old,
			NewPriority: priority,
		}))
		pending = q.afterMutationLocked(caller, pending)
		return nil
	}()
	q.finish(ctx, "update", err, updated, pending)
	return updated, err
}

// Delete removes ticket id. It returns false when id is not queued.
func (q *Queue) Delete(ctx context.Context, caller domain.Caller, id int64) (bool, error) {
	_, ok, err := q.remove(ctx, caller, id, "delete", events.EventTicketDeleted, nil)
	return ok, err
}

// Claim assigns the root ticket to caller. Only TOPLEVEL callers may claim.
// It fails with ErrAlreadyClaimed if the root already has an owner.
func (q *Queue) Claim(ctx context.Context, caller domain.Caller) (domain.Ticket, error) {
	if !access.HasPrivilege(caller, domain.SecurityLevelTopLevel) {
		q.denied(ctx, caller, access.CommandAssignTicket)
		return domain.Ticket{}, apperrors.NewForbidden("claiming tickets requires TOPLEVEL")
	}

	var (
		claimed domain.Ticket
		pending []events.Event
	)
	err := func() error {
		q.mu.Lock()
		defer q.mu.Unlock()

		root, ok := q.heap.peek()
		if !ok {
			return apperrors.NewNotFound("ticket", nil)
		} else if root.Claimed() || !root.Status.CanAdvanceTo(domain.TicketStatusClaimed) {
			return ErrAlreadyClaimed
		}
		next := *root
		next.Owner = caller.Name()
		next.Status = domain.TicketStatusClaimed
		if err := q.appendLocked(wal.OpUpdate, next); err != nil {
			return err
		}
		*root = next
		claimed = next

		pending = append(pending, q.event(events.EventTicketClaimed, caller, next.ID, events.TicketClaimedPayload{Owner: next.Owner}))
		pending = q.afterMutationLocked(caller, pending)
		return nil
	}()
	q.finish(ctx, "claim", err, err == nil, pending)
	return claimed, err
}

// Complete closes ticket id by removing it from the queue. The returned copy
// carries status CLOSED. Only TOPLEVEL callers may complete, and a ticket that
// is already CLOSED is a conflict.
func (q *Queue) Complete(ctx context.Context, caller domain.Caller, id int64) (domain.Ticket, error) {
	if !access.HasPrivilege(caller, domain.SecurityLevelTopLevel) {
		q.denied(ctx, caller, access.CommandDeleteTicket)
		return domain.Ticket{}, apperrors.NewForbidden("completing tickets requires TOPLEVEL")
	}
	t, ok, err := q.remove(ctx, caller, id, "complete", events.EventTicketCompleted, func(t domain.Ticket) error {
		if !t.Status.CanAdvanceTo(domain.TicketStatusClosed) {
			return apperrors.NewConflict("ticket cannot be closed", map[string]any{"id": t.ID, "status": t.Status})
		}
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	} else if !ok {
		return domain.Ticket{}, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	t.Status = domain.TicketStatusClosed
	return t, nil
}

// remove deletes id under the lock. check, when set, may veto the removal
// before anything is logged.
func (q *Queue) remove(ctx context.Context, caller domain.Caller, id int64, op string, eventType events.EventType, check func(domain.Ticket) error) (domain.Ticket, bool, error) {
	var (
		removed domain.Ticket
		found   bool
		pending []events.Event
	)
	err := func() error {
		q.mu.Lock()
		defer q.mu.Unlock()

		i, ok := q.heap.findByID(id)
		if !ok {
			return nil
		}
		if check != nil {
			if err := check(*q.heap.items[i]); err != nil {
				return err
			}
		}
		if err := q.appendDeleteLocked(id); err != nil {
			return err
		}
		removed = *q.heap.removeAt(i)
		q.retire(id)
		found = true

		pending = append(pending, q.event(eventType, caller, id, nil))
		pending = q.afterMutationLocked(caller, pending)
		return nil
	}()
	q.finish(ctx, op, err, found, pending)
	return removed, found, err
}

// ListAccessible returns copies of every ticket visible at level, in heap
// slot order.
func (q *Queue) ListAccessible(level domain.SecurityLevel) []domain.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Ticket, 0, q.heap.len())
	for _, t := range q.heap.items {
		if access.Visible(*t, level) {
			out = append(out, *t)
		}
	}
	return out
}

// SearchAccessible is ListAccessible narrowed to titles containing query,
// ignoring case.
func (q *Queue) SearchAccessible(query string, level domain.SecurityLevel) []domain.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Ticket, 0)
	for _, t := range q.heap.items {
		if access.Visible(*t, level) && access.MatchesTitle(*t, query) {
			out = append(out, *t)
		}
	}
	return out
}

// SaveSnapshot writes the full queue to the snapshot path. Callers below
// ADMIN get false with a nil error and a snapshot_denied event.
func (q *Queue) SaveSnapshot(ctx context.Context, caller domain.Caller) (bool, error) {
	if !access.Allowed(caller, access.CommandSaveSnapshot) {
		q.opts.Logger.Warn("snapshot denied", zap.String("user", caller.Name()), zap.Stringer("level", caller.Level))
		q.opts.Metrics.RecordOperation("snapshot", observability.Fail)
		q.publish(ctx, []events.Event{q.event(events.EventSnapshotDenied, caller, 0, events.SnapshotPayload{Path: q.opts.SnapshotPath})})
		return false, nil
	}

	var pending []events.Event
	err := func() error {
		q.mu.Lock()
		defer q.mu.Unlock()
		ev, err := q.saveLocked(caller)
		if err != nil {
			return err
		}
		pending = append(pending, ev)
		return nil
	}()
	q.finish(ctx, "snapshot", err, err == nil, pending)
	return err == nil, err
}

// MaxID returns the largest live ticket id, or 0 when empty.
func (q *Queue) MaxID() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.maxID()
}

// LastIssuedID returns the id sequence high-water mark.
func (q *Queue) LastIssuedID() int64 {
	return q.ids.Current()
}

// Len returns the number of queued tickets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.len()
}

// IsEmpty reports whether the queue holds no tickets.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// All returns copies of every ticket in heap slot order.
func (q *Queue) All() []domain.Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.snapshot()
}

// Close releases the log. Later mutations fail with a storage error.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.log == nil {
		return nil
	}
	return q.log.Close()
}

func (q *Queue) retire(ids ...int64) {
	for _, id := range ids {
		q.retired[id] = struct{}{}
	}
}

func (q *Queue) retiredIDs() []int64 {
	out := make([]int64, 0, len(q.retired))
	for id := range q.retired {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (q *Queue) appendLocked(op wal.Op, t domain.Ticket) error {
	if q.log == nil {
		return nil
	}
	var err error
	switch op {
	case wal.OpAdd:
		err = q.log.AppendAdd(t)
	case wal.OpUpdate:
		err = q.log.AppendUpdate(t)
	}
	if err != nil {
		return apperrors.NewStorageError("log append", err)
	}
	q.opts.Metrics.RecordAppend(string(op))
	return nil
}

func (q *Queue) appendDeleteLocked(id int64) error {
	if q.log == nil {
		return nil
	}
	if err := q.log.AppendDelete(id); err != nil {
		return apperrors.NewStorageError("log append", err)
	}
	q.opts.Metrics.RecordAppend(string(wal.OpDelete))
	return nil
}

// afterMutationLocked runs the auto snapshot for privileged callers. Failures
// are logged and never undo the mutation.
func (q *Queue) afterMutationLocked(caller domain.Caller, pending []events.Event) []events.Event {
	q.opts.Metrics.SetDepth(q.heap.len())
	if !q.opts.AutoSnapshot || q.opts.Cipher == nil || q.opts.SnapshotPath == "" {
		return pending
	} else if !access.Allowed(caller, access.CommandSaveSnapshot) {
		return pending
	}
	ev, err := q.saveLocked(caller)
	if err != nil {
		q.opts.Logger.Error("auto snapshot failed", zap.String("path", q.opts.SnapshotPath), zap.Error(err))
		return pending
	}
	return append(pending, ev)
}

func (q *Queue) saveLocked(caller domain.Caller) (events.Event, error) {
	if q.opts.Cipher == nil {
		return events.Event{}, apperrors.NewValidationError("no snapshot key configured", nil)
	} else if q.opts.SnapshotPath == "" {
		return events.Event{}, apperrors.NewValidationError("no snapshot path configured", nil)
	}

	started := time.Now()
	state := snapshot.State{
		SavedAt: q.opts.Clock().Unix(),
		MaxID:   q.ids.Current(),
		Tickets: q.heap.snapshot(),
		Retired: q.retiredIDs(),
	}
	if err := snapshot.Save(q.fs, q.opts.SnapshotPath, state, q.opts.Cipher); err != nil {
		return events.Event{}, apperrors.NewStorageError("snapshot save", err)
	}
	q.opts.Metrics.ObserveSnapshot(time.Since(started))
	q.opts.Logger.Info("snapshot saved",
		zap.String("path", q.opts.SnapshotPath),
		zap.Int("tickets", len(state.Tickets)),
		zap.String("user", caller.Name()))

	return q.event(events.EventSnapshotSaved, caller, 0, events.SnapshotPayload{
		Path:    q.opts.SnapshotPath,
		Tickets: len(state.Tickets),
	}), nil
}

func (q *Queue) denied(ctx context.Context, caller domain.Caller, command access.Command) {
	q.opts.Metrics.RecordOperation(string(command), observability.Fail)
	q.publish(ctx, []events.Event{q.event(events.EventAccessDenied, caller, 0, events.AccessDeniedPayload{Command: string(command)})})
}

func (q *Queue) event(eventType events.EventType, caller domain.Caller, ticketID int64, payload interface{}) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.ActorFrom(caller),
		Timestamp: q.opts.Clock().UTC(),
		Payload:   payload,
	}
}

// finish records the outcome and publishes pending events. It must be called
// without the lock held: audit sinks do their own I/O.
func (q *Queue) finish(ctx context.Context, op string, err error, hit bool, pending []events.Event) {
	switch {
	case err != nil:
		q.opts.Metrics.RecordOperation(op, observability.Fail)
		q.opts.Logger.Warn("queue operation failed", zap.String("op", op), zap.Error(err))
	case !hit:
		q.opts.Metrics.RecordOperation(op, observability.Miss)
	default:
		q.opts.Metrics.RecordOperation(op, observability.Ok)
	}
	q.publish(ctx, pending)
}

func (q *Queue) publish(ctx context.Context, pending []events.Event) {
	if q.opts.Dispatcher == nil {
		return
	}
	for _, ev := range pending {
		_ = q.opts.Dispatcher.Publish(ctx, ev)
	}
}

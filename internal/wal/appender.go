package wal

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

// Appender writes one line per mutation to an append-mode file. Every call
// is a single write followed by Sync; nothing is buffered across calls.
type Appender struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	file afero.File
	now  func() time.Time
}

// AppenderOption customizes an Appender.
type AppenderOption func(*Appender)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) AppenderOption {
	return func(a *Appender) { a.now = now }
}

// OpenAppender opens path for appending, creating it if needed.
func OpenAppender(fs afero.Fs, path string, opts ...AppenderOption) (*Appender, error) {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening log %s", path)
	}
	a := &Appender{fs: fs, path: path, file: f, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Path returns the log file path.
func (a *Appender) Path() string { return a.path }

// AppendAdd records a newly inserted ticket.
func (a *Appender) AppendAdd(t domain.Ticket) error {
	return a.append(Record{Op: OpAdd, Ticket: t})
}

// AppendUpdate records the full current state of a mutated ticket.
func (a *Appender) AppendUpdate(t domain.Ticket) error {
	return a.append(Record{Op: OpUpdate, Ticket: t})
}

// AppendDelete records the removal of id.
func (a *Appender) AppendDelete(id int64) error {
	return a.append(Record{Op: OpDelete, Ticket: domain.Ticket{ID: id}})
}

func (a *Appender) append(r Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return errors.Errorf("log %s is closed", a.path)
	}
	r.Timestamp = a.now()
	if _, err := a.file.WriteString(Format(r) + "\n"); err != nil {
		return errors.WithMessagef(err, "appending %s to %s", r.Op, a.path)
	}
	if err := a.file.Sync(); err != nil {
		return errors.WithMessagef(err, "syncing %s", a.path)
	}
	return nil
}

// Close releases the file handle. Further appends fail.
func (a *Appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return errors.WithMessage(err, "closing log")
}

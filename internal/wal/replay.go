package wal

import (
	"bufio"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

const maxLineBytes = 1 << 20

// ReplayResult is the folded end state of a log.
type ReplayResult struct {
	// Tickets holds the surviving record per id, ordered by id.
	Tickets []domain.Ticket
	// MaxID is the largest id mentioned by any well-formed line, including
	// ids that were later deleted.
	MaxID int64
	// Deleted lists, in ascending order, ids removed by a DELETE line and not
	// live at the end of the log. They must never be queued again.
	Deleted []int64
	Lines   int
	Applied int
	Skipped int
}

// Replay folds the log read from r. ADD and UPDATE upsert, DELETE removes,
// in arrival order. Malformed lines are logged and skipped; only a read
// failure aborts.
func Replay(r io.Reader, logger *zap.Logger) (ReplayResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		result  ReplayResult
		latest  = make(map[int64]domain.Ticket)
		deleted = make(map[int64]struct{})
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		result.Lines++
		line := scanner.Text()
		if line == "" {
			continue
		}

		rec, ok, err := Parse(line, result.Lines)
		if err != nil {
			result.Skipped++
			logger.Warn("skipping malformed log line", zap.Int("line", result.Lines), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if rec.Ticket.ID > result.MaxID {
			result.MaxID = rec.Ticket.ID
		}
		switch rec.Op {
		case OpAdd, OpUpdate:
			latest[rec.Ticket.ID] = rec.Ticket
		case OpDelete:
			delete(latest, rec.Ticket.ID)
			deleted[rec.Ticket.ID] = struct{}{}
		}
		result.Applied++
	}
	if err := scanner.Err(); err != nil {
		return ReplayResult{}, errors.WithMessage(err, "reading log")
	}

	result.Tickets = make([]domain.Ticket, 0, len(latest))
	for _, t := range latest {
		result.Tickets = append(result.Tickets, t)
	}
	sort.Slice(result.Tickets, func(i, j int) bool {
		return result.Tickets[i].ID < result.Tickets[j].ID
	})

	result.Deleted = make([]int64, 0, len(deleted))
	for id := range deleted {
		if _, live := latest[id]; !live {
			result.Deleted = append(result.Deleted, id)
		}
	}
	sort.Slice(result.Deleted, func(i, j int) bool { return result.Deleted[i] < result.Deleted[j] })
	return result, nil
}

// ReplayFile replays the log at path. A missing file is an empty log.
func ReplayFile(fs afero.Fs, path string, logger *zap.Logger) (ReplayResult, error) {
	f, err := fs.Open(path)
	if os.IsNotExist(err) {
		return ReplayResult{Tickets: []domain.Ticket{}, Deleted: []int64{}}, nil
	} else if err != nil {
		return ReplayResult{}, errors.WithMessagef(err, "opening log %s", path)
	}
	defer f.Close()

	result, err := Replay(f, logger)
	if err != nil {
		return ReplayResult{}, errors.WithMessagef(err, "replaying %s", path)
	}
	return result, nil
}

package wal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

// Op names the mutation a line records.
type Op string

const (
	OpAdd    Op = "ADD"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// TimestampLayout is the local-time format of the first field.
const TimestampLayout = "2006-01-02T15:04:05"

const (
	minFields       = 3
	minTicketFields = 8
	typeField       = 8
)

var newlines = regexp.MustCompile(`[\r\n]+`)

// Sanitize makes a free-text value safe to embed in a line.
func Sanitize(s string) string {
	return newlines.ReplaceAllString(strings.ReplaceAll(s, ",", ";"), " ")
}

// Unsanitize reverses the comma substitution made by Sanitize.
func Unsanitize(s string) string {
	return strings.ReplaceAll(s, ";", ",")
}

// Record is one parsed line. Ticket carries only the ID for OpDelete.
type Record struct {
	Timestamp time.Time
	Op        Op
	Ticket    domain.Ticket
}

// Format renders r as a single line without the trailing newline.
func Format(r Record) string {
	ts := r.Timestamp.Format(TimestampLayout)
	if r.Op == OpDelete {
		return fmt.Sprintf("%s,%s,%d", ts, OpDelete, r.Ticket.ID)
	}
	t := r.Ticket
	rt := t.Type
	if rt == "" {
		rt = domain.RequestTypeOther
	}
	return fmt.Sprintf("%s,%s,%d,%s,%s,%d,%s,%s,%s",
		ts,
		r.Op,
		t.ID,
		Sanitize(t.Title),
		Sanitize(t.Creator),
		t.Priority,
		Sanitize(t.Owner),
		t.SecurityLevel,
		rt,
	)
}

// MalformedLineError explains why a line could not be replayed.
type MalformedLineError struct {
	Line   int
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Parse decodes one line. lineNo is only used in errors. Unknown operations
// are reported with ok=false and no error so callers can ignore them. The
// request type column is optional; lines written without it read as OTHER.
func Parse(line string, lineNo int) (rec Record, ok bool, err error) {
	parts := strings.Split(strings.TrimRight(line, "\r"), ",")
	if len(parts) < minFields {
		return Record{}, false, &MalformedLineError{Line: lineNo, Reason: "fewer than 3 fields"}
	}

	op := Op(strings.TrimSpace(parts[1]))
	id, convErr := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if convErr != nil {
		return Record{}, false, &MalformedLineError{Line: lineNo, Reason: "invalid ticket id"}
	}
	ts, _ := time.ParseInLocation(TimestampLayout, strings.TrimSpace(parts[0]), time.Local)

	switch op {
	case OpDelete:
		return Record{Timestamp: ts, Op: op, Ticket: domain.Ticket{ID: id}}, true, nil
	case OpAdd, OpUpdate:
		if len(parts) < minTicketFields {
			return Record{}, false, &MalformedLineError{Line: lineNo, Reason: "fewer than 8 fields"}
		}
		priority, convErr := strconv.Atoi(strings.TrimSpace(parts[5]))
		if convErr != nil {
			return Record{}, false, &MalformedLineError{Line: lineNo, Reason: "invalid priority"}
		}
		level, convErr := domain.ParseSecurityLevel(parts[7])
		if convErr != nil {
			return Record{}, false, &MalformedLineError{Line: lineNo, Reason: "invalid security level"}
		}
		t, convErr := domain.NewTicketWithID(id,
			Unsanitize(strings.TrimSpace(parts[3])),
			Unsanitize(strings.TrimSpace(parts[4])),
			priority,
			level,
		)
		if convErr != nil {
			return Record{}, false, &MalformedLineError{Line: lineNo, Reason: convErr.Error()}
		}
		if len(parts) > typeField && strings.TrimSpace(parts[typeField]) != "" {
			rt, convErr := domain.ParseRequestType(parts[typeField])
			if convErr != nil {
				return Record{}, false, &MalformedLineError{Line: lineNo, Reason: "invalid request type"}
			}
			t.Type = rt
		}
		if owner := Unsanitize(strings.TrimSpace(parts[6])); owner != "" {
			t.Owner = owner
			t.Status = domain.TicketStatusClaimed
		}
		return Record{Timestamp: ts, Op: op, Ticket: t}, true, nil
	default:
		return Record{}, false, nil
	}
}

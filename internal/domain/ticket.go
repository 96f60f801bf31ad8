package domain

import (
	"fmt"
	"strings"
)

// TicketStatus enumerates lifecycle states for tickets. Tickets only move
// forward: OPEN -> CLAIMED -> CLOSED.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusClaimed TicketStatus = "CLAIMED"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

func (s TicketStatus) rank() int {
	switch s {
	case TicketStatusOpen:
		return 0
	case TicketStatusClaimed:
		return 1
	case TicketStatusClosed:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next is a forward step.
func (s TicketStatus) CanAdvanceTo(next TicketStatus) bool {
	return next.rank() > s.rank() && s.rank() >= 0
}

// Ticket is a support request ordered by Priority (lower is more urgent).
// ID, Title and Creator are fixed at construction; the remaining fields are
// mutated by the queue while it holds its lock.
type Ticket struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	Creator       string        `json:"creator"`
	Owner         string        `json:"owner,omitempty"`
	Priority      int           `json:"priority"`
	SecurityLevel SecurityLevel `json:"security_level"`
	Status        TicketStatus  `json:"status"`
	Type          RequestType   `json:"type"`
}

// NewTicketWithID builds a ticket whose identity is already known, e.g. one
// recovered from the write-ahead log. The id is taken as given and is never
// drawn from an IDSequence.
func NewTicketWithID(id int64, title, creator string, priority int, level SecurityLevel) (Ticket, error) {
	if id <= 0 {
		return Ticket{}, fmt.Errorf("ticket id must be positive, got %d", id)
	}
	if !level.Valid() {
		return Ticket{}, fmt.Errorf("invalid security level %d", level)
	}
	return Ticket{
		ID:            id,
		Title:         title,
		Creator:       creator,
		Priority:      priority,
		SecurityLevel: level,
		Status:        TicketStatusOpen,
		Type:          RequestTypeOther,
	}, nil
}

// Claimed reports whether an owner has been assigned.
func (t Ticket) Claimed() bool {
	return strings.TrimSpace(t.Owner) != ""
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket[ID=%d, title='%s', priority=%d]", t.ID, t.Title, t.Priority)
}

// TicketInput describes a new ticket before an id is assigned. Nil Priority
// and SecurityLevel fall back to the RequestType defaults.
type TicketInput struct {
	Type          RequestType
	Title         string
	Creator       string
	Priority      *int
	SecurityLevel *SecurityLevel
}

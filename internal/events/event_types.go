package events

import (
	"time"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketClaimed         EventType = "ticket_claimed"
	EventTicketDeleted         EventType = "ticket_deleted"
	EventTicketPolled          EventType = "ticket_polled"
	EventTicketCompleted       EventType = "ticket_completed"
	EventSnapshotSaved         EventType = "snapshot_saved"
	EventSnapshotDenied        EventType = "snapshot_denied"
	EventAccessDenied          EventType = "access_denied"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Username string               `json:"username"`
	Level    domain.SecurityLevel `json:"level"`
}

// Event represents a queue event emitted after the queue lock is released.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// ActorFrom converts a caller into event actor metadata.
func ActorFrom(caller domain.Caller) Actor {
	return Actor{Username: caller.Name(), Level: caller.Level}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title         string               `json:"title"`
	Priority      int                  `json:"priority"`
	SecurityLevel domain.SecurityLevel `json:"security_level"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority int `json:"old_priority"`
	NewPriority int `json:"new_priority"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	Owner string `json:"owner"`
}

// SnapshotPayload payload.
type SnapshotPayload struct {
	Path    string `json:"path"`
	Tickets int    `json:"tickets"`
}

// AccessDeniedPayload payload.
type AccessDeniedPayload struct {
	Command string `json:"command"`
}

package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
	"github.com/PlanetLumi/TicketSystem/internal/events"
)

// Recorder turns queue events into audit entries.
type Recorder struct {
	dispatcher events.Dispatcher
	audit      *Logger
	logger     *zap.Logger
}

// NewRecorder creates the recorder.
func NewRecorder(dispatcher events.Dispatcher, audit *Logger, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{dispatcher: dispatcher, audit: audit, logger: logger}
}

// RegisterHandlers subscribes to events.
func (r *Recorder) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(events.EventTicketCreated, r.handle)
	r.dispatcher.Subscribe(events.EventTicketPriorityChanged, r.handle)
	r.dispatcher.Subscribe(events.EventTicketClaimed, r.handle)
	r.dispatcher.Subscribe(events.EventTicketPolled, r.handle)
	r.dispatcher.Subscribe(events.EventTicketDeleted, r.handle)
	r.dispatcher.Subscribe(events.EventTicketCompleted, r.handle)
	r.dispatcher.Subscribe(events.EventSnapshotSaved, r.handle)
	r.dispatcher.Subscribe(events.EventSnapshotDenied, r.handle)
	r.dispatcher.Subscribe(events.EventAccessDenied, r.handle)
}

func (r *Recorder) handle(ctx context.Context, event events.Event) error {
	category, detail := Describe(event)
	caller := domain.Caller{Username: event.Actor.Username, Level: event.Actor.Level}
	if !r.audit.LogAuditEvent(ctx, caller, detail, category) {
		return fmt.Errorf("audit %s for event %s incomplete", category, event.ID)
	}
	return nil
}

// Describe maps an event to its audit category and detail text.
func Describe(event events.Event) (Category, string) {
	actor := event.Actor.Username
	switch event.Type {
	case events.EventTicketCreated:
		return CategoryTCreation, fmt.Sprintf("User %s created ticket %d", actor, event.TicketID)
	case events.EventTicketPriorityChanged:
		detail := fmt.Sprintf("User %s updated ticket %d", actor, event.TicketID)
		if p, ok := event.Payload.(events.TicketPriorityChangedPayload); ok {
			detail = fmt.Sprintf("%s priority %d -> %d", detail, p.OldPriority, p.NewPriority)
		}
		return CategoryTUpdate, detail
	case events.EventTicketClaimed:
		return CategoryTUpdate, fmt.Sprintf("User %s claimed ticket %d", actor, event.TicketID)
	case events.EventTicketPolled:
		return CategoryTUpdate, fmt.Sprintf("User %s polled ticket %d", actor, event.TicketID)
	case events.EventTicketDeleted:
		return CategoryTDelete, fmt.Sprintf("User %s deleted ticket %d", actor, event.TicketID)
	case events.EventTicketCompleted:
		return CategoryTClose, fmt.Sprintf("User %s closed ticket %d", actor, event.TicketID)
	case events.EventSnapshotSaved:
		return CategoryTClose, fmt.Sprintf("User %s completed snapshot", actor)
	case events.EventSnapshotDenied:
		return CategoryTClose, fmt.Sprintf("Unauthorized snapshot attempt by user %s", actor)
	case events.EventAccessDenied:
		detail := fmt.Sprintf("User %s denied", actor)
		if p, ok := event.Payload.(events.AccessDeniedPayload); ok {
			detail = fmt.Sprintf("User %s denied %s", actor, p.Command)
		}
		return CategoryAccessDenied, detail
	default:
		return Category(event.Type), fmt.Sprintf("User %s %s", actor, event.Type)
	}
}

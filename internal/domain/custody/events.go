package custody

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPlacementCreated   EventType = "placement_request.created"
	EventPlacementCancelled EventType = "placement_request.cancelled"
	EventPlacementExpired   EventType = "placement_request.expired"
	EventPlacementFulfilled EventType = "placement_request.fulfilled"

	EventTransferCreated   EventType = "transfer_request.created"
	EventTransferAccepted  EventType = "transfer_request.accepted"
	EventTransferRejected  EventType = "transfer_request.rejected"
	EventTransferCancelled EventType = "transfer_request.cancelled"

	EventHandoverInitiated EventType = "handover.initiated"
	EventHandoverConfirmed EventType = "handover.confirmed"
	EventHandoverDisputed  EventType = "handover.disputed"
	EventHandoverCompleted EventType = "handover.completed"
	EventHandoverCanceled  EventType = "handover.canceled"

	EventReturnInitiated EventType = "return_handover.initiated"
	EventReturnConfirmed EventType = "return_handover.confirmed"
	EventReturnDisputed  EventType = "return_handover.disputed"
	EventReturnCompleted EventType = "return_handover.completed"

	EventOwnershipTransferred EventType = "ownership.transferred"

	EventFosterStarted     EventType = "foster_assignment.started"
	EventFosterCompleted   EventType = "foster_assignment.completed"
	EventFosterCanceled    EventType = "foster_assignment.canceled"
	EventFosterReactivated EventType = "foster_assignment.reactivated"
	EventFosterExtended    EventType = "foster_assignment.extended"
)

// Event es un hecho de dominio emitido por una transición.
// Se persiste con la transacción (timeline de la mascota) y se despacha
// como notificación a Recipients después del commit.
type Event struct {
	ID   string
	Type EventType

	PetID      string
	EntityType string
	EntityID   string

	ActorUserID string
	Recipients  []string

	Message string
	Link    string

	OccurredAt time.Time
}

// Recorder junta los eventos de una transacción.
type Recorder struct {
	now    time.Time
	events []Event
}

func NewRecorder(now time.Time) *Recorder {
	return &Recorder{now: now}
}

func (r *Recorder) Record(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now
	}
	e.Recipients = uniqueNonEmpty(e.Recipients)
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func uniqueNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

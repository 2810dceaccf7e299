package dispatch

import (
	"context"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/platform/logger"
	"pet-custody/internal/platform/metrics"
	"pet-custody/internal/ports/notifications"
)

// Dispatcher es el único consumidor de eventos de custodia: cuenta cada
// evento y manda una notificación por destinatario. Best-effort: un fallo se
// loguea y no afecta la transición que ya se confirmó.
type Dispatcher struct {
	sender notifications.Sender
	log    logger.Logger
}

func New(sender notifications.Sender, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Dispatcher{sender: sender, log: log}
}

var _ custody.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) Dispatch(ctx context.Context, events []custody.Event) {
	for _, e := range events {
		metrics.CustodyEventsTotal.WithLabelValues(string(e.Type)).Inc()

		if d.sender == nil {
			continue
		}
		for _, recipient := range e.Recipients {
			d.send(ctx, e, recipient)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, e custody.Event, recipient string) {
	defer func() {
		// Un sender que hace panic tampoco puede tirar la request.
		if r := recover(); r != nil {
			metrics.NotificationErrorsTotal.WithLabelValues(string(e.Type)).Inc()
			d.log.Error("notification sender panicked", map[string]any{
				"event_id": e.ID, "type": string(e.Type), "recipient": recipient, "panic": r,
			})
		}
	}()

	err := d.sender.Send(ctx, notifications.Notification{
		RecipientUserID: recipient,
		Type:            string(e.Type),
		Message:         e.Message,
		Link:            e.Link,
		Data: map[string]string{
			"event_id":    e.ID,
			"pet_id":      e.PetID,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID,
			"actor_id":    e.ActorUserID,
		},
	})
	if err != nil {
		metrics.NotificationErrorsTotal.WithLabelValues(string(e.Type)).Inc()
		d.log.Warn("notification failed", map[string]any{
			"event_id":  e.ID,
			"type":      string(e.Type),
			"recipient": recipient,
			"error":     err.Error(),
		})
		return
	}
	metrics.NotificationsSentTotal.Inc()
}

// Package logsender es el Sender por defecto en dev: escribe la notificación
// en el log en lugar de entregarla.
package logsender

import (
	"context"

	"pet-custody/internal/platform/logger"
	"pet-custody/internal/ports/notifications"
)

type Sender struct {
	log logger.Logger
}

var _ notifications.Sender = (*Sender)(nil)

func New(log logger.Logger) *Sender {
	if log == nil {
		log = logger.NewNop()
	}
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, n notifications.Notification) error {
	fields := map[string]any{
		"recipient": n.RecipientUserID,
		"type":      n.Type,
		"message":   n.Message,
		"link":      n.Link,
	}
	for k, v := range n.Data {
		fields["data."+k] = v
	}
	s.log.Info("notification", fields)
	return nil
}

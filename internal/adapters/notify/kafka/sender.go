// Package kafka publica notificaciones en un tópico; el servicio de push/email
// las consume del otro lado.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pet-custody/internal/platform/logger"
	"pet-custody/internal/platform/metrics"
	"pet-custody/internal/ports/notifications"

	skafka "github.com/segmentio/kafka-go"
)

// messageWriter es el subconjunto de *skafka.Writer que usamos (fake en tests).
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

type Sender struct {
	writer messageWriter
	log    logger.Logger
}

var _ notifications.Sender = (*Sender)(nil)

// NewSender arma un writer asíncrono: WriteMessages solo encola y vuelve, así
// la request que confirmó la transición no espera al broker. Los errores de
// entrega llegan a Completion, que los loguea y cuenta.
func NewSender(brokers []string, topic string, log logger.Logger) *Sender {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Sender{log: log}
	s.writer = &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        true,
		Completion:   s.completion,
	}
	return s
}

func newSenderWithWriter(w messageWriter, log logger.Logger) *Sender {
	if log == nil {
		log = logger.NewNop()
	}
	return &Sender{writer: w, log: log}
}

// completion corre en la goroutine del writer después de cada batch.
func (s *Sender) completion(msgs []skafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		typ := headerValue(m, "type")
		metrics.NotificationErrorsTotal.WithLabelValues(typ).Inc()
		s.log.Warn("kafka delivery failed", map[string]any{
			"type":      typ,
			"recipient": string(m.Key),
			"error":     err.Error(),
		})
	}
}

func headerValue(m skafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type payload struct {
	RecipientUserID string            `json:"recipient_user_id"`
	Type            string            `json:"type"`
	Message         string            `json:"message"`
	Link            string            `json:"link,omitempty"`
	Data            map[string]string `json:"data,omitempty"`
}

// Send usa el destinatario como key: todas las notificaciones de un usuario
// caen en la misma partición y mantienen el orden.
func (s *Sender) Send(ctx context.Context, n notifications.Notification) error {
	b, err := json.Marshal(payload{
		RecipientUserID: n.RecipientUserID,
		Type:            n.Type,
		Message:         n.Message,
		Link:            n.Link,
		Data:            n.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := skafka.Message{
		Key:   []byte(n.RecipientUserID),
		Value: b,
		Headers: []skafka.Header{
			{Key: "type", Value: []byte(n.Type)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (s *Sender) Close() error {
	return s.writer.Close()
}

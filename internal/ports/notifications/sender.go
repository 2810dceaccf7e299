package notifications

import "context"

// Notification es lo que se entrega a un usuario. El transporte (push, email,
// cola) queda del otro lado de esta interfaz.
type Notification struct {
	RecipientUserID string
	Type            string
	Message         string
	Link            string
	Data            map[string]string
}

//go:generate mockgen -source=sender.go -destination=mocks/mock_sender.go -package=mocks

// Sender entrega una notificación. Los errores se loguean, no se propagan.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

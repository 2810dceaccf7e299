package pets

import "context"

// Repository devuelve ErrNotFound cuando la mascota no existe; cualquier otro
// error es de infraestructura.
type Repository interface {
	// Create registra la mascota y abre su primer período de propiedad
	// en la misma transacción.
	Create(ctx context.Context, p Pet) error
	// UpdateStatus lee la mascota bloqueada junto con su dueño actual según el
	// historial, aplica fn y guarda, todo en una transacción.
	UpdateStatus(ctx context.Context, petID string, fn func(p *Pet, currentOwnerUserID string) error) (Pet, error)
	GetByID(ctx context.Context, id string) (Pet, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error)
}

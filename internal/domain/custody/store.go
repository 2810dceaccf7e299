package custody

import (
	"context"
	"time"

	"pet-custody/internal/domain/pets"
)

// Store abre unidades de trabajo atómicas sobre todas las entidades de custodia.
//
// Dentro de WithinTx cada Get* bloquea la fila leída hasta el commit, de modo
// que "verificar estado y actualizar" es una sola escritura condicional.
// Si fn devuelve error no queda ningún efecto parcial.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// View ejecuta lecturas sin bloquear filas. Las escrituras no se confirman.
	View(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	PetStore
	PlacementStore
	TransferStore
	HandoverStore
	ReturnHandoverStore
	FosterStore
	OwnershipStore
	EventStore
}

type PetStore interface {
	GetPet(ctx context.Context, petID string) (pets.Pet, error)
	SetPetOwner(ctx context.Context, petID, ownerUserID string, at time.Time) error
}

type PlacementFilter struct {
	PetID      string
	ActiveOnly bool
	// ExpiredAt filtra requests abiertos con ExpiresAt <= ExpiredAt.
	ExpiredAt *time.Time
}

type PlacementStore interface {
	// CreatePlacementRequest devuelve ErrDuplicate si ya existe uno activo para (pet, type).
	CreatePlacementRequest(ctx context.Context, p PlacementRequest) error
	GetPlacementRequest(ctx context.Context, id string) (PlacementRequest, error)
	UpdatePlacementRequest(ctx context.Context, p PlacementRequest) error
	ListPlacementRequests(ctx context.Context, f PlacementFilter) ([]PlacementRequest, error)
}

type TransferFilter struct {
	PlacementRequestID string
	UserID             string // initiator o recipient
	Status             TransferStatus
}

type TransferStore interface {
	// CreateTransferRequest devuelve ErrDuplicate si el helper ya tiene una oferta pendiente.
	CreateTransferRequest(ctx context.Context, t TransferRequest) error
	GetTransferRequest(ctx context.Context, id string) (TransferRequest, error)
	UpdateTransferRequest(ctx context.Context, t TransferRequest) error
	ListTransferRequests(ctx context.Context, f TransferFilter) ([]TransferRequest, error)
}

type HandoverStore interface {
	// CreateTransferHandover devuelve ErrDuplicate si el transfer ya tiene un handover abierto.
	CreateTransferHandover(ctx context.Context, h TransferHandover) error
	GetTransferHandover(ctx context.Context, id string) (TransferHandover, error)
	UpdateTransferHandover(ctx context.Context, h TransferHandover) error
	ListTransferHandovers(ctx context.Context, transferRequestID string) ([]TransferHandover, error)
}

type ReturnHandoverStore interface {
	// CreateReturnHandover devuelve ErrDuplicate si la asignación ya tiene una devolución abierta.
	CreateReturnHandover(ctx context.Context, h FosterReturnHandover) error
	GetReturnHandover(ctx context.Context, id string) (FosterReturnHandover, error)
	UpdateReturnHandover(ctx context.Context, h FosterReturnHandover) error
}

type FosterFilter struct {
	PetID  string
	UserID string // owner o foster
	Status FosterStatus
}

type FosterStore interface {
	// UpsertFosterAssignment inserta por clave natural (pet, owner, foster, transfer)
	// o devuelve la existente. created indica si hubo inserción.
	UpsertFosterAssignment(ctx context.Context, a FosterAssignment) (out FosterAssignment, created bool, err error)
	GetFosterAssignment(ctx context.Context, id string) (FosterAssignment, error)
	UpdateFosterAssignment(ctx context.Context, a FosterAssignment) error
	ListFosterAssignments(ctx context.Context, f FosterFilter) ([]FosterAssignment, error)
}

type OwnershipFilter struct {
	PetID    string
	UserID   string
	OpenOnly bool
}

type OwnershipStore interface {
	// InsertOwnershipPeriod devuelve ErrDuplicate si ya hay un período abierto para (pet, user).
	InsertOwnershipPeriod(ctx context.Context, p OwnershipPeriod) error
	CloseOwnershipPeriod(ctx context.Context, id string, to time.Time) error
	ListOwnershipPeriods(ctx context.Context, f OwnershipFilter) ([]OwnershipPeriod, error)
}

type EventStore interface {
	AppendEvents(ctx context.Context, events ...Event) error
	ListEvents(ctx context.Context, petID string, limit int) ([]Event, error)
}

// Dispatcher consume los eventos ya confirmados. Nunca falla hacia el caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []Event)
}

// NopDispatcher descarta eventos.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, []Event) {}

// Run ejecuta fn en una transacción, persiste los eventos registrados junto con
// el resto de los cambios y, solo si el commit fue exitoso, los despacha.
func Run(ctx context.Context, store Store, d Dispatcher, now time.Time, fn func(tx Tx, rec *Recorder) error) error {
	var rec *Recorder
	err := store.WithinTx(ctx, func(tx Tx) error {
		rec = NewRecorder(now)
		if err := fn(tx, rec); err != nil {
			return err
		}
		if evs := rec.Events(); len(evs) > 0 {
			return tx.AppendEvents(ctx, evs...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if d != nil && rec != nil {
		if evs := rec.Events(); len(evs) > 0 {
			d.Dispatch(ctx, evs)
		}
	}
	return nil
}

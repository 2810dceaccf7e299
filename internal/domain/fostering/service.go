package fostering

import (
	"context"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/ports/auth"

	"github.com/google/uuid"
)

type Service struct {
	store      custody.Store
	dispatcher custody.Dispatcher
	now        func() time.Time
}

func NewService(store custody.Store, dispatcher custody.Dispatcher) *Service {
	if dispatcher == nil {
		dispatcher = custody.NopDispatcher{}
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// StartInput son los datos con los que una entrega completada abre la asignación.
type StartInput struct {
	PetID             string
	OwnerUserID       string
	FosterUserID      string
	TransferRequestID string
	ExpectedEndDate   *time.Time
	ActorUserID       string
}

// Start crea (o devuelve, si ya existe) la asignación por su clave natural.
// Corre dentro de la transacción de la entrega.
func Start(ctx context.Context, tx custody.Tx, rec *custody.Recorder, in StartInput, now time.Time) (custody.FosterAssignment, error) {
	a, created, err := tx.UpsertFosterAssignment(ctx, custody.FosterAssignment{
		ID:                uuid.NewString(),
		PetID:             in.PetID,
		OwnerUserID:       in.OwnerUserID,
		FosterUserID:      in.FosterUserID,
		TransferRequestID: in.TransferRequestID,
		Status:            custody.FosterActive,
		StartDate:         custody.Today(now),
		ExpectedEndDate:   in.ExpectedEndDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return custody.FosterAssignment{}, err
	}

	if created {
		rec.Record(event(a, custody.EventFosterStarted, in.ActorUserID, "Foster assignment started"))
	}
	return a, nil
}

// MarkCompleted completa la asignación si sigue activa. Lo usa la devolución.
func MarkCompleted(ctx context.Context, tx custody.Tx, rec *custody.Recorder, assignmentID, actorUserID string, now time.Time) (custody.FosterAssignment, error) {
	a, err := tx.GetFosterAssignment(ctx, assignmentID)
	if err != nil {
		return custody.FosterAssignment{}, err
	}
	if a.Status != custody.FosterActive {
		return a, nil
	}

	a.Status = custody.FosterCompleted
	a.CompletedAt = &now
	a.UpdatedAt = now
	if err := tx.UpdateFosterAssignment(ctx, a); err != nil {
		return custody.FosterAssignment{}, err
	}
	rec.Record(event(a, custody.EventFosterCompleted, actorUserID, "Foster assignment completed"))
	return a, nil
}

func (s *Service) Complete(ctx context.Context, actor auth.Claims, id string) (custody.FosterAssignment, error) {
	return s.mutate(ctx, actor, id, func(a *custody.FosterAssignment, now time.Time) (custody.EventType, string, error) {
		if a.Status != custody.FosterActive {
			return "", "", custody.NewStateError("foster assignment", "complete", string(a.Status))
		}
		a.Status = custody.FosterCompleted
		a.CompletedAt = &now
		return custody.EventFosterCompleted, "Foster assignment completed", nil
	})
}

func (s *Service) Cancel(ctx context.Context, actor auth.Claims, id, reason string) (custody.FosterAssignment, error) {
	return s.mutate(ctx, actor, id, func(a *custody.FosterAssignment, now time.Time) (custody.EventType, string, error) {
		if a.Status != custody.FosterActive {
			return "", "", custody.NewStateError("foster assignment", "cancel", string(a.Status))
		}
		a.Status = custody.FosterCanceled
		a.CanceledAt = &now
		a.CancellationReason = strings.TrimSpace(reason)
		return custody.EventFosterCanceled, "Foster assignment canceled", nil
	})
}

// Reactivate vuelve a activa una asignación completada o cancelada.
func (s *Service) Reactivate(ctx context.Context, actor auth.Claims, id string) (custody.FosterAssignment, error) {
	return s.mutate(ctx, actor, id, func(a *custody.FosterAssignment, now time.Time) (custody.EventType, string, error) {
		if a.Status != custody.FosterCompleted && a.Status != custody.FosterCanceled {
			return "", "", custody.NewStateError("foster assignment", "reactivate", string(a.Status))
		}
		a.Status = custody.FosterActive
		a.CompletedAt = nil
		a.CanceledAt = nil
		a.CancellationReason = ""
		return custody.EventFosterReactivated, "Foster assignment reactivated", nil
	})
}

// Extend mueve expected_end_date. La nueva fecha tiene que ser posterior a hoy.
func (s *Service) Extend(ctx context.Context, actor auth.Claims, id string, newEnd time.Time) (custody.FosterAssignment, error) {
	return s.mutate(ctx, actor, id, func(a *custody.FosterAssignment, now time.Time) (custody.EventType, string, error) {
		if a.Status != custody.FosterActive {
			return "", "", custody.NewStateError("foster assignment", "extend", string(a.Status))
		}
		end := custody.Today(newEnd)
		if !end.After(custody.Today(now)) {
			return "", "", custody.NewValidationError("expected_end_date", "must be after today")
		}
		a.ExpectedEndDate = &end
		return custody.EventFosterExtended, "Foster assignment extended until " + end.Format("2006-01-02"), nil
	})
}

// mutate aplica: 404, luego 403 (owner, foster o admin), luego el guard de estado de apply.
func (s *Service) mutate(ctx context.Context, actor auth.Claims, id string, apply func(a *custody.FosterAssignment, now time.Time) (custody.EventType, string, error)) (custody.FosterAssignment, error) {
	now := s.now().UTC()
	var out custody.FosterAssignment

	err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		a, err := tx.GetFosterAssignment(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if !canManage(actor, a) {
			return custody.ErrForbidden
		}

		typ, msg, err := apply(&a, now)
		if err != nil {
			return err
		}
		a.UpdatedAt = now
		if err := tx.UpdateFosterAssignment(ctx, a); err != nil {
			return err
		}

		rec.Record(event(a, typ, actor.UserID, msg))
		out = a
		return nil
	})
	if err != nil {
		return custody.FosterAssignment{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (custody.FosterAssignment, error) {
	var out custody.FosterAssignment
	err := s.store.View(ctx, func(tx custody.Tx) error {
		a, err := tx.GetFosterAssignment(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if !canManage(actor, a) {
			return custody.ErrForbidden
		}
		out = a
		return nil
	})
	return out, err
}

// ListMine devuelve las asignaciones donde el usuario es dueño o foster.
func (s *Service) ListMine(ctx context.Context, actor auth.Claims, status custody.FosterStatus) ([]custody.FosterAssignment, error) {
	out := make([]custody.FosterAssignment, 0)
	err := s.store.View(ctx, func(tx custody.Tx) error {
		items, err := tx.ListFosterAssignments(ctx, custody.FosterFilter{UserID: actor.UserID, Status: status})
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	return out, err
}

func canManage(actor auth.Claims, a custody.FosterAssignment) bool {
	if actor.Can(auth.PermManageFosterAssignments) {
		return true
	}
	return actor.UserID != "" && (actor.UserID == a.OwnerUserID || actor.UserID == a.FosterUserID)
}

func event(a custody.FosterAssignment, typ custody.EventType, actorUserID, msg string) custody.Event {
	return custody.Event{
		Type:        typ,
		PetID:       a.PetID,
		EntityType:  "foster_assignment",
		EntityID:    a.ID,
		ActorUserID: actorUserID,
		Recipients:  []string{a.OwnerUserID, a.FosterUserID},
		Message:     msg,
		Link:        "/foster-assignments/" + a.ID,
	}
}

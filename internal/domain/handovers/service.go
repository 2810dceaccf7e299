package handovers

import (
	"context"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/fostering"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/placement"
	"pet-custody/internal/ports/auth"

	"github.com/google/uuid"
)

// Service coordina las dos entregas: la inicial (dueño -> helper) y la
// devolución (foster -> dueño). Ambas usan custody.HandoverMachine.
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

func transferParties(h custody.TransferHandover) custody.Parties {
	return custody.Parties{OwnerUserID: h.OwnerUserID, CounterpartUserID: h.HelperUserID}
}

// Initiate agenda la entrega de un transfer aceptado. Solo el dueño, y solo
// si sigue siendo el dueño actual de la mascota.
func (s *Service) Initiate(ctx context.Context, actor auth.Claims, transferID string, in custody.StartInput) (custody.TransferHandover, error) {
	transferID = strings.TrimSpace(transferID)
	ref, err := s.transferRef(ctx, transferID)
	if err != nil {
		return custody.TransferHandover{}, err
	}

	now := s.now().UTC()
	var out custody.TransferHandover

	err = custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		if err := lockScope(ctx, tx, ref); err != nil {
			return err
		}
		t, err := tx.GetTransferRequest(ctx, transferID)
		if err != nil {
			return err
		}

		parties := custody.Parties{OwnerUserID: t.RecipientUserID, CounterpartUserID: t.InitiatorUserID}
		state, err := custody.InitialHandover.Start(parties, actor.UserID, in, now)
		if err != nil {
			return err
		}
		if t.Status != custody.TransferAccepted {
			return custody.NewStateError("transfer request", "hand over", string(t.Status))
		}
		if t.PlacementRequestID != "" {
			if _, err := placement.EnsureActive(ctx, tx, t.PlacementRequestID, "hand over"); err != nil {
				return err
			}
		}
		if err := ensureOwner(ctx, tx, t.PetID, t.RecipientUserID); err != nil {
			return err
		}

		h := custody.TransferHandover{
			ID:                uuid.NewString(),
			TransferRequestID: t.ID,
			OwnerUserID:       t.RecipientUserID,
			HelperUserID:      t.InitiatorUserID,
			HandoverState:     state,
		}
		if err := tx.CreateTransferHandover(ctx, h); err != nil {
			return err
		}

		rec.Record(handoverEvent(t.PetID, h, custody.EventHandoverInitiated, actor.UserID, "Handover scheduled"))
		out = h
		return nil
	})
	if err != nil {
		return custody.TransferHandover{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (custody.TransferHandover, error) {
	var out custody.TransferHandover
	err := s.store.View(ctx, func(tx custody.Tx) error {
		h, err := tx.GetTransferHandover(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if !transferParties(h).IsParty(actor.UserID) && !actor.HasRole(auth.RoleAdmin) {
			return custody.ErrForbidden
		}
		out = h
		return nil
	})
	return out, err
}

// HelperConfirm registra la revisión del helper: ok => confirmed, si no => disputed.
func (s *Service) HelperConfirm(ctx context.Context, actor auth.Claims, id string, ok bool, notes string) (custody.TransferHandover, error) {
	return s.mutate(ctx, id, func(tx custody.Tx, rec *custody.Recorder, h *custody.TransferHandover, t custody.TransferRequest, now time.Time) error {
		if err := custody.InitialHandover.Confirm(&h.HandoverState, transferParties(*h), actor.UserID, ok, notes, now); err != nil {
			return err
		}
		typ, msg := custody.EventHandoverConfirmed, "Helper confirmed the pet's condition"
		if !ok {
			typ, msg = custody.EventHandoverDisputed, "Helper disputed the pet's condition"
		}
		rec.Record(handoverEvent(t.PetID, *h, typ, actor.UserID, msg))
		return nil
	})
}

// Complete cierra la entrega y, en la misma transacción, completa el transfer,
// cumple el pedido y mueve la mascota (permanent) o abre la asignación (foster).
func (s *Service) Complete(ctx context.Context, actor auth.Claims, id string) (custody.TransferHandover, error) {
	return s.mutate(ctx, id, func(tx custody.Tx, rec *custody.Recorder, h *custody.TransferHandover, t custody.TransferRequest, now time.Time) error {
		if err := custody.InitialHandover.Complete(&h.HandoverState, transferParties(*h), actor.UserID, now); err != nil {
			return err
		}
		if t.Status != custody.TransferAccepted {
			return custody.NewStateError("transfer request", "complete", string(t.Status))
		}
		if err := ensureOwner(ctx, tx, t.PetID, h.OwnerUserID); err != nil {
			return err
		}

		t.Status = custody.TransferCompleted
		t.CompletedAt = &now
		t.UpdatedAt = now
		if err := tx.UpdateTransferRequest(ctx, t); err != nil {
			return err
		}

		var expectedEnd *time.Time
		if t.PlacementRequestID != "" {
			p, err := placement.MarkFulfilled(ctx, tx, rec, t.PlacementRequestID, now)
			if err != nil {
				return err
			}
			expectedEnd = p.EndDate
		}

		if t.Relationship.IsFostering() {
			if _, err := fostering.Start(ctx, tx, rec, fostering.StartInput{
				PetID:             t.PetID,
				OwnerUserID:       h.OwnerUserID,
				FosterUserID:      h.HelperUserID,
				TransferRequestID: t.ID,
				ExpectedEndDate:   expectedEnd,
				ActorUserID:       actor.UserID,
			}, now); err != nil {
				return err
			}
		} else {
			if err := placement.CloseForOwnerChange(ctx, tx, rec, t.PetID, t.PlacementRequestID, now); err != nil {
				return err
			}
			if err := ownership.Transfer(ctx, tx, t.PetID, h.HelperUserID, now); err != nil {
				return err
			}
			rec.Record(custody.Event{
				Type:        custody.EventOwnershipTransferred,
				PetID:       t.PetID,
				EntityType:  "pet",
				EntityID:    t.PetID,
				ActorUserID: actor.UserID,
				Recipients:  []string{h.OwnerUserID, h.HelperUserID},
				Message:     "Pet ownership transferred",
				Link:        "/pets/" + t.PetID,
			})
		}

		rec.Record(handoverEvent(t.PetID, *h, custody.EventHandoverCompleted, actor.UserID, "Handover completed"))
		return nil
	})
}

// Cancel libera el cupo de entrega abierta (así se resuelve una disputa).
func (s *Service) Cancel(ctx context.Context, actor auth.Claims, id string) (custody.TransferHandover, error) {
	return s.mutate(ctx, id, func(tx custody.Tx, rec *custody.Recorder, h *custody.TransferHandover, t custody.TransferRequest, now time.Time) error {
		if err := custody.InitialHandover.Cancel(&h.HandoverState, transferParties(*h), actor.UserID, now); err != nil {
			return err
		}
		rec.Record(handoverEvent(t.PetID, *h, custody.EventHandoverCanceled, actor.UserID, "Handover canceled"))
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, apply func(tx custody.Tx, rec *custody.Recorder, h *custody.TransferHandover, t custody.TransferRequest, now time.Time) error) (custody.TransferHandover, error) {
	id = strings.TrimSpace(id)
	var ref scopeRef
	err := s.store.View(ctx, func(tx custody.Tx) error {
		h, err := tx.GetTransferHandover(ctx, id)
		if err != nil {
			return err
		}
		t, err := tx.GetTransferRequest(ctx, h.TransferRequestID)
		if err != nil {
			return err
		}
		ref = scopeRef{petID: t.PetID, placementID: t.PlacementRequestID}
		return nil
	})
	if err != nil {
		return custody.TransferHandover{}, err
	}

	now := s.now().UTC()
	var out custody.TransferHandover

	err = custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		if err := lockScope(ctx, tx, ref); err != nil {
			return err
		}
		h, err := tx.GetTransferHandover(ctx, id)
		if err != nil {
			return err
		}
		t, err := tx.GetTransferRequest(ctx, h.TransferRequestID)
		if err != nil {
			return err
		}

		if err := apply(tx, rec, &h, t, now); err != nil {
			return err
		}
		if err := tx.UpdateTransferHandover(ctx, h); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return custody.TransferHandover{}, err
	}
	return out, nil
}

// scopeRef identifica las filas que se bloquean antes que el transfer y el handover.
type scopeRef struct {
	petID       string
	placementID string
}

func (s *Service) transferRef(ctx context.Context, transferID string) (scopeRef, error) {
	var ref scopeRef
	err := s.store.View(ctx, func(tx custody.Tx) error {
		t, err := tx.GetTransferRequest(ctx, transferID)
		if err != nil {
			return err
		}
		ref = scopeRef{petID: t.PetID, placementID: t.PlacementRequestID}
		return nil
	})
	return ref, err
}

// lockScope bloquea primero la mascota y después el pedido. Orden de locks:
// mascota, pedido, transfer, handover, historial de propiedad.
func lockScope(ctx context.Context, tx custody.Tx, ref scopeRef) error {
	if _, err := tx.GetPet(ctx, ref.petID); err != nil {
		return err
	}
	if ref.placementID == "" {
		return nil
	}
	_, err := tx.GetPlacementRequest(ctx, ref.placementID)
	return err
}

func ensureOwner(ctx context.Context, tx custody.Tx, petID, userID string) error {
	owner, err := ownership.CurrentOwner(ctx, tx, petID)
	if err != nil {
		return err
	}
	if owner != userID {
		return custody.ErrOwnerChanged
	}
	return nil
}

func handoverEvent(petID string, h custody.TransferHandover, typ custody.EventType, actorUserID, msg string) custody.Event {
	return custody.Event{
		Type:        typ,
		PetID:       petID,
		EntityType:  "handover",
		EntityID:    h.ID,
		ActorUserID: actorUserID,
		Recipients:  []string{h.OwnerUserID, h.HelperUserID},
		Message:     msg,
		Link:        "/handovers/" + h.ID,
	}
}

package handovers

import (
	"context"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/fostering"
	"pet-custody/internal/ports/auth"

	"github.com/google/uuid"
)

// Devolución: inicia el foster, confirma el dueño.

func returnParties(h custody.FosterReturnHandover) custody.Parties {
	return custody.Parties{OwnerUserID: h.OwnerUserID, CounterpartUserID: h.FosterUserID}
}

func (s *Service) InitiateReturn(ctx context.Context, actor auth.Claims, assignmentID string, in custody.StartInput) (custody.FosterReturnHandover, error) {
	now := s.now().UTC()
	var out custody.FosterReturnHandover

	err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		a, err := tx.GetFosterAssignment(ctx, strings.TrimSpace(assignmentID))
		if err != nil {
			return err
		}

		parties := custody.Parties{OwnerUserID: a.OwnerUserID, CounterpartUserID: a.FosterUserID}
		state, err := custody.ReturnHandover.Start(parties, actor.UserID, in, now)
		if err != nil {
			return err
		}
		if a.Status != custody.FosterActive {
			return custody.NewStateError("foster assignment", "return", string(a.Status))
		}

		h := custody.FosterReturnHandover{
			ID:                 uuid.NewString(),
			FosterAssignmentID: a.ID,
			OwnerUserID:        a.OwnerUserID,
			FosterUserID:       a.FosterUserID,
			HandoverState:      state,
		}
		if err := tx.CreateReturnHandover(ctx, h); err != nil {
			return err
		}

		rec.Record(returnEvent(a.PetID, h, custody.EventReturnInitiated, actor.UserID, "Return handover scheduled"))
		out = h
		return nil
	})
	if err != nil {
		return custody.FosterReturnHandover{}, err
	}
	return out, nil
}

func (s *Service) GetReturn(ctx context.Context, actor auth.Claims, assignmentID, handoverID string) (custody.FosterReturnHandover, error) {
	var out custody.FosterReturnHandover
	err := s.store.View(ctx, func(tx custody.Tx) error {
		h, _, err := loadReturn(ctx, tx, assignmentID, handoverID)
		if err != nil {
			return err
		}
		if !returnParties(h).IsParty(actor.UserID) && !actor.HasRole(auth.RoleAdmin) {
			return custody.ErrForbidden
		}
		out = h
		return nil
	})
	return out, err
}

// OwnerConfirm: el dueño revisa a la mascota devuelta.
func (s *Service) OwnerConfirm(ctx context.Context, actor auth.Claims, assignmentID, handoverID string, ok bool, notes string) (custody.FosterReturnHandover, error) {
	return s.mutateReturn(ctx, assignmentID, handoverID, func(tx custody.Tx, rec *custody.Recorder, h *custody.FosterReturnHandover, a custody.FosterAssignment, now time.Time) error {
		if err := custody.ReturnHandover.Confirm(&h.HandoverState, returnParties(*h), actor.UserID, ok, notes, now); err != nil {
			return err
		}
		typ, msg := custody.EventReturnConfirmed, "Owner confirmed the pet's condition"
		if !ok {
			typ, msg = custody.EventReturnDisputed, "Owner disputed the pet's condition"
		}
		rec.Record(returnEvent(a.PetID, *h, typ, actor.UserID, msg))
		return nil
	})
}

// CompleteReturn cierra la devolución y completa la asignación si sigue activa.
func (s *Service) CompleteReturn(ctx context.Context, actor auth.Claims, assignmentID, handoverID string) (custody.FosterReturnHandover, error) {
	return s.mutateReturn(ctx, assignmentID, handoverID, func(tx custody.Tx, rec *custody.Recorder, h *custody.FosterReturnHandover, a custody.FosterAssignment, now time.Time) error {
		if err := custody.ReturnHandover.Complete(&h.HandoverState, returnParties(*h), actor.UserID, now); err != nil {
			return err
		}
		if _, err := fostering.MarkCompleted(ctx, tx, rec, a.ID, actor.UserID, now); err != nil {
			return err
		}
		rec.Record(returnEvent(a.PetID, *h, custody.EventReturnCompleted, actor.UserID, "Return handover completed"))
		return nil
	})
}

func (s *Service) mutateReturn(ctx context.Context, assignmentID, handoverID string, apply func(tx custody.Tx, rec *custody.Recorder, h *custody.FosterReturnHandover, a custody.FosterAssignment, now time.Time) error) (custody.FosterReturnHandover, error) {
	now := s.now().UTC()
	var out custody.FosterReturnHandover

	err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		h, a, err := loadReturn(ctx, tx, assignmentID, handoverID)
		if err != nil {
			return err
		}
		if err := apply(tx, rec, &h, a, now); err != nil {
			return err
		}
		if err := tx.UpdateReturnHandover(ctx, h); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return custody.FosterReturnHandover{}, err
	}
	return out, nil
}

// loadReturn trae la devolución y su asignación. Si la devolución no pertenece
// a la asignación de la URL responde not found.
func loadReturn(ctx context.Context, tx custody.Tx, assignmentID, handoverID string) (custody.FosterReturnHandover, custody.FosterAssignment, error) {
	a, err := tx.GetFosterAssignment(ctx, strings.TrimSpace(assignmentID))
	if err != nil {
		return custody.FosterReturnHandover{}, custody.FosterAssignment{}, err
	}
	h, err := tx.GetReturnHandover(ctx, strings.TrimSpace(handoverID))
	if err != nil {
		return custody.FosterReturnHandover{}, custody.FosterAssignment{}, err
	}
	if h.FosterAssignmentID != a.ID {
		return custody.FosterReturnHandover{}, custody.FosterAssignment{}, custody.ErrNotFound
	}
	return h, a, nil
}

func returnEvent(petID string, h custody.FosterReturnHandover, typ custody.EventType, actorUserID, msg string) custody.Event {
	return custody.Event{
		Type:        typ,
		PetID:       petID,
		EntityType:  "return_handover",
		EntityID:    h.ID,
		ActorUserID: actorUserID,
		Recipients:  []string{h.OwnerUserID, h.FosterUserID},
		Message:     msg,
		Link:        "/foster-assignments/" + h.FosterAssignmentID + "/return-handovers/" + h.ID,
	}
}

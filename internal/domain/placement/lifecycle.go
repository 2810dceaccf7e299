package placement

import (
	"context"
	"time"

	"pet-custody/internal/domain/custody"
)

// Helpers para correr dentro de la transacción de otro módulo
// (aceptar un transfer, completar un handover).

// RejectPendingOffers rechaza las ofertas pendientes del pedido, salvo exceptID.
func RejectPendingOffers(ctx context.Context, tx custody.Tx, rec *custody.Recorder, p custody.PlacementRequest, exceptID string, now time.Time) error {
	pending, err := tx.ListTransferRequests(ctx, custody.TransferFilter{
		PlacementRequestID: p.ID,
		Status:             custody.TransferPending,
	})
	if err != nil {
		return err
	}

	for _, t := range pending {
		if t.ID == exceptID {
			continue
		}
		t.Status = custody.TransferRejected
		t.RejectedAt = &now
		t.UpdatedAt = now
		if err := tx.UpdateTransferRequest(ctx, t); err != nil {
			return err
		}
		rec.Record(custody.Event{
			Type:       custody.EventTransferRejected,
			PetID:      t.PetID,
			EntityType: "transfer_request",
			EntityID:   t.ID,
			Recipients: []string{t.InitiatorUserID},
			Message:    "Your offer was declined because the placement request is no longer open",
			Link:       "/transfer-requests/" + t.ID,
		})
	}
	return nil
}

// MarkPendingReview pasa el pedido a pending_review al aceptarse una oferta.
func MarkPendingReview(ctx context.Context, tx custody.Tx, placementID string, now time.Time) (custody.PlacementRequest, error) {
	p, err := tx.GetPlacementRequest(ctx, placementID)
	if err != nil {
		return custody.PlacementRequest{}, err
	}
	if p.Status != custody.PlacementOpen {
		return custody.PlacementRequest{}, custody.NewStateError("placement request", "review", string(p.Status))
	}

	p.Status = custody.PlacementPendingReview
	p.UpdatedAt = now
	if err := tx.UpdatePlacementRequest(ctx, p); err != nil {
		return custody.PlacementRequest{}, err
	}
	return p, nil
}

// EnsureActive falla con conflicto si el pedido ya no está open/pending_review.
func EnsureActive(ctx context.Context, tx custody.Tx, placementID, op string) (custody.PlacementRequest, error) {
	p, err := tx.GetPlacementRequest(ctx, placementID)
	if err != nil {
		return custody.PlacementRequest{}, err
	}
	if !p.Status.IsActive() {
		return custody.PlacementRequest{}, custody.NewStateError("placement request", op, string(p.Status))
	}
	return p, nil
}

// MarkFulfilled cierra el pedido cuando se completa la entrega.
func MarkFulfilled(ctx context.Context, tx custody.Tx, rec *custody.Recorder, placementID string, now time.Time) (custody.PlacementRequest, error) {
	p, err := EnsureActive(ctx, tx, placementID, "fulfill")
	if err != nil {
		return custody.PlacementRequest{}, err
	}

	p.Status = custody.PlacementFulfilled
	p.IsActive = false
	p.ClosedAt = &now
	p.UpdatedAt = now
	if err := tx.UpdatePlacementRequest(ctx, p); err != nil {
		return custody.PlacementRequest{}, err
	}

	rec.Record(custody.Event{
		Type:       custody.EventPlacementFulfilled,
		PetID:      p.PetID,
		EntityType: "placement_request",
		EntityID:   p.ID,
		Recipients: []string{p.OwnerUserID},
		Message:    "Placement request fulfilled",
		Link:       "/placement-requests/" + p.ID,
	})
	return p, nil
}

// CloseForOwnerChange cancela los demás pedidos activos de la mascota cuando
// cambia de dueño: rechaza sus ofertas pendientes, cancela las aceptadas y
// aborta sus handovers abiertos. Corre en la transacción del traspaso.
func CloseForOwnerChange(ctx context.Context, tx custody.Tx, rec *custody.Recorder, petID, exceptID string, now time.Time) error {
	active, err := tx.ListPlacementRequests(ctx, custody.PlacementFilter{PetID: petID, ActiveOnly: true})
	if err != nil {
		return err
	}

	for _, candidate := range active {
		if candidate.ID == exceptID {
			continue
		}
		p, err := tx.GetPlacementRequest(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if !p.Status.IsActive() {
			continue
		}

		if _, err := closeRequest(ctx, tx, rec, p, custody.PlacementCancelled, now); err != nil {
			return err
		}
		if err := cancelAcceptedOffers(ctx, tx, rec, p, now); err != nil {
			return err
		}
		rec.Record(custody.Event{
			Type:       custody.EventPlacementCancelled,
			PetID:      p.PetID,
			EntityType: "placement_request",
			EntityID:   p.ID,
			Recipients: []string{p.OwnerUserID},
			Message:    "Placement request cancelled because the pet has a new owner",
			Link:       "/placement-requests/" + p.ID,
		})
	}
	return nil
}

func cancelAcceptedOffers(ctx context.Context, tx custody.Tx, rec *custody.Recorder, p custody.PlacementRequest, now time.Time) error {
	accepted, err := tx.ListTransferRequests(ctx, custody.TransferFilter{
		PlacementRequestID: p.ID,
		Status:             custody.TransferAccepted,
	})
	if err != nil {
		return err
	}

	for _, t := range accepted {
		handovers, err := tx.ListTransferHandovers(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, h := range handovers {
			if !h.Status.IsOpen() {
				continue
			}
			if err := custody.InitialHandover.Abort(&h.HandoverState, now); err != nil {
				return err
			}
			if err := tx.UpdateTransferHandover(ctx, h); err != nil {
				return err
			}
		}

		t.Status = custody.TransferCancelled
		t.UpdatedAt = now
		if err := tx.UpdateTransferRequest(ctx, t); err != nil {
			return err
		}
		rec.Record(custody.Event{
			Type:       custody.EventTransferCancelled,
			PetID:      t.PetID,
			EntityType: "transfer_request",
			EntityID:   t.ID,
			Recipients: []string{t.InitiatorUserID, t.RecipientUserID},
			Message:    "Accepted offer cancelled because the pet has a new owner",
			Link:       "/transfer-requests/" + t.ID,
		})
	}
	return nil
}

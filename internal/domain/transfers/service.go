package transfers

import (
	"context"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/placement"
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

type CreateInput struct {
	PlacementRequestID string
	Relationship       custody.Relationship // vacío => se deriva del tipo de pedido
	Message            string
}

// Create registra la oferta de un helper sobre un pedido abierto.
// El dueño no puede ofertar sobre su propia mascota.
func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (custody.TransferRequest, error) {
	now := s.now().UTC()
	var out custody.TransferRequest

	err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		p, err := tx.GetPlacementRequest(ctx, strings.TrimSpace(in.PlacementRequestID))
		if err != nil {
			return err
		}

		owner, err := ownership.CurrentOwner(ctx, tx, p.PetID)
		if err != nil {
			return err
		}
		if actor.UserID == "" || actor.UserID == owner || !actor.HasRole(auth.RoleHelper) {
			return custody.ErrForbidden
		}
		if p.Status != custody.PlacementOpen || !p.IsActive {
			return custody.NewStateError("placement request", "offer on", string(p.Status))
		}

		rel := in.Relationship
		if rel == "" {
			rel = custody.DefaultRelationship(p.Type)
		}
		if !rel.Valid() || !rel.CompatibleWith(p.Type) {
			return custody.NewValidationError("requested_relationship_type", "not compatible with "+string(p.Type))
		}

		t := custody.TransferRequest{
			ID:                 uuid.NewString(),
			PlacementRequestID: p.ID,
			PetID:              p.PetID,
			InitiatorUserID:    actor.UserID,
			RecipientUserID:    owner,
			Relationship:       rel,
			Status:             custody.TransferPending,
			Message:            strings.TrimSpace(in.Message),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateTransferRequest(ctx, t); err != nil {
			return err
		}

		rec.Record(custody.Event{
			Type:        custody.EventTransferCreated,
			PetID:       t.PetID,
			EntityType:  "transfer_request",
			EntityID:    t.ID,
			ActorUserID: actor.UserID,
			Recipients:  []string{owner},
			Message:     "New offer received for your placement request",
			Link:        "/transfer-requests/" + t.ID,
		})
		out = t
		return nil
	})
	if err != nil {
		return custody.TransferRequest{}, err
	}
	return out, nil
}

// Accept: solo el destinatario y solo desde pending. No mueve la mascota;
// eso lo hace la entrega completada.
func (s *Service) Accept(ctx context.Context, actor auth.Claims, id string) (custody.TransferRequest, error) {
	return s.decide(ctx, actor, id, true)
}

func (s *Service) Reject(ctx context.Context, actor auth.Claims, id string) (custody.TransferRequest, error) {
	return s.decide(ctx, actor, id, false)
}

func (s *Service) decide(ctx context.Context, actor auth.Claims, id string, accept bool) (custody.TransferRequest, error) {
	op := "reject"
	if accept {
		op = "accept"
	}

	id = strings.TrimSpace(id)

	// El pedido se bloquea antes que la oferta, igual que en Cancel y ExpireDue.
	var placementID string
	err := s.store.View(ctx, func(tx custody.Tx) error {
		t, err := tx.GetTransferRequest(ctx, id)
		placementID = t.PlacementRequestID
		return err
	})
	if err != nil {
		return custody.TransferRequest{}, err
	}

	now := s.now().UTC()
	var out custody.TransferRequest

	err = custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		if placementID != "" {
			if _, err := tx.GetPlacementRequest(ctx, placementID); err != nil {
				return err
			}
		}
		t, err := tx.GetTransferRequest(ctx, id)
		if err != nil {
			return err
		}
		if actor.UserID == "" || actor.UserID != t.RecipientUserID {
			return custody.ErrForbidden
		}
		if t.Status != custody.TransferPending {
			return custody.NewStateError("transfer request", op, string(t.Status))
		}

		t.UpdatedAt = now
		ev := custody.Event{
			PetID:       t.PetID,
			EntityType:  "transfer_request",
			EntityID:    t.ID,
			ActorUserID: actor.UserID,
			Recipients:  []string{t.InitiatorUserID},
			Link:        "/transfer-requests/" + t.ID,
		}

		if accept {
			t.Status = custody.TransferAccepted
			t.AcceptedAt = &now

			if t.PlacementRequestID != "" {
				p, err := placement.MarkPendingReview(ctx, tx, t.PlacementRequestID, now)
				if err != nil {
					return err
				}
				if err := placement.RejectPendingOffers(ctx, tx, rec, p, t.ID, now); err != nil {
					return err
				}
			}
			ev.Type = custody.EventTransferAccepted
			ev.Message = "Your offer was accepted"
		} else {
			t.Status = custody.TransferRejected
			t.RejectedAt = &now
			ev.Type = custody.EventTransferRejected
			ev.Message = "Your offer was declined"
		}

		if err := tx.UpdateTransferRequest(ctx, t); err != nil {
			return err
		}
		rec.Record(ev)
		out = t
		return nil
	})
	if err != nil {
		return custody.TransferRequest{}, err
	}
	return out, nil
}

// Get: solo las partes o admin.
func (s *Service) Get(ctx context.Context, actor auth.Claims, id string) (custody.TransferRequest, error) {
	var out custody.TransferRequest
	err := s.store.View(ctx, func(tx custody.Tx) error {
		t, err := tx.GetTransferRequest(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if !isParty(actor, t) {
			return custody.ErrForbidden
		}
		out = t
		return nil
	})
	return out, err
}

// ListForPlacement: el dueño del pedido (o admin) ve todas las ofertas;
// cualquier otro usuario solo las propias.
func (s *Service) ListForPlacement(ctx context.Context, actor auth.Claims, placementID string) ([]custody.TransferRequest, error) {
	out := make([]custody.TransferRequest, 0)
	err := s.store.View(ctx, func(tx custody.Tx) error {
		p, err := tx.GetPlacementRequest(ctx, strings.TrimSpace(placementID))
		if err != nil {
			return err
		}

		f := custody.TransferFilter{PlacementRequestID: p.ID}
		if p.OwnerUserID != actor.UserID && !actor.HasRole(auth.RoleAdmin) {
			f.UserID = actor.UserID
		}
		items, err := tx.ListTransferRequests(ctx, f)
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	return out, err
}

// ListMine devuelve las ofertas donde el usuario es iniciador o destinatario.
func (s *Service) ListMine(ctx context.Context, actor auth.Claims, status custody.TransferStatus) ([]custody.TransferRequest, error) {
	out := make([]custody.TransferRequest, 0)
	err := s.store.View(ctx, func(tx custody.Tx) error {
		items, err := tx.ListTransferRequests(ctx, custody.TransferFilter{UserID: actor.UserID, Status: status})
		if err != nil {
			return err
		}
		out = items
		return nil
	})
	return out, err
}

func isParty(actor auth.Claims, t custody.TransferRequest) bool {
	if actor.HasRole(auth.RoleAdmin) {
		return true
	}
	return actor.UserID != "" && (actor.UserID == t.InitiatorUserID || actor.UserID == t.RecipientUserID)
}

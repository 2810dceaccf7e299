package placement

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/pets"
	"pet-custody/internal/platform/metrics"
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
	PetID     string
	Type      custody.PlacementType
	Notes     string
	StartDate *time.Time
	EndDate   *time.Time
	ExpiresAt *time.Time
}

// Create publica un pedido de ubicación. Solo el dueño actual (según el
// historial de propiedad) y solo si la mascota está activa.
func (s *Service) Create(ctx context.Context, actor auth.Claims, in CreateInput) (custody.PlacementRequest, error) {
	petID := strings.TrimSpace(in.PetID)
	if petID == "" {
		return custody.PlacementRequest{}, custody.NewValidationError("pet_id", "required")
	}

	now := s.now().UTC()
	var out custody.PlacementRequest

	err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		pet, err := tx.GetPet(ctx, petID)
		if err != nil {
			return err
		}

		owner, err := ownership.CurrentOwner(ctx, tx, petID)
		if err != nil {
			return err
		}
		if actor.UserID == "" || owner != actor.UserID {
			return custody.ErrForbidden
		}
		if pet.Status != pets.StatusActive {
			return custody.NewStateError("pet", "place", string(pet.Status))
		}

		if err := validateCreate(in, now); err != nil {
			return err
		}

		p := custody.PlacementRequest{
			ID:          uuid.NewString(),
			PetID:       petID,
			OwnerUserID: owner,
			Type:        in.Type,
			Status:      custody.PlacementOpen,
			IsActive:    true,
			Notes:       strings.TrimSpace(in.Notes),
			StartDate:   in.StartDate,
			EndDate:     in.EndDate,
			ExpiresAt:   in.ExpiresAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreatePlacementRequest(ctx, p); err != nil {
			return err
		}

		rec.Record(custody.Event{
			Type:        custody.EventPlacementCreated,
			PetID:       petID,
			EntityType:  "placement_request",
			EntityID:    p.ID,
			ActorUserID: actor.UserID,
			Recipients:  []string{owner},
			Message:     "Your placement request for " + pet.Name + " is now open",
			Link:        "/placement-requests/" + p.ID,
		})
		out = p
		return nil
	})
	if err != nil {
		return custody.PlacementRequest{}, err
	}
	return out, nil
}

func validateCreate(in CreateInput, now time.Time) error {
	fields := map[string]string{}
	if !in.Type.Valid() {
		fields["request_type"] = "must be one of foster_paid, foster_free, permanent"
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if in.EndDate != nil && in.EndDate.Before(custody.Today(now)) {
		fields["end_date"] = "must not be in the past"
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		fields["expires_at"] = "must be in the future"
	}
	if len(fields) > 0 {
		return &custody.ValidationError{Fields: fields}
	}
	return nil
}

// Cancel cierra el pedido (solo quien lo creó) y rechaza las ofertas pendientes.
func (s *Service) Cancel(ctx context.Context, actor auth.Claims, id string) (custody.PlacementRequest, error) {
	now := s.now().UTC()
	var out custody.PlacementRequest

	err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
		p, err := tx.GetPlacementRequest(ctx, strings.TrimSpace(id))
		if err != nil {
			return err
		}
		if actor.UserID == "" || p.OwnerUserID != actor.UserID {
			return custody.ErrForbidden
		}
		if !p.Status.IsActive() {
			return custody.NewStateError("placement request", "cancel", string(p.Status))
		}

		closed, err := closeRequest(ctx, tx, rec, p, custody.PlacementCancelled, now)
		if err != nil {
			return err
		}

		rec.Record(custody.Event{
			Type:        custody.EventPlacementCancelled,
			PetID:       p.PetID,
			EntityType:  "placement_request",
			EntityID:    p.ID,
			ActorUserID: actor.UserID,
			Recipients:  []string{p.OwnerUserID},
			Message:     "Placement request cancelled",
			Link:        "/placement-requests/" + p.ID,
		})
		out = closed
		return nil
	})
	if err != nil {
		return custody.PlacementRequest{}, err
	}
	return out, nil
}

// ExpireDue vence los pedidos abiertos cuyo expires_at ya pasó.
// Cada pedido se vence en su propia transacción: uno que falle no frena al resto.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now().UTC()

	var due []custody.PlacementRequest
	err := s.store.View(ctx, func(tx custody.Tx) error {
		items, err := tx.ListPlacementRequests(ctx, custody.PlacementFilter{ExpiredAt: &now})
		due = items
		return err
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs []error
	for _, candidate := range due {
		err := custody.Run(ctx, s.store, s.dispatcher, now, func(tx custody.Tx, rec *custody.Recorder) error {
			p, err := tx.GetPlacementRequest(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// Pudo ser aceptado o cancelado entre la lectura y el lock.
			if p.Status != custody.PlacementOpen || p.ExpiresAt == nil || p.ExpiresAt.After(now) {
				return errSkip
			}

			if _, err := closeRequest(ctx, tx, rec, p, custody.PlacementExpired, now); err != nil {
				return err
			}
			rec.Record(custody.Event{
				Type:       custody.EventPlacementExpired,
				PetID:      p.PetID,
				EntityType: "placement_request",
				EntityID:   p.ID,
				Recipients: []string{p.OwnerUserID},
				Message:    "Placement request expired",
				Link:       "/placement-requests/" + p.ID,
			})
			return nil
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errSkip):
		default:
			errs = append(errs, err)
		}
	}

	metrics.PlacementsExpiredTotal.Add(float64(expired))
	return expired, errors.Join(errs...)
}

var errSkip = errors.New("skip")

func closeRequest(ctx context.Context, tx custody.Tx, rec *custody.Recorder, p custody.PlacementRequest, status custody.PlacementStatus, now time.Time) (custody.PlacementRequest, error) {
	p.Status = status
	p.IsActive = false
	p.ClosedAt = &now
	p.UpdatedAt = now
	if err := tx.UpdatePlacementRequest(ctx, p); err != nil {
		return custody.PlacementRequest{}, err
	}
	if err := RejectPendingOffers(ctx, tx, rec, p, "", now); err != nil {
		return custody.PlacementRequest{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (custody.PlacementRequest, error) {
	var out custody.PlacementRequest
	err := s.store.View(ctx, func(tx custody.Tx) error {
		p, err := tx.GetPlacementRequest(ctx, strings.TrimSpace(id))
		out = p
		return err
	})
	return out, err
}

func (s *Service) ListForPet(ctx context.Context, petID string, activeOnly bool) ([]custody.PlacementRequest, error) {
	petID = strings.TrimSpace(petID)
	var out []custody.PlacementRequest
	err := s.store.View(ctx, func(tx custody.Tx) error {
		if _, err := tx.GetPet(ctx, petID); err != nil {
			return err
		}
		items, err := tx.ListPlacementRequests(ctx, custody.PlacementFilter{PetID: petID, ActiveOnly: activeOnly})
		out = items
		return err
	})
	return out, err
}

// ActiveForPet devuelve los pedidos open/pending_review de la mascota.
func (s *Service) ActiveForPet(ctx context.Context, petID string) ([]custody.PlacementRequest, error) {
	return s.ListForPet(ctx, petID, true)
}

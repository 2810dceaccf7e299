package ownership

import (
	"context"
	"sort"
	"strings"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/ports/auth"
)

// Service expone las consultas del historial de propiedad.
type Service struct {
	store custody.Store
}

func NewService(store custody.Store) *Service {
	return &Service{store: store}
}

// History devuelve el historial de una mascota. Puede leerlo el dueño actual,
// cualquier dueño anterior o un admin.
func (s *Service) History(ctx context.Context, actor auth.Claims, petID string) ([]custody.OwnershipPeriod, error) {
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return nil, custody.ErrInvalidInput
	}

	var out []custody.OwnershipPeriod
	err := s.store.View(ctx, func(tx custody.Tx) error {
		if _, err := tx.GetPet(ctx, petID); err != nil {
			return err
		}
		items, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: petID})
		if err != nil {
			return err
		}

		allowed := actor.HasRole(auth.RoleAdmin)
		for _, p := range items {
			if p.UserID == actor.UserID {
				allowed = true
				break
			}
		}
		if !allowed {
			return custody.ErrForbidden
		}

		out = items
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out, nil
}

// PreviouslyOwned lista los períodos cerrados de un usuario ("mascotas que tuve").
func (s *Service) PreviouslyOwned(ctx context.Context, userID string) ([]custody.OwnershipPeriod, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, custody.ErrInvalidInput
	}

	out := make([]custody.OwnershipPeriod, 0)
	err := s.store.View(ctx, func(tx custody.Tx) error {
		items, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{UserID: userID})
		if err != nil {
			return err
		}
		for _, p := range items {
			if !p.IsOpen() {
				out = append(out, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out, nil
}

// Timeline lista los eventos de custodia de una mascota (más recientes primero).
// Solo partes con historial sobre la mascota o admin.
func (s *Service) Timeline(ctx context.Context, actor auth.Claims, petID string, limit int) ([]custody.Event, error) {
	if _, err := s.History(ctx, actor, petID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var out []custody.Event
	err := s.store.View(ctx, func(tx custody.Tx) error {
		items, err := tx.ListEvents(ctx, petID, limit)
		out = items
		return err
	})
	return out, err
}

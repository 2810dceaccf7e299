package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/pets"

	"github.com/google/uuid"
)

// petRepo implementa pets.Repository sobre el mismo estado del Store,
// así las transacciones de custodia ven las mascotas creadas por acá.
type petRepo struct {
	store *Store
}

func (r *petRepo) Create(ctx context.Context, p pets.Pet) error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("pet id required")
	}

	return r.store.WithinTx(ctx, func(ctxTx custody.Tx) error {
		t := ctxTx.(*tx)
		if _, exists := t.state.pets[p.ID]; exists {
			return errors.New("pet already exists")
		}
		t.state.pets[p.ID] = p

		// Primer período del historial de propiedad.
		return t.InsertOwnershipPeriod(ctx, custody.OwnershipPeriod{
			ID:     uuid.NewString(),
			PetID:  p.ID,
			UserID: p.OwnerUserID,
			From:   p.CreatedAt,
		})
	})
}

func (r *petRepo) UpdateStatus(ctx context.Context, petID string, fn func(p *pets.Pet, currentOwnerUserID string) error) (pets.Pet, error) {
	var out pets.Pet
	err := r.store.WithinTx(ctx, func(ctxTx custody.Tx) error {
		t := ctxTx.(*tx)
		p, ok := t.state.pets[petID]
		if !ok {
			return pets.ErrNotFound
		}
		owner, err := ownership.CurrentOwner(ctx, t, petID)
		if err != nil {
			return err
		}
		if err := fn(&p, owner); err != nil {
			return err
		}
		t.state.pets[petID] = p
		out = p
		return nil
	})
	if err != nil {
		return pets.Pet{}, err
	}
	return out, nil
}

func (r *petRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.state.pets[id]
	if !ok {
		return pets.Pet{}, pets.ErrNotFound
	}
	return p, nil
}

func (r *petRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]pets.Pet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]pets.Pet, 0)
	for _, p := range r.store.state.pets {
		if p.OwnerUserID == ownerUserID && p.Status != pets.StatusDeleted {
			out = append(out, p)
		}
	}

	// Orden estable por created_at asc (solo para consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

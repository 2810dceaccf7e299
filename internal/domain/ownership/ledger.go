package ownership

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"

	"github.com/google/uuid"
)

// OpenPeriod abre un período para (pet, user). No-op si ya hay uno abierto.
func OpenPeriod(ctx context.Context, tx custody.OwnershipStore, petID, userID string, from time.Time) (custody.OwnershipPeriod, error) {
	open, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: petID, UserID: userID, OpenOnly: true})
	if err != nil {
		return custody.OwnershipPeriod{}, err
	}
	if len(open) > 0 {
		return open[0], nil
	}

	p := custody.OwnershipPeriod{
		ID:     uuid.NewString(),
		PetID:  petID,
		UserID: userID,
		From:   from,
	}
	if err := tx.InsertOwnershipPeriod(ctx, p); err != nil {
		// Otra transacción abrió el mismo período: el resultado es el mismo.
		if errors.Is(err, custody.ErrDuplicate) {
			return OpenPeriod(ctx, tx, petID, userID, from)
		}
		return custody.OwnershipPeriod{}, err
	}
	return p, nil
}

// ClosePeriod cierra el período abierto de (pet, user), si existe.
func ClosePeriod(ctx context.Context, tx custody.OwnershipStore, petID, userID string, to time.Time) error {
	open, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: petID, UserID: userID, OpenOnly: true})
	if err != nil {
		return err
	}
	for _, p := range open {
		if err := tx.CloseOwnershipPeriod(ctx, p.ID, to); err != nil {
			return err
		}
	}
	return nil
}

// CurrentOwner devuelve el usuario con período abierto. Si por datos viejos no
// hubiera ninguno, cae al campo desnormalizado de la mascota.
func CurrentOwner(ctx context.Context, tx custody.Tx, petID string) (string, error) {
	open, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: petID, OpenOnly: true})
	if err != nil {
		return "", err
	}
	if len(open) > 0 {
		sort.Slice(open, func(i, j int) bool { return open[i].From.After(open[j].From) })
		return open[0].UserID, nil
	}

	p, err := tx.GetPet(ctx, petID)
	if err != nil {
		return "", err
	}
	return p.OwnerUserID, nil
}

// Transfer es la única forma de cambiar el dueño de una mascota: cierra todo
// período abierto de otros usuarios, abre el del nuevo dueño y actualiza la
// copia en la mascota. Debe correr dentro de la transacción del caller.
func Transfer(ctx context.Context, tx custody.Tx, petID, newOwnerUserID string, at time.Time) error {
	newOwnerUserID = strings.TrimSpace(newOwnerUserID)
	if newOwnerUserID == "" {
		return custody.NewValidationError("owner_user_id", "required")
	}

	prev, err := tx.GetPet(ctx, petID)
	if err != nil {
		return err
	}

	open, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: petID, OpenOnly: true})
	if err != nil {
		return err
	}
	for _, p := range open {
		if p.UserID == newOwnerUserID {
			continue
		}
		if err := tx.CloseOwnershipPeriod(ctx, p.ID, at); err != nil {
			return err
		}
	}
	// Dato heredado sin período: igual hay que cerrar la historia del dueño previo.
	if len(open) == 0 && prev.OwnerUserID != "" && prev.OwnerUserID != newOwnerUserID {
		if err := tx.InsertOwnershipPeriod(ctx, custody.OwnershipPeriod{
			ID:     uuid.NewString(),
			PetID:  petID,
			UserID: prev.OwnerUserID,
			From:   prev.CreatedAt,
			To:     &at,
		}); err != nil {
			return err
		}
	}

	if _, err := OpenPeriod(ctx, tx, petID, newOwnerUserID, at); err != nil {
		return err
	}
	return tx.SetPetOwner(ctx, petID, newOwnerUserID, at)
}

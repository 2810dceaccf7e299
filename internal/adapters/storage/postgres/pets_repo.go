package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/pets"

	"github.com/google/uuid"
)

type PetsRepo struct {
	db *sql.DB
}

func NewPetsRepo(db *sql.DB) *PetsRepo {
	return &PetsRepo{db: db}
}

var _ pets.Repository = (*PetsRepo)(nil)

const petColumns = `id, owner_user_id, name, species, breed, sex, status, birth_date, notes, created_at, updated_at`

func scanPet(s scanner) (pets.Pet, error) {
	var p pets.Pet
	var bd sql.NullTime
	if err := s.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&p.Species,
		&p.Breed,
		&p.Sex,
		&p.Status,
		&bd,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return pets.Pet{}, err
	}
	// birth_date es DATE, pgx lo mapea a time.Time midnight UTC
	p.BirthDate = timePtr(bd)
	return p, nil
}

// Create inserta la mascota y su primer período de propiedad en una sola transacción.
func (r *PetsRepo) Create(ctx context.Context, p pets.Pet) error {
	return NewStore(r.db).WithinTx(ctx, func(ctxTx custody.Tx) error {
		t := ctxTx.(*tx)
		if _, err := t.q.ExecContext(ctx, `
			INSERT INTO pets (`+petColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			p.ID,
			p.OwnerUserID,
			p.Name,
			string(p.Species),
			p.Breed,
			string(p.Sex),
			string(p.Status),
			nullTime(p.BirthDate),
			p.Notes,
			p.CreatedAt,
			p.UpdatedAt,
		); err != nil {
			return mapErr(err)
		}

		return t.InsertOwnershipPeriod(ctx, custody.OwnershipPeriod{
			ID:     uuid.NewString(),
			PetID:  p.ID,
			UserID: p.OwnerUserID,
			From:   p.CreatedAt,
		})
	})
}

// UpdateStatus bloquea la fila de la mascota, resuelve el dueño actual desde
// ownership_periods y guarda el cambio en la misma transacción.
func (r *PetsRepo) UpdateStatus(ctx context.Context, petID string, fn func(p *pets.Pet, currentOwnerUserID string) error) (pets.Pet, error) {
	var out pets.Pet
	err := NewStore(r.db).WithinTx(ctx, func(ctxTx custody.Tx) error {
		t := ctxTx.(*tx)
		p, err := t.GetPet(ctx, petID)
		if errors.Is(err, custody.ErrNotFound) {
			return pets.ErrNotFound
		}
		if err != nil {
			return err
		}
		owner, err := ownership.CurrentOwner(ctx, t, petID)
		if err != nil {
			return err
		}
		if err := fn(&p, owner); err != nil {
			return err
		}

		if err := t.update(ctx, `
			UPDATE pets SET status = $2, updated_at = $3 WHERE id = $1
		`, p.ID, string(p.Status), p.UpdatedAt); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return pets.Pet{}, err
	}
	return out, nil
}

func (r *PetsRepo) GetByID(ctx context.Context, id string) (pets.Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return pets.Pet{}, pets.ErrNotFound
	}

	p, err := scanPet(r.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pets.Pet{}, pets.ErrNotFound
		}
		return pets.Pet{}, err
	}
	return p, nil
}

func (r *PetsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]pets.Pet, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+petColumns+`
		FROM pets
		WHERE owner_user_id = $1 AND status <> 'deleted'
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pets.Pet, 0)
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

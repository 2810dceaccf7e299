package pets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("pet not found")
	ErrForbidden    = errors.New("forbidden")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Name      string
	Species   string
	Breed     string
	Sex       string
	BirthDate *time.Time
	Notes     string
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Pet, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Pet{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Pet{}, ErrInvalidInput
	}

	species := Species(strings.ToLower(strings.TrimSpace(in.Species)))
	if species == "" {
		species = SpeciesCat
	}
	sex := Sex(strings.ToLower(strings.TrimSpace(in.Sex)))
	if sex == "" {
		sex = SexUnknown
	}
	if !species.Valid() || !sex.Valid() {
		return Pet{}, ErrInvalidInput
	}

	now := s.now().UTC()
	p := Pet{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        strings.TrimSpace(in.Name),
		Species:     species,
		Breed:       strings.TrimSpace(in.Breed),
		Sex:         sex,
		Status:      StatusActive,
		BirthDate:   in.BirthDate,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Pet{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Pet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Pet{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Pet, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// UpdateStatus cambia el estado (lost, deceased, ...). Solo el dueño actual
// según el historial de propiedad.
func (s *Service) UpdateStatus(ctx context.Context, petID, actorUserID string, status Status) (Pet, error) {
	if !status.Valid() {
		return Pet{}, ErrInvalidInput
	}
	petID = strings.TrimSpace(petID)
	if petID == "" {
		return Pet{}, ErrNotFound
	}

	now := s.now().UTC()
	return s.repo.UpdateStatus(ctx, petID, func(p *Pet, owner string) error {
		if actorUserID == "" || owner != actorUserID {
			return ErrForbidden
		}
		if p.Status != status {
			p.Status = status
			p.UpdatedAt = now
		}
		return nil
	})
}

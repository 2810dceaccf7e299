package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/pets"
)

type tx struct {
	state state
}

var _ custody.Tx = (*tx)(nil)

// Pets

func (t *tx) GetPet(ctx context.Context, petID string) (pets.Pet, error) {
	p, ok := t.state.pets[strings.TrimSpace(petID)]
	if !ok {
		return pets.Pet{}, custody.ErrNotFound
	}
	return p, nil
}

func (t *tx) SetPetOwner(ctx context.Context, petID, ownerUserID string, at time.Time) error {
	p, ok := t.state.pets[petID]
	if !ok {
		return custody.ErrNotFound
	}
	p.OwnerUserID = ownerUserID
	p.UpdatedAt = at
	t.state.pets[petID] = p
	return nil
}

// Placement requests

func (t *tx) CreatePlacementRequest(ctx context.Context, p custody.PlacementRequest) error {
	if _, exists := t.state.placements[p.ID]; exists {
		return custody.ErrDuplicate
	}
	// Equivalente al índice único parcial (pet_id, type) WHERE status IN (open, pending_review).
	if p.Status.IsActive() {
		for _, other := range t.state.placements {
			if other.PetID == p.PetID && other.Type == p.Type && other.Status.IsActive() {
				return custody.ErrDuplicate
			}
		}
	}
	t.state.placements[p.ID] = p
	return nil
}

func (t *tx) GetPlacementRequest(ctx context.Context, id string) (custody.PlacementRequest, error) {
	p, ok := t.state.placements[strings.TrimSpace(id)]
	if !ok {
		return custody.PlacementRequest{}, custody.ErrNotFound
	}
	return p, nil
}

func (t *tx) UpdatePlacementRequest(ctx context.Context, p custody.PlacementRequest) error {
	if _, ok := t.state.placements[p.ID]; !ok {
		return custody.ErrNotFound
	}
	t.state.placements[p.ID] = p
	return nil
}

func (t *tx) ListPlacementRequests(ctx context.Context, f custody.PlacementFilter) ([]custody.PlacementRequest, error) {
	out := make([]custody.PlacementRequest, 0)
	for _, p := range t.state.placements {
		if f.PetID != "" && p.PetID != f.PetID {
			continue
		}
		if f.ActiveOnly && !p.Status.IsActive() {
			continue
		}
		if f.ExpiredAt != nil {
			if p.Status != custody.PlacementOpen || p.ExpiresAt == nil || p.ExpiresAt.After(*f.ExpiredAt) {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Transfer requests

func (t *tx) CreateTransferRequest(ctx context.Context, r custody.TransferRequest) error {
	if _, exists := t.state.transfers[r.ID]; exists {
		return custody.ErrDuplicate
	}
	if r.Status == custody.TransferPending {
		for _, other := range t.state.transfers {
			if other.PlacementRequestID == r.PlacementRequestID &&
				other.InitiatorUserID == r.InitiatorUserID &&
				other.Status == custody.TransferPending {
				return custody.ErrDuplicate
			}
		}
	}
	t.state.transfers[r.ID] = r
	return nil
}

func (t *tx) GetTransferRequest(ctx context.Context, id string) (custody.TransferRequest, error) {
	r, ok := t.state.transfers[strings.TrimSpace(id)]
	if !ok {
		return custody.TransferRequest{}, custody.ErrNotFound
	}
	return r, nil
}

func (t *tx) UpdateTransferRequest(ctx context.Context, r custody.TransferRequest) error {
	if _, ok := t.state.transfers[r.ID]; !ok {
		return custody.ErrNotFound
	}
	t.state.transfers[r.ID] = r
	return nil
}

func (t *tx) ListTransferRequests(ctx context.Context, f custody.TransferFilter) ([]custody.TransferRequest, error) {
	out := make([]custody.TransferRequest, 0)
	for _, r := range t.state.transfers {
		if f.PlacementRequestID != "" && r.PlacementRequestID != f.PlacementRequestID {
			continue
		}
		if f.UserID != "" && r.InitiatorUserID != f.UserID && r.RecipientUserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Handovers

func (t *tx) CreateTransferHandover(ctx context.Context, h custody.TransferHandover) error {
	if _, exists := t.state.handovers[h.ID]; exists {
		return custody.ErrDuplicate
	}
	if h.Status.IsOpen() {
		for _, other := range t.state.handovers {
			if other.TransferRequestID == h.TransferRequestID && other.Status.IsOpen() {
				return custody.ErrDuplicate
			}
		}
	}
	t.state.handovers[h.ID] = h
	return nil
}

func (t *tx) GetTransferHandover(ctx context.Context, id string) (custody.TransferHandover, error) {
	h, ok := t.state.handovers[strings.TrimSpace(id)]
	if !ok {
		return custody.TransferHandover{}, custody.ErrNotFound
	}
	return h, nil
}

func (t *tx) UpdateTransferHandover(ctx context.Context, h custody.TransferHandover) error {
	if _, ok := t.state.handovers[h.ID]; !ok {
		return custody.ErrNotFound
	}
	t.state.handovers[h.ID] = h
	return nil
}

func (t *tx) ListTransferHandovers(ctx context.Context, transferRequestID string) ([]custody.TransferHandover, error) {
	out := make([]custody.TransferHandover, 0)
	for _, h := range t.state.handovers {
		if h.TransferRequestID == transferRequestID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) CreateReturnHandover(ctx context.Context, h custody.FosterReturnHandover) error {
	if _, exists := t.state.returns[h.ID]; exists {
		return custody.ErrDuplicate
	}
	if h.Status.IsOpen() {
		for _, other := range t.state.returns {
			if other.FosterAssignmentID == h.FosterAssignmentID && other.Status.IsOpen() {
				return custody.ErrDuplicate
			}
		}
	}
	t.state.returns[h.ID] = h
	return nil
}

func (t *tx) GetReturnHandover(ctx context.Context, id string) (custody.FosterReturnHandover, error) {
	h, ok := t.state.returns[strings.TrimSpace(id)]
	if !ok {
		return custody.FosterReturnHandover{}, custody.ErrNotFound
	}
	return h, nil
}

func (t *tx) UpdateReturnHandover(ctx context.Context, h custody.FosterReturnHandover) error {
	if _, ok := t.state.returns[h.ID]; !ok {
		return custody.ErrNotFound
	}
	t.state.returns[h.ID] = h
	return nil
}

// Foster assignments

func (t *tx) UpsertFosterAssignment(ctx context.Context, a custody.FosterAssignment) (custody.FosterAssignment, bool, error) {
	for _, other := range t.state.fosters {
		if other.PetID == a.PetID &&
			other.OwnerUserID == a.OwnerUserID &&
			other.FosterUserID == a.FosterUserID &&
			other.TransferRequestID == a.TransferRequestID {
			return other, false, nil
		}
	}
	t.state.fosters[a.ID] = a
	return a, true, nil
}

func (t *tx) GetFosterAssignment(ctx context.Context, id string) (custody.FosterAssignment, error) {
	a, ok := t.state.fosters[strings.TrimSpace(id)]
	if !ok {
		return custody.FosterAssignment{}, custody.ErrNotFound
	}
	return a, nil
}

func (t *tx) UpdateFosterAssignment(ctx context.Context, a custody.FosterAssignment) error {
	if _, ok := t.state.fosters[a.ID]; !ok {
		return custody.ErrNotFound
	}
	t.state.fosters[a.ID] = a
	return nil
}

func (t *tx) ListFosterAssignments(ctx context.Context, f custody.FosterFilter) ([]custody.FosterAssignment, error) {
	out := make([]custody.FosterAssignment, 0)
	for _, a := range t.state.fosters {
		if f.PetID != "" && a.PetID != f.PetID {
			continue
		}
		if f.UserID != "" && a.OwnerUserID != f.UserID && a.FosterUserID != f.UserID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Ownership ledger

func (t *tx) InsertOwnershipPeriod(ctx context.Context, p custody.OwnershipPeriod) error {
	if _, exists := t.state.periods[p.ID]; exists {
		return custody.ErrDuplicate
	}
	if p.IsOpen() {
		for _, other := range t.state.periods {
			if other.PetID == p.PetID && other.UserID == p.UserID && other.IsOpen() {
				return custody.ErrDuplicate
			}
		}
	}
	t.state.periods[p.ID] = p
	return nil
}

func (t *tx) CloseOwnershipPeriod(ctx context.Context, id string, to time.Time) error {
	p, ok := t.state.periods[id]
	if !ok {
		return custody.ErrNotFound
	}
	if !p.IsOpen() {
		return nil
	}
	p.To = &to
	t.state.periods[id] = p
	return nil
}

func (t *tx) ListOwnershipPeriods(ctx context.Context, f custody.OwnershipFilter) ([]custody.OwnershipPeriod, error) {
	out := make([]custody.OwnershipPeriod, 0)
	for _, p := range t.state.periods {
		if f.PetID != "" && p.PetID != f.PetID {
			continue
		}
		if f.UserID != "" && p.UserID != f.UserID {
			continue
		}
		if f.OpenOnly && !p.IsOpen() {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From.Before(out[j].From) })
	return out, nil
}

// Events

func (t *tx) AppendEvents(ctx context.Context, events ...custody.Event) error {
	t.state.events = append(t.state.events, events...)
	return nil
}

func (t *tx) ListEvents(ctx context.Context, petID string, limit int) ([]custody.Event, error) {
	out := make([]custody.Event, 0)
	for i := len(t.state.events) - 1; i >= 0; i-- {
		e := t.state.events[i]
		if e.PetID != petID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

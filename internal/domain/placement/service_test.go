package placement

import (
	"context"
	"testing"
	"time"

	mem "pet-custody/internal/adapters/storage/memory"
	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/pets"
	"pet-custody/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	events []custody.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, evs []custody.Event) {
	d.events = append(d.events, evs...)
}

func (d *recordingDispatcher) types() []custody.EventType {
	out := make([]custody.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

var owner = auth.Claims{UserID: "owner-1"}

func newFixture(t *testing.T) (*Service, *mem.Store, *recordingDispatcher) {
	t.Helper()
	store := mem.NewStore()
	require.NoError(t, store.Pets().Create(context.Background(), pets.Pet{
		ID:          "pet-1",
		OwnerUserID: owner.UserID,
		Name:        "Milo",
		Species:     pets.SpeciesCat,
		Sex:         pets.SexFemale,
		Status:      pets.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}))

	d := &recordingDispatcher{}
	return NewService(store, d), store, d
}

func TestCreate_OpensRequest(t *testing.T) {
	svc, _, d := newFixture(t)

	p, err := svc.Create(context.Background(), owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree, Notes: " two weeks "})
	require.NoError(t, err)

	assert.Equal(t, custody.PlacementOpen, p.Status)
	assert.True(t, p.IsActive)
	assert.Equal(t, "two weeks", p.Notes)
	assert.Equal(t, []custody.EventType{custody.EventPlacementCreated}, d.types())
}

func TestCreate_OneActivePerPetAndType(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent})
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent})
	assert.ErrorIs(t, err, custody.ErrDuplicate)

	// Otro tipo no compite por el mismo cupo.
	_, err = svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterPaid})
	assert.NoError(t, err)
}

func TestCreate_ErrorOrder(t *testing.T) {
	svc, store, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, CreateInput{PetID: "missing", Type: custody.PlacementPermanent})
	assert.ErrorIs(t, err, custody.ErrNotFound)

	// Forbidden gana sobre el tipo inválido.
	_, err = svc.Create(ctx, auth.Claims{UserID: "stranger"}, CreateInput{PetID: "pet-1", Type: "bogus"})
	assert.ErrorIs(t, err, custody.ErrForbidden)

	_, err = svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: "bogus"})
	var verr *custody.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "request_type")

	_, err = store.Pets().UpdateStatus(ctx, "pet-1", func(p *pets.Pet, _ string) error {
		p.Status = pets.StatusLost
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent})
	assert.ErrorIs(t, err, custody.ErrConflict)
}

func TestCreate_ValidatesDates(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	start := now.AddDate(0, 0, 10)
	end := now.AddDate(0, 0, 5)
	past := now.Add(-time.Minute)

	_, err := svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterPaid, StartDate: &start, EndDate: &end, ExpiresAt: &past})

	var verr *custody.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "end_date")
	assert.Contains(t, verr.Fields, "expires_at")
}

func TestCancel_RejectsPendingOffers(t *testing.T) {
	svc, store, d := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree})
	require.NoError(t, err)
	require.NoError(t, store.WithinTx(ctx, func(tx custody.Tx) error {
		return tx.CreateTransferRequest(ctx, custody.TransferRequest{
			ID:                 "tr-1",
			PlacementRequestID: p.ID,
			PetID:              p.PetID,
			InitiatorUserID:    "helper-1",
			RecipientUserID:    owner.UserID,
			Relationship:       custody.RelationshipFoster,
			Status:             custody.TransferPending,
			CreatedAt:          time.Now(),
		})
	}))

	_, err = svc.Cancel(ctx, auth.Claims{UserID: "helper-1"}, p.ID)
	assert.ErrorIs(t, err, custody.ErrForbidden)

	closed, err := svc.Cancel(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementCancelled, closed.Status)
	assert.False(t, closed.IsActive)
	assert.NotNil(t, closed.ClosedAt)

	require.NoError(t, store.View(ctx, func(tx custody.Tx) error {
		tr, err := tx.GetTransferRequest(ctx, "tr-1")
		require.NoError(t, err)
		assert.Equal(t, custody.TransferRejected, tr.Status)
		return nil
	}))
	assert.Contains(t, d.types(), custody.EventTransferRejected)

	_, err = svc.Cancel(ctx, owner, p.ID)
	assert.ErrorIs(t, err, custody.ErrConflict)

	// El cupo quedó libre.
	_, err = svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree})
	assert.NoError(t, err)
}

func TestExpireDue_ClosesOnlyExpiredOpenRequests(t *testing.T) {
	svc, _, d := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := now.Add(time.Hour)
	later := now.Add(48 * time.Hour)
	due, err := svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree, ExpiresAt: &soon})
	require.NoError(t, err)
	keep, err := svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent, ExpiresAt: &later})
	require.NoError(t, err)

	svc.now = func() time.Time { return now.Add(2 * time.Hour) }

	n, err := svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementExpired, got.Status)
	assert.False(t, got.IsActive)

	got, err = svc.Get(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementOpen, got.Status)
	assert.Contains(t, d.types(), custody.EventPlacementExpired)

	// Segunda pasada: nada que vencer.
	n, err = svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListForPet_ActiveOnly(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, owner, a.ID)
	require.NoError(t, err)

	all, err := svc.ListForPet(ctx, "pet-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ActiveForPet(ctx, "pet-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, custody.PlacementPermanent, active[0].Type)

	_, err = svc.ListForPet(ctx, "missing", false)
	assert.ErrorIs(t, err, custody.ErrNotFound)
}

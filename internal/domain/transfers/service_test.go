package transfers_test

import (
	"context"
	"sync"
	"testing"
	"time"

	mem "pet-custody/internal/adapters/storage/memory"
	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/pets"
	"pet-custody/internal/domain/placement"
	"pet-custody/internal/domain/transfers"
	"pet-custody/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner   = auth.Claims{UserID: "owner-1"}
	helperA = auth.Claims{UserID: "helper-a", Roles: []string{auth.RoleHelper}}
	helperB = auth.Claims{UserID: "helper-b", Roles: []string{auth.RoleHelper}}
)

type fixture struct {
	store     *mem.Store
	placement *placement.Service
	transfers *transfers.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := mem.NewStore()
	require.NoError(t, store.Pets().Create(context.Background(), pets.Pet{
		ID:          "pet-1",
		OwnerUserID: owner.UserID,
		Name:        "Milo",
		Species:     pets.SpeciesDog,
		Sex:         pets.SexMale,
		Status:      pets.StatusActive,
		CreatedAt:   time.Now().UTC(),
	}))
	return fixture{
		store:     store,
		placement: placement.NewService(store, nil),
		transfers: transfers.NewService(store, nil),
	}
}

func (f fixture) openRequest(t *testing.T, typ custody.PlacementType) custody.PlacementRequest {
	t.Helper()
	p, err := f.placement.Create(context.Background(), owner, placement.CreateInput{PetID: "pet-1", Type: typ})
	require.NoError(t, err)
	return p
}

func TestCreate_DerivesRelationshipAndRecipient(t *testing.T) {
	f := newFixture(t)
	p := f.openRequest(t, custody.PlacementPermanent)

	tr, err := f.transfers.Create(context.Background(), helperA, transfers.CreateInput{PlacementRequestID: p.ID, Message: " hi "})
	require.NoError(t, err)

	assert.Equal(t, custody.RelationshipPermanent, tr.Relationship)
	assert.Equal(t, owner.UserID, tr.RecipientUserID)
	assert.Equal(t, custody.TransferPending, tr.Status)
	assert.Equal(t, "hi", tr.Message)
}

func TestCreate_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.openRequest(t, custody.PlacementFosterFree)

	_, err := f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: "missing"})
	assert.ErrorIs(t, err, custody.ErrNotFound)

	// El dueño no puede ofertar sobre su propia mascota.
	_, err = f.transfers.Create(ctx, auth.Claims{UserID: owner.UserID, Roles: []string{auth.RoleHelper}}, transfers.CreateInput{PlacementRequestID: p.ID})
	assert.ErrorIs(t, err, custody.ErrForbidden)

	_, err = f.transfers.Create(ctx, auth.Claims{UserID: "no-role"}, transfers.CreateInput{PlacementRequestID: p.ID})
	assert.ErrorIs(t, err, custody.ErrForbidden)

	_, err = f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID, Relationship: custody.RelationshipPermanent})
	assert.ErrorIs(t, err, custody.ErrInvalidInput)

	_, err = f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID, Relationship: custody.RelationshipTemporary})
	require.NoError(t, err)

	_, err = f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	assert.ErrorIs(t, err, custody.ErrDuplicate)
}

func TestAccept_MovesPlacementAndRejectsOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.openRequest(t, custody.PlacementFosterPaid)

	a, err := f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)
	b, err := f.transfers.Create(ctx, helperB, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)

	_, err = f.transfers.Accept(ctx, helperA, a.ID)
	assert.ErrorIs(t, err, custody.ErrForbidden)

	accepted, err := f.transfers.Accept(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.TransferAccepted, accepted.Status)
	assert.NotNil(t, accepted.AcceptedAt)

	other, err := f.transfers.Get(ctx, helperB, b.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.TransferRejected, other.Status)

	got, err := f.placement.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementPendingReview, got.Status)

	// Ya no se aceptan ofertas nuevas.
	_, err = f.transfers.Create(ctx, auth.Claims{UserID: "helper-c", Roles: []string{auth.RoleHelper}}, transfers.CreateInput{PlacementRequestID: p.ID})
	assert.ErrorIs(t, err, custody.ErrConflict)

	_, err = f.transfers.Reject(ctx, owner, a.ID)
	assert.ErrorIs(t, err, custody.ErrConflict)
}

func TestAccept_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.openRequest(t, custody.PlacementPermanent)

	a, err := f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)
	b, err := f.transfers.Create(ctx, helperB, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.transfers.Accept(ctx, owner, id)
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, custody.ErrConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestReject_LeavesPlacementOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.openRequest(t, custody.PlacementFosterFree)

	a, err := f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)

	rejected, err := f.transfers.Reject(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.TransferRejected, rejected.Status)

	got, err := f.placement.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementOpen, got.Status)

	// Tras el rechazo puede volver a ofertar.
	_, err = f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	assert.NoError(t, err)
}

func TestListForPlacement_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.openRequest(t, custody.PlacementFosterFree)

	_, err := f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)
	_, err = f.transfers.Create(ctx, helperB, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)

	all, err := f.transfers.ListForPlacement(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.transfers.ListForPlacement(ctx, helperA, p.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, helperA.UserID, mine[0].InitiatorUserID)

	pending, err := f.transfers.ListMine(ctx, owner, custody.TransferPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.transfers.Get(ctx, auth.Claims{UserID: "stranger"}, mine[0].ID)
	assert.ErrorIs(t, err, custody.ErrForbidden)
}

func TestAccept_RacingPlacementCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.openRequest(t, custody.PlacementFosterFree)
	tr, err := f.transfers.Create(ctx, helperA, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)

	var (
		wg                   sync.WaitGroup
		acceptErr, cancelErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = f.transfers.Accept(ctx, owner, tr.ID)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = f.placement.Cancel(ctx, owner, p.ID)
	}()
	wg.Wait()

	// Cancel siempre gana o llega después; accept solo puede perder con conflicto.
	require.NoError(t, cancelErr)
	gotP, err := f.placement.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementCancelled, gotP.Status)

	gotT, err := f.transfers.Get(ctx, owner, tr.ID)
	require.NoError(t, err)
	if acceptErr != nil {
		assert.ErrorIs(t, acceptErr, custody.ErrConflict)
		assert.Equal(t, custody.TransferRejected, gotT.Status)
	} else {
		assert.Equal(t, custody.TransferAccepted, gotT.Status)
	}
}

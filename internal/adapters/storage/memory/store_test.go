package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/pets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPet(t *testing.T, s *Store) pets.Pet {
	t.Helper()
	p := pets.Pet{ID: "pet-1", OwnerUserID: "owner-1", Name: "Milo", Status: pets.StatusActive, CreatedAt: time.Now()}
	require.NoError(t, s.Pets().Create(context.Background(), p))
	return p
}

func TestPetsCreate_OpensFirstPeriod(t *testing.T) {
	s := NewStore()
	p := seedPet(t, s)

	require.NoError(t, s.View(context.Background(), func(tx custody.Tx) error {
		periods, err := tx.ListOwnershipPeriods(context.Background(), custody.OwnershipFilter{PetID: p.ID, OpenOnly: true})
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, "owner-1", periods[0].UserID)
		return nil
	}))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedPet(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx custody.Tx) error {
		require.NoError(t, tx.CreatePlacementRequest(ctx, custody.PlacementRequest{
			ID: "pr-1", PetID: "pet-1", Type: custody.PlacementPermanent, Status: custody.PlacementOpen, IsActive: true,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx custody.Tx) error {
		_, err := tx.GetPlacementRequest(ctx, "pr-1")
		assert.ErrorIs(t, err, custody.ErrNotFound)
		return nil
	}))
}

func TestView_DoesNotPersistWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedPet(t, s)

	require.NoError(t, s.View(ctx, func(tx custody.Tx) error {
		return tx.SetPetOwner(ctx, "pet-1", "someone-else", time.Now())
	}))

	p, err := s.Pets().GetByID(ctx, "pet-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", p.OwnerUserID)
}

func TestUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedPet(t, s)

	err := s.WithinTx(ctx, func(tx custody.Tx) error {
		open := custody.PlacementRequest{ID: "a", PetID: "pet-1", Type: custody.PlacementFosterFree, Status: custody.PlacementOpen}
		require.NoError(t, tx.CreatePlacementRequest(ctx, open))

		open.ID = "b"
		assert.ErrorIs(t, tx.CreatePlacementRequest(ctx, open), custody.ErrDuplicate)

		h := custody.TransferHandover{ID: "h1", TransferRequestID: "tr-1", HandoverState: custody.HandoverState{Status: custody.HandoverDisputed}}
		require.NoError(t, tx.CreateTransferHandover(ctx, h))
		h.ID = "h2"
		assert.ErrorIs(t, tx.CreateTransferHandover(ctx, h), custody.ErrDuplicate)

		r := custody.FosterReturnHandover{ID: "r1", FosterAssignmentID: "fa-1", HandoverState: custody.HandoverState{Status: custody.HandoverPending}}
		require.NoError(t, tx.CreateReturnHandover(ctx, r))
		r.ID = "r2"
		assert.ErrorIs(t, tx.CreateReturnHandover(ctx, r), custody.ErrDuplicate)

		return tx.InsertOwnershipPeriod(ctx, custody.OwnershipPeriod{ID: "dup", PetID: "pet-1", UserID: "owner-1", From: time.Now()})
	})
	assert.ErrorIs(t, err, custody.ErrDuplicate)
}

func TestListEvents_NewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.WithinTx(ctx, func(tx custody.Tx) error {
		return tx.AppendEvents(ctx,
			custody.Event{ID: "1", PetID: "pet-1"},
			custody.Event{ID: "2", PetID: "pet-2"},
			custody.Event{ID: "3", PetID: "pet-1"},
			custody.Event{ID: "4", PetID: "pet-1"},
		)
	}))

	require.NoError(t, s.View(ctx, func(tx custody.Tx) error {
		evs, err := tx.ListEvents(ctx, "pet-1", 2)
		require.NoError(t, err)
		require.Len(t, evs, 2)
		assert.Equal(t, "4", evs[0].ID)
		assert.Equal(t, "3", evs[1].ID)
		return nil
	}))
}

package handovers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mem "pet-custody/internal/adapters/storage/memory"
	"pet-custody/internal/domain/custody"
	"pet-custody/internal/domain/handovers"
	"pet-custody/internal/domain/ownership"
	"pet-custody/internal/domain/pets"
	"pet-custody/internal/domain/placement"
	"pet-custody/internal/domain/transfers"
	"pet-custody/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner  = auth.Claims{UserID: "owner-1"}
	helper = auth.Claims{UserID: "helper-1", Roles: []string{auth.RoleHelper}}
)

type fixture struct {
	store     *mem.Store
	placement *placement.Service
	transfers *transfers.Service
	handovers *handovers.Service
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
		CreatedAt:   time.Now().Add(-time.Hour).UTC(),
	}))
	return fixture{
		store:     store,
		placement: placement.NewService(store, nil),
		transfers: transfers.NewService(store, nil),
		handovers: handovers.NewService(store, nil),
	}
}

// accepted deja un transfer aceptado sobre un pedido del tipo indicado.
func (f fixture) accepted(t *testing.T, typ custody.PlacementType, end *time.Time) (custody.PlacementRequest, custody.TransferRequest) {
	t.Helper()
	ctx := context.Background()

	p, err := f.placement.Create(ctx, owner, placement.CreateInput{PetID: "pet-1", Type: typ, EndDate: end})
	require.NoError(t, err)
	tr, err := f.transfers.Create(ctx, helper, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)
	tr, err = f.transfers.Accept(ctx, owner, tr.ID)
	require.NoError(t, err)
	return p, tr
}

func (f fixture) fosters(t *testing.T) []custody.FosterAssignment {
	t.Helper()
	var out []custody.FosterAssignment
	require.NoError(t, f.store.View(context.Background(), func(tx custody.Tx) error {
		items, err := tx.ListFosterAssignments(context.Background(), custody.FosterFilter{PetID: "pet-1"})
		out = items
		return err
	}))
	return out
}

func (f fixture) currentOwner(t *testing.T) string {
	t.Helper()
	var out string
	require.NoError(t, f.store.View(context.Background(), func(tx custody.Tx) error {
		o, err := ownership.CurrentOwner(context.Background(), tx, "pet-1")
		out = o
		return err
	}))
	return out
}

func TestFosterFlow_StartsAssignmentAndKeepsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := time.Now().AddDate(0, 1, 0).UTC()
	p, tr := f.accepted(t, custody.PlacementFosterFree, &end)

	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{Location: "vet"})
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverPending, h.Status)

	h, err = f.handovers.HelperConfirm(ctx, helper, h.ID, true, "all good")
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverConfirmed, h.Status)

	h, err = f.handovers.Complete(ctx, owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverCompleted, h.Status)

	got, err := f.transfers.Get(ctx, owner, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.TransferCompleted, got.Status)

	gotP, err := f.placement.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementFulfilled, gotP.Status)

	fa := f.fosters(t)
	require.Len(t, fa, 1)
	assert.Equal(t, custody.FosterActive, fa[0].Status)
	assert.Equal(t, helper.UserID, fa[0].FosterUserID)
	assert.Equal(t, tr.ID, fa[0].TransferRequestID)
	require.NotNil(t, fa[0].ExpectedEndDate)

	assert.Equal(t, owner.UserID, f.currentOwner(t))
}

func TestPermanentFlow_TransfersOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tr := f.accepted(t, custody.PlacementPermanent, nil)

	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)
	_, err = f.handovers.Complete(ctx, helper, h.ID)
	require.NoError(t, err)

	assert.Equal(t, helper.UserID, f.currentOwner(t))
	assert.Empty(t, f.fosters(t))

	require.NoError(t, f.store.View(ctx, func(tx custody.Tx) error {
		periods, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: "pet-1"})
		require.NoError(t, err)
		require.Len(t, periods, 2)
		assert.Equal(t, owner.UserID, periods[0].UserID)
		assert.False(t, periods[0].IsOpen())
		assert.Equal(t, helper.UserID, periods[1].UserID)
		assert.True(t, periods[1].IsOpen())
		return nil
	}))

	// El nuevo dueño puede volver a ubicar la mascota.
	_, err = f.placement.Create(ctx, helper, placement.CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree})
	assert.NoError(t, err)
	_, err = f.placement.Create(ctx, owner, placement.CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent})
	assert.ErrorIs(t, err, custody.ErrForbidden)
}

func TestDispute_BlocksCompleteUntilCanceled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tr := f.accepted(t, custody.PlacementFosterPaid, nil)

	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)
	_, err = f.handovers.HelperConfirm(ctx, helper, h.ID, false, "not the agreed pet")
	require.NoError(t, err)

	_, err = f.handovers.Complete(ctx, owner, h.ID)
	assert.ErrorIs(t, err, custody.ErrConflict)

	// Con uno abierto no se puede iniciar otro.
	_, err = f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrDuplicate)

	_, err = f.handovers.Cancel(ctx, helper, h.ID)
	require.NoError(t, err)

	h2, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, h2.ID)
}

func TestInitiate_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, tr := f.accepted(t, custody.PlacementFosterFree, nil)

	_, err := f.handovers.Initiate(ctx, owner, "missing", custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrNotFound)

	_, err = f.handovers.Initiate(ctx, helper, tr.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrForbidden)

	_, err = f.placement.Cancel(ctx, owner, p.ID)
	require.NoError(t, err)

	_, err = f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrConflict)
}

func TestInitiate_RequiresAcceptedTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.placement.Create(ctx, owner, placement.CreateInput{PetID: "pet-1", Type: custody.PlacementPermanent})
	require.NoError(t, err)
	tr, err := f.transfers.Create(ctx, helper, transfers.CreateInput{PlacementRequestID: p.ID})
	require.NoError(t, err)

	_, err = f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrConflict)
}

func TestComplete_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tr := f.accepted(t, custody.PlacementFosterFree, nil)

	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)
	_, err = f.handovers.Complete(ctx, owner, h.ID)
	require.NoError(t, err)

	_, err = f.handovers.Complete(ctx, helper, h.ID)
	assert.ErrorIs(t, err, custody.ErrConflict)
	assert.Len(t, f.fosters(t), 1)
}

// failingStore corre sobre el store real pero falla al crear la asignación.
type failingStore struct{ custody.Store }

type failingTx struct{ custody.Tx }

func (s failingStore) WithinTx(ctx context.Context, fn func(tx custody.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx custody.Tx) error { return fn(failingTx{tx}) })
}

func (failingTx) UpsertFosterAssignment(context.Context, custody.FosterAssignment) (custody.FosterAssignment, bool, error) {
	return custody.FosterAssignment{}, false, errors.New("disk full")
}

func TestComplete_IsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, tr := f.accepted(t, custody.PlacementFosterFree, nil)

	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)

	broken := handovers.NewService(failingStore{f.store}, nil)
	_, err = broken.Complete(ctx, owner, h.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	got, err := f.handovers.Get(ctx, owner, h.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverPending, got.Status)

	gotT, err := f.transfers.Get(ctx, owner, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.TransferAccepted, gotT.Status)

	gotP, err := f.placement.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementPendingReview, gotP.Status)
	assert.Empty(t, f.fosters(t))

	// Con el store sano la misma entrega se completa.
	_, err = f.handovers.Complete(ctx, owner, h.ID)
	assert.NoError(t, err)
}

func TestReturnFlow_CompletesAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tr := f.accepted(t, custody.PlacementFosterFree, nil)

	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)
	_, err = f.handovers.Complete(ctx, owner, h.ID)
	require.NoError(t, err)
	fa := f.fosters(t)[0]

	// Solo el foster inicia la devolución.
	_, err = f.handovers.InitiateReturn(ctx, owner, fa.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrForbidden)

	rh, err := f.handovers.InitiateReturn(ctx, helper, fa.ID, custody.StartInput{Location: "home"})
	require.NoError(t, err)

	_, err = f.handovers.InitiateReturn(ctx, helper, fa.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrDuplicate)

	_, err = f.handovers.OwnerConfirm(ctx, helper, fa.ID, rh.ID, true, "")
	assert.ErrorIs(t, err, custody.ErrForbidden)

	rh, err = f.handovers.OwnerConfirm(ctx, owner, fa.ID, rh.ID, true, "fine")
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverConfirmed, rh.Status)

	rh, err = f.handovers.CompleteReturn(ctx, helper, fa.ID, rh.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverCompleted, rh.Status)

	done := f.fosters(t)[0]
	assert.Equal(t, custody.FosterCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, owner.UserID, f.currentOwner(t))

	// La devolución de otra asignación no se encuentra por este camino.
	_, err = f.handovers.GetReturn(ctx, owner, "other-assignment", rh.ID)
	assert.ErrorIs(t, err, custody.ErrNotFound)
}

func TestPermanentCompletion_ClosesOtherPlacements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fosterHelper := auth.Claims{UserID: "helper-b", Roles: []string{auth.RoleHelper}}

	fp, err := f.placement.Create(ctx, owner, placement.CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree})
	require.NoError(t, err)
	ft, err := f.transfers.Create(ctx, fosterHelper, transfers.CreateInput{PlacementRequestID: fp.ID})
	require.NoError(t, err)
	ft, err = f.transfers.Accept(ctx, owner, ft.ID)
	require.NoError(t, err)
	fh, err := f.handovers.Initiate(ctx, owner, ft.ID, custody.StartInput{})
	require.NoError(t, err)

	_, pt := f.accepted(t, custody.PlacementPermanent, nil)
	ph, err := f.handovers.Initiate(ctx, owner, pt.ID, custody.StartInput{})
	require.NoError(t, err)
	_, err = f.handovers.Complete(ctx, helper, ph.ID)
	require.NoError(t, err)
	assert.Equal(t, helper.UserID, f.currentOwner(t))

	gotP, err := f.placement.Get(ctx, fp.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.PlacementCancelled, gotP.Status)
	assert.False(t, gotP.IsActive)

	gotT, err := f.transfers.Get(ctx, owner, ft.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.TransferCancelled, gotT.Status)

	gotH, err := f.handovers.Get(ctx, owner, fh.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.HandoverCanceled, gotH.Status)

	// El dueño anterior ya no puede entregar ni completar lo pactado antes.
	_, err = f.handovers.Complete(ctx, owner, fh.ID)
	assert.ErrorIs(t, err, custody.ErrConflict)
	_, err = f.handovers.Initiate(ctx, owner, ft.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrConflict)
	assert.Empty(t, f.fosters(t))

	// El cupo (pet, foster_free) quedó libre para el nuevo dueño.
	_, err = f.placement.Create(ctx, helper, placement.CreateInput{PetID: "pet-1", Type: custody.PlacementFosterFree})
	assert.NoError(t, err)
}

func TestHandover_RejectsFormerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tr := f.accepted(t, custody.PlacementFosterFree, nil)
	h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	require.NoError(t, err)

	// La mascota cambia de dueño por fuera de este pedido.
	require.NoError(t, f.store.WithinTx(ctx, func(tx custody.Tx) error {
		return ownership.Transfer(ctx, tx, "pet-1", "someone-else", time.Now().UTC())
	}))

	_, err = f.handovers.Complete(ctx, owner, h.ID)
	assert.ErrorIs(t, err, custody.ErrOwnerChanged)
	assert.ErrorIs(t, err, custody.ErrConflict)
	assert.Empty(t, f.fosters(t))

	_, err = f.handovers.Cancel(ctx, owner, h.ID)
	require.NoError(t, err)
	_, err = f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
	assert.ErrorIs(t, err, custody.ErrOwnerChanged)
}

// race corre fn dos veces en paralelo y devuelve los dos errores.
func race(fn func(i int) error) []error {
	errs := make([]error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func requireOneWinner(t *testing.T, errs []error) {
	t.Helper()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, custody.ErrConflict)
	}
	require.Equal(t, 1, ok)
}

func TestComplete_Concurrent(t *testing.T) {
	t.Run("foster", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, tr := f.accepted(t, custody.PlacementFosterFree, nil)
		h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
		require.NoError(t, err)

		actors := []auth.Claims{owner, helper}
		requireOneWinner(t, race(func(i int) error {
			_, err := f.handovers.Complete(ctx, actors[i], h.ID)
			return err
		}))
		assert.Len(t, f.fosters(t), 1)
	})

	t.Run("permanent", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, tr := f.accepted(t, custody.PlacementPermanent, nil)
		h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
		require.NoError(t, err)

		actors := []auth.Claims{owner, helper}
		requireOneWinner(t, race(func(i int) error {
			_, err := f.handovers.Complete(ctx, actors[i], h.ID)
			return err
		}))

		require.NoError(t, f.store.View(ctx, func(tx custody.Tx) error {
			periods, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: "pet-1"})
			require.NoError(t, err)
			assert.Len(t, periods, 2)
			open, err := tx.ListOwnershipPeriods(ctx, custody.OwnershipFilter{PetID: "pet-1", OpenOnly: true})
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, helper.UserID, open[0].UserID)
			return nil
		}))
	})

	t.Run("return", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		_, tr := f.accepted(t, custody.PlacementFosterFree, nil)
		h, err := f.handovers.Initiate(ctx, owner, tr.ID, custody.StartInput{})
		require.NoError(t, err)
		_, err = f.handovers.Complete(ctx, owner, h.ID)
		require.NoError(t, err)
		fa := f.fosters(t)[0]

		rh, err := f.handovers.InitiateReturn(ctx, helper, fa.ID, custody.StartInput{})
		require.NoError(t, err)

		actors := []auth.Claims{owner, helper}
		requireOneWinner(t, race(func(i int) error {
			_, err := f.handovers.CompleteReturn(ctx, actors[i], fa.ID, rh.ID)
			return err
		}))
		assert.Equal(t, custody.FosterCompleted, f.fosters(t)[0].Status)
	})
}

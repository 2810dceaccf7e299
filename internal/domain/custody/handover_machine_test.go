package custody

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parties = Parties{OwnerUserID: "owner-1", CounterpartUserID: "helper-1"}

func started(t *testing.T, m HandoverMachine, actor string) HandoverState {
	t.Helper()
	h, err := m.Start(parties, actor, StartInput{Location: " park "}, time.Now())
	require.NoError(t, err)
	return h
}

func TestStart_OnlyInitiator(t *testing.T) {
	now := time.Now()

	_, err := InitialHandover.Start(parties, "helper-1", StartInput{}, now)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = ReturnHandover.Start(parties, "owner-1", StartInput{}, now)
	assert.ErrorIs(t, err, ErrForbidden)

	h := started(t, InitialHandover, "owner-1")
	assert.Equal(t, HandoverPending, h.Status)
	assert.Equal(t, "park", h.Location)
}

func TestStart_RejectsPastSchedule(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	_, err := InitialHandover.Start(parties, "owner-1", StartInput{ScheduledAt: &past}, now)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "scheduled_at")
}

func TestConfirm_OkAndDispute(t *testing.T) {
	ok := started(t, InitialHandover, "owner-1")
	require.NoError(t, InitialHandover.Confirm(&ok, parties, "helper-1", true, "healthy", time.Now()))
	assert.Equal(t, HandoverConfirmed, ok.Status)
	assert.True(t, ok.ConditionConfirmed)
	assert.NotNil(t, ok.ConfirmedAt)

	bad := started(t, InitialHandover, "owner-1")
	require.NoError(t, InitialHandover.Confirm(&bad, parties, "helper-1", false, "limping", time.Now()))
	assert.Equal(t, HandoverDisputed, bad.Status)
	assert.Equal(t, "limping", bad.ConditionNotes)
}

func TestConfirm_WrongPartyAndState(t *testing.T) {
	h := started(t, InitialHandover, "owner-1")
	assert.ErrorIs(t, InitialHandover.Confirm(&h, parties, "owner-1", true, "", time.Now()), ErrForbidden)

	require.NoError(t, InitialHandover.Confirm(&h, parties, "helper-1", true, "", time.Now()))
	assert.ErrorIs(t, InitialHandover.Confirm(&h, parties, "helper-1", true, "", time.Now()), ErrConflict)
}

func TestReturnHandover_OwnerConfirms(t *testing.T) {
	h := started(t, ReturnHandover, "helper-1")
	assert.ErrorIs(t, ReturnHandover.Confirm(&h, parties, "helper-1", true, "", time.Now()), ErrForbidden)
	require.NoError(t, ReturnHandover.Confirm(&h, parties, "owner-1", true, "", time.Now()))
	assert.Equal(t, HandoverConfirmed, h.Status)
}

func TestComplete_DisputedIsBlocked(t *testing.T) {
	h := started(t, InitialHandover, "owner-1")
	require.NoError(t, InitialHandover.Confirm(&h, parties, "helper-1", false, "", time.Now()))

	err := InitialHandover.Complete(&h, parties, "owner-1", time.Now())
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, HandoverDisputed, h.Status)
}

func TestComplete_FromPendingByEitherParty(t *testing.T) {
	h := started(t, InitialHandover, "owner-1")
	assert.ErrorIs(t, InitialHandover.Complete(&h, parties, "stranger", time.Now()), ErrForbidden)

	require.NoError(t, InitialHandover.Complete(&h, parties, "helper-1", time.Now()))
	assert.Equal(t, HandoverCompleted, h.Status)
	assert.NotNil(t, h.CompletedAt)

	assert.ErrorIs(t, InitialHandover.Complete(&h, parties, "owner-1", time.Now()), ErrConflict)
}

func TestCancel_FreesOpenHandover(t *testing.T) {
	h := started(t, InitialHandover, "owner-1")
	require.NoError(t, InitialHandover.Confirm(&h, parties, "helper-1", false, "", time.Now()))
	require.NoError(t, InitialHandover.Cancel(&h, parties, "helper-1", time.Now()))

	assert.Equal(t, HandoverCanceled, h.Status)
	assert.False(t, h.Status.IsOpen())
	assert.ErrorIs(t, InitialHandover.Cancel(&h, parties, "owner-1", time.Now()), ErrConflict)
}

func TestRecorder_DedupesRecipients(t *testing.T) {
	now := time.Now()
	rec := NewRecorder(now)
	rec.Record(Event{Type: EventHandoverCompleted, Recipients: []string{"a", "", "a", "b"}})

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"a", "b"}, evs[0].Recipients)
	assert.NotEmpty(t, evs[0].ID)
	assert.Equal(t, now, evs[0].OccurredAt)
}

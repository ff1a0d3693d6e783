package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heldReservations() []Reservation {
	return []Reservation{
		{ReservationID: "a1b2c3d4", RestaurantID: "vetri", RestaurantName: "Vetri Cucina", Date: "2026-10-16", Time: "19:00", PartySize: 4, Status: StatusConfirmed},
		{ReservationID: "deadbeef", RestaurantID: "barclay", RestaurantName: "Barclay Prime", Date: "2026-10-16", Time: "23:00", PartySize: 2, Status: StatusConfirmed},
	}
}

func TestLedgerSelect(t *testing.T) {
	t.Parallel()
	l := newFixture().ledger

	_, err := l.Select(nil, "")
	assert.ErrorIs(t, err, ErrNoReservations)

	one := heldReservations()[:1]
	got, err := l.Select(one, "")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", got.ReservationID)

	_, err = l.Select(heldReservations(), "")
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, CodeAmbiguousReservation, be.Code)
	assert.Len(t, be.Choices, 2)
	assert.Contains(t, be.Message, "#a1b2c3d4")
	assert.Contains(t, be.Message, "#deadbeef")

	got, err = l.Select(heldReservations(), "#DEADBEEF")
	require.NoError(t, err)
	assert.Equal(t, "Barclay Prime", got.RestaurantName)

	_, err = l.Select(heldReservations(), "00000000")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestLedgerSelectIgnoresCancelled(t *testing.T) {
	t.Parallel()
	l := newFixture().ledger

	list := heldReservations()
	list[1].Status = StatusCancelled
	got, err := l.Select(list, "")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", got.ReservationID)
}

func TestLedgerCancel(t *testing.T) {
	t.Parallel()
	l := newFixture().ledger
	list := heldReservations()

	updated, got, err := l.Cancel(list, "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, StatusCancelled, updated[0].Status)
	assert.Equal(t, StatusConfirmed, list[0].Status, "input must not change")

	_, _, err = l.Cancel(updated, "a1b2c3d4")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestLedgerModify(t *testing.T) {
	t.Parallel()
	l := newFixture().ledger
	ctx := context.Background()
	list := heldReservations()

	updated, got, err := l.Modify(ctx, list, ModifyRequest{ConfirmationNumber: "a1b2c3d4", Time: "8pm", PartySize: 6})
	require.NoError(t, err)
	assert.Equal(t, "20:00", got.Time)
	assert.Equal(t, 6, got.PartySize)
	assert.Equal(t, "2026-10-16", got.Date)
	assert.Equal(t, got, updated[0])
	assert.Len(t, updated, 2)

	_, _, err = l.Modify(ctx, list, ModifyRequest{ConfirmationNumber: "a1b2c3d4", Time: "11pm"})
	assert.ErrorIs(t, err, ErrOutsideOperatingHours)

	_, _, err = l.Modify(ctx, list, ModifyRequest{ConfirmationNumber: "a1b2c3d4", Date: "sunday"})
	assert.ErrorIs(t, err, ErrOutsideOperatingHours)

	_, _, err = l.Modify(ctx, list, ModifyRequest{ConfirmationNumber: "a1b2c3d4"})
	assert.ErrorIs(t, err, ErrNothingToChange)

	_, _, err = l.Modify(ctx, list, ModifyRequest{ConfirmationNumber: "a1b2c3d4", Date: "2026-01-01"})
	assert.ErrorIs(t, err, ErrStaleAvailability)

	_, _, err = l.Modify(ctx, list, ModifyRequest{Time: "8pm"})
	assert.ErrorIs(t, err, ErrAmbiguousReservation)

	_, _, err = l.Modify(ctx, nil, ModifyRequest{Time: "8pm"})
	assert.ErrorIs(t, err, ErrNoReservations)
}

func TestMergeReservationsDedupsByID(t *testing.T) {
	t.Parallel()

	list := heldReservations()
	again := list[0]
	again.PartySize = 5
	fresh := Reservation{ReservationID: "feedface", Status: StatusConfirmed}

	merged := MergeReservations(list, again, fresh)
	require.Len(t, merged, 3)
	assert.Equal(t, 5, merged[0].PartySize)
	assert.Equal(t, "feedface", merged[2].ReservationID)
	assert.Equal(t, 4, list[0].PartySize)
}

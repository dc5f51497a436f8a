package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-saga/internal/repository"
)

func TestInitializeLaysOutRows(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	seats := f.seatMap(t)
	assert.Len(t, seats, 10)
	for _, label := range []string{"A1", "A5", "B1", "B5"} {
		assert.Contains(t, seats, label)
	}

	_, err := f.inv.Initialize(context.Background(), "show-1", 1, 1)
	require.Error(t, err)
	assert.Equal(t, ReasonAlreadyInitialized, reasonOf(t, err))
}

func TestInitializeRejectsBadLayout(t *testing.T) {
	inv := NewSeatInventory(repository.NewMemorySeatStore(), nil)
	_, err := inv.Initialize(context.Background(), "show-2", 0, 10)
	assert.True(t, IsValidation(err))
}

func TestListSeatsUninitialized(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	_, err := f.inv.ListSeats(context.Background(), "unknown")
	require.Error(t, err)
	assert.Equal(t, ReasonNotInitialized, reasonOf(t, err))
}

func TestValidateAndClaimIsAllOrNothing(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	ctx := context.Background()

	_, err := f.inv.ValidateAndClaim(ctx, "show-1", []string{"A2"}, "u1")
	require.NoError(t, err)

	_, err = f.inv.ValidateAndClaim(ctx, "show-1", []string{"A1", "A2"}, "u2")
	require.Error(t, err)
	assert.Equal(t, ReasonSeatAlreadyBooked, reasonOf(t, err))
	assert.False(t, f.seatMap(t)["A1"].Booked, "A1 must stay free when the claim fails")

	_, err = f.inv.ValidateAndClaim(ctx, "show-1", []string{"Z9"}, "u2")
	assert.Equal(t, ReasonSeatNotFound, reasonOf(t, err))

	_, err = f.inv.ValidateAndClaim(ctx, "show-1", nil, "u2")
	assert.Equal(t, ReasonNoSeatsSelected, reasonOf(t, err))
}

func TestValidateAndClaimAcceptsIDsAndLabels(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	b3 := f.seatMap(t)["B3"]

	claimed, err := f.inv.ValidateAndClaim(context.Background(), "show-1", []string{b3.ID, "A4", "A4"}, "u1")
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "B3", claimed[0].Label())
	assert.Equal(t, "A4", claimed[1].Label())
}

func TestHoldBlocksOthersButNotOwner(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	ctx := context.Background()

	expires, err := f.inv.Hold(ctx, "show-1", []string{"A1"}, "u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	_, err = f.inv.ValidateAndClaim(ctx, "show-1", []string{"A1"}, "u2")
	assert.Equal(t, ReasonSeatHeldByOther, reasonOf(t, err))

	_, err = f.inv.ValidateAndClaim(ctx, "show-1", []string{"A1"}, "u1")
	require.NoError(t, err)
	a1 := f.seatMap(t)["A1"]
	assert.True(t, a1.Booked)
	assert.False(t, a1.Held)
}

func TestExpiredHoldDoesNotBlock(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	ctx := context.Background()
	_, err := f.inv.Hold(ctx, "show-1", []string{"B2"}, "u1", time.Minute)
	require.NoError(t, err)

	f.inv.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }
	_, err = f.inv.ValidateAndClaim(ctx, "show-1", []string{"B2"}, "u2")
	assert.NoError(t, err)
}

func TestReleaseHolds(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	ctx := context.Background()
	_, err := f.inv.Hold(ctx, "show-1", []string{"A1", "A2"}, "sess-1", time.Minute)
	require.NoError(t, err)
	_, err = f.inv.Hold(ctx, "show-1", []string{"A3"}, "sess-2", time.Minute)
	require.NoError(t, err)

	n, err := f.inv.ReleaseHolds(ctx, "show-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	seats := f.seatMap(t)
	assert.False(t, seats["A1"].Held)
	assert.True(t, seats["A3"].Held)
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	ctx := context.Background()
	_, err := f.inv.ValidateAndClaim(ctx, "show-1", []string{"A1"}, "u1")
	require.NoError(t, err)

	require.NoError(t, f.inv.Release(ctx, "show-1", []string{"A1", "nope"}))
	require.NoError(t, f.inv.Release(ctx, "show-1", []string{"A1"}))
	assert.False(t, f.seatMap(t)["A1"].Booked)
}

func TestSwapKeepsStateOnFailure(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	ctx := context.Background()
	_, err := f.inv.ValidateAndClaim(ctx, "show-1", []string{"A1", "A2"}, "u1")
	require.NoError(t, err)
	_, err = f.inv.ValidateAndClaim(ctx, "show-1", []string{"B1"}, "u2")
	require.NoError(t, err)

	_, err = f.inv.Swap(ctx, "show-1", []string{"A1", "A2"}, []string{"A2", "B1"}, "u1")
	require.Error(t, err)
	seats := f.seatMap(t)
	assert.True(t, seats["A1"].Booked)
	assert.True(t, seats["A2"].Booked)

	claimed, err := f.inv.Swap(ctx, "show-1", []string{"A1", "A2"}, []string{"A2", "A3"}, "u1")
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
	seats = f.seatMap(t)
	assert.False(t, seats["A1"].Booked)
	assert.True(t, seats["A2"].Booked)
	assert.True(t, seats["A3"].Booked)
}

func TestConcurrentClaimsOnOneSeat(t *testing.T) {
	f := newFixture(t, LedgerConfig{})
	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.inv.ValidateAndClaim(context.Background(), "show-1", []string{"B5"}, "u"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

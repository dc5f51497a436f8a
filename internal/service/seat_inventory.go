package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-saga/internal/model"
	"github.com/iliyamo/cinema-booking-saga/internal/repository"
	"github.com/iliyamo/cinema-booking-saga/internal/utils"
)

// SeatInventory owns the claim state of every seat.  All reads-then-writes
// of a showtime's seats go through SeatStore.MutateShowtime, which
// serializes them per showtime.
type SeatInventory struct {
	store SeatStore
	log   *logrus.Logger
	now   func() time.Time
}

func NewSeatInventory(store SeatStore, log *logrus.Logger) *SeatInventory {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SeatInventory{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// ListSeats returns the showtime's seats in row/number order.  A showtime
// without a seat map fails with NOT_INITIALIZED; callers should refresh and
// retry rather than treat it as a bug.
func (inv *SeatInventory) ListSeats(ctx context.Context, showtimeID string) ([]model.Seat, error) {
	seats, err := inv.store.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		return nil, notInitialized(showtimeID)
	}
	return seats, nil
}

// Initialize creates a rows x perRow seat map labelled A1, A2, ... for a
// showtime.  A showtime can only be initialized once.
func (inv *SeatInventory) Initialize(ctx context.Context, showtimeID string, rows, perRow int) ([]model.Seat, error) {
	if showtimeID == "" {
		return nil, &ValidationError{Reason: ReasonMalformedInput, Field: "showtime_id", Msg: "is required"}
	}
	if rows <= 0 || perRow <= 0 || rows > 52 || perRow > 100 {
		return nil, &ValidationError{Reason: ReasonMalformedInput, Field: "layout", Msg: "rows must be 1-52 and seats per row 1-100"}
	}
	seats := make([]model.Seat, 0, rows*perRow)
	for r := 0; r < rows; r++ {
		for n := 1; n <= perRow; n++ {
			seats = append(seats, model.Seat{
				ID:         utils.NewID(),
				ShowtimeID: showtimeID,
				RowLabel:   model.RowLabelFor(r),
				Number:     n,
			})
		}
	}
	if err := inv.store.CreateSeats(ctx, showtimeID, seats); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &ConflictError{Reason: ReasonAlreadyInitialized, Resource: "showtime", ID: showtimeID,
				Msg: fmt.Sprintf("Seats already initialized for showtime %s", showtimeID)}
		}
		return nil, err
	}
	inv.log.WithFields(logrus.Fields{"showtime_id": showtimeID, "seats": len(seats)}).Info("seat map initialized")
	return seats, nil
}

// ValidateAndClaim books every referenced seat as one unit.  A seat may be
// referenced by id or by label.  Seats that are booked, or carry an
// unexpired hold not owned by owner, make the whole claim fail and nothing
// changes.  The claimed seats are returned in request order.
func (inv *SeatInventory) ValidateAndClaim(ctx context.Context, showtimeID string, refs []string, owner string) ([]model.Seat, error) {
	if len(refs) == 0 {
		return nil, noSeatsSelected()
	}
	var claimed []model.Seat
	err := inv.store.MutateShowtime(ctx, showtimeID, func(seats []model.Seat) error {
		if len(seats) == 0 {
			return notInitialized(showtimeID)
		}
		idx, err := resolveSeats(seats, refs)
		if err != nil {
			return err
		}
		now := inv.now()
		if err := checkClaimable(seats, idx, owner, now); err != nil {
			return err
		}
		claimed = make([]model.Seat, 0, len(idx))
		for _, i := range idx {
			seats[i].Booked = true
			seats[i].ClearHold()
			claimed = append(claimed, seats[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Check validates refs against a seat snapshot without changing anything.
// It reports the same errors ValidateAndClaim would for that snapshot.
func (inv *SeatInventory) Check(seats []model.Seat, refs []string, owner string) ([]model.Seat, error) {
	idx, err := resolveSeats(seats, refs)
	if err != nil {
		return nil, err
	}
	if err := checkClaimable(seats, idx, owner, inv.now()); err != nil {
		return nil, err
	}
	out := make([]model.Seat, 0, len(idx))
	for _, i := range idx {
		out = append(out, seats[i])
	}
	return out, nil
}

// Release frees the referenced seats.  Unknown references are ignored so
// releasing twice is harmless.
func (inv *SeatInventory) Release(ctx context.Context, showtimeID string, refs []string) error {
	if len(refs) == 0 {
		return nil
	}
	return inv.store.MutateShowtime(ctx, showtimeID, func(seats []model.Seat) error {
		for _, ref := range refs {
			if i := findSeat(seats, ref); i >= 0 {
				seats[i].Booked = false
				seats[i].ClearHold()
			}
		}
		return nil
	})
}

// Swap releases oldRefs and claims newRefs as one unit.  New seats are
// validated first; seats in oldRefs count as free for the validation, so a
// booking may keep some of its seats.  On any failure nothing changes.
func (inv *SeatInventory) Swap(ctx context.Context, showtimeID string, oldRefs, newRefs []string, owner string) ([]model.Seat, error) {
	if len(newRefs) == 0 {
		return nil, noSeatsSelected()
	}
	var claimed []model.Seat
	err := inv.store.MutateShowtime(ctx, showtimeID, func(seats []model.Seat) error {
		if len(seats) == 0 {
			return notInitialized(showtimeID)
		}
		idx, err := resolveSeats(seats, newRefs)
		if err != nil {
			return err
		}
		for _, ref := range oldRefs {
			if i := findSeat(seats, ref); i >= 0 {
				seats[i].Booked = false
				seats[i].ClearHold()
			}
		}
		if err := checkClaimable(seats, idx, owner, inv.now()); err != nil {
			return err
		}
		claimed = make([]model.Seat, 0, len(idx))
		for _, i := range idx {
			seats[i].Booked = true
			seats[i].ClearHold()
			claimed = append(claimed, seats[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Hold places a hold for sessionID on every referenced seat until now+ttl.
// Seats already held by the same session have their hold extended.
func (inv *SeatInventory) Hold(ctx context.Context, showtimeID string, refs []string, sessionID string, ttl time.Duration) (time.Time, error) {
	if len(refs) == 0 {
		return time.Time{}, noSeatsSelected()
	}
	if sessionID == "" {
		return time.Time{}, &ValidationError{Reason: ReasonMalformedInput, Field: "session", Msg: "is required"}
	}
	expires := inv.now().Add(ttl)
	err := inv.store.MutateShowtime(ctx, showtimeID, func(seats []model.Seat) error {
		if len(seats) == 0 {
			return notInitialized(showtimeID)
		}
		idx, err := resolveSeats(seats, refs)
		if err != nil {
			return err
		}
		if err := checkClaimable(seats, idx, sessionID, inv.now()); err != nil {
			return err
		}
		owner := sessionID
		for _, i := range idx {
			exp := expires
			seats[i].Held = true
			seats[i].HoldExpiry = &exp
			seats[i].HoldOwner = &owner
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return expires, nil
}

// ReleaseHolds clears every hold owned by sessionID, expired or not, and
// returns how many seats were affected.
func (inv *SeatInventory) ReleaseHolds(ctx context.Context, showtimeID, sessionID string) (int, error) {
	released := 0
	err := inv.store.MutateShowtime(ctx, showtimeID, func(seats []model.Seat) error {
		for i := range seats {
			if seats[i].Held && seats[i].HoldOwner != nil && *seats[i].HoldOwner == sessionID {
				seats[i].ClearHold()
				released++
			}
		}
		return nil
	})
	return released, err
}

// resolveSeats maps each reference to a seat index, dropping references
// that name a seat already resolved.
func resolveSeats(seats []model.Seat, refs []string) ([]int, error) {
	seen := make(map[int]bool, len(refs))
	idx := make([]int, 0, len(refs))
	for _, ref := range refs {
		i := findSeat(seats, ref)
		if i < 0 {
			return nil, &NotFoundError{Reason: ReasonSeatNotFound, Resource: "seat", ID: ref}
		}
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	return idx, nil
}

func checkClaimable(seats []model.Seat, idx []int, owner string, now time.Time) error {
	for _, i := range idx {
		s := seats[i]
		if s.Booked {
			return &ConflictError{Reason: ReasonSeatAlreadyBooked, Resource: "seat", ID: s.ID,
				Msg: fmt.Sprintf("Seat %s is already booked", s.Label())}
		}
		if s.HoldActive(now) && !s.HeldBy(owner, now) {
			return &ConflictError{Reason: ReasonSeatHeldByOther, Resource: "seat", ID: s.ID,
				Msg: fmt.Sprintf("Seat %s is currently held by another user", s.Label())}
		}
	}
	return nil
}

func findSeat(seats []model.Seat, ref string) int {
	for i := range seats {
		if seats[i].Matches(ref) {
			return i
		}
	}
	return -1
}

func notInitialized(showtimeID string) error {
	return &ValidationError{Reason: ReasonNotInitialized, Field: "showtime_id",
		Msg: fmt.Sprintf("Seats not initialized for showtime %s, refresh and try again", showtimeID)}
}

func noSeatsSelected() error {
	return &ValidationError{Reason: ReasonNoSeatsSelected, Field: "seats", Msg: "No seats selected"}
}

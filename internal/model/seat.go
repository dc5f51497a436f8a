package model

import (
	"fmt"
	"time"
)

// Seat is one position in a showtime's seat map.  A seat is created when the
// showtime's seat map is initialized and is never deleted afterwards; only
// its claim flags change.
//
// Fields:
//  ID         – opaque seat id, unique within the showtime.
//  ShowtimeID – the showtime this seat belongs to.
//  RowLabel   – row letter(s) such as "A" or "AA".
//  Number     – seat number within the row, starting at 1.
//  Booked     – true once a booking owns the seat.
//  Held       – true while a purchase hold is in place.
//  HoldExpiry – when the hold lapses; nil when not held.
//  HoldOwner  – session that placed the hold; nil when not held.
type Seat struct {
	ID         string     `json:"id"`
	ShowtimeID string     `json:"showtime_id"`
	RowLabel   string     `json:"row"`
	Number     int        `json:"number"`
	Booked     bool       `json:"booked"`
	Held       bool       `json:"held"`
	HoldExpiry *time.Time `json:"hold_expiry,omitempty"`
	HoldOwner  *string    `json:"hold_owner,omitempty"`
}

// Label returns the human readable seat name, e.g. "A1".
func (s Seat) Label() string { return fmt.Sprintf("%s%d", s.RowLabel, s.Number) }

// Matches reports whether ref names this seat either by id or by label.
func (s Seat) Matches(ref string) bool { return ref == s.ID || ref == s.Label() }

// HoldActive reports whether the seat carries a hold that has not yet expired.
func (s Seat) HoldActive(now time.Time) bool {
	return s.Held && s.HoldExpiry != nil && s.HoldExpiry.After(now)
}

// HeldBy reports whether an active hold on the seat belongs to owner.
func (s Seat) HeldBy(owner string, now time.Time) bool {
	return owner != "" && s.HoldActive(now) && s.HoldOwner != nil && *s.HoldOwner == owner
}

// Available reports whether the seat can be claimed at now.
func (s Seat) Available(now time.Time) bool { return !s.Booked && !s.HoldActive(now) }

// ClearHold drops any hold information from the seat.
func (s *Seat) ClearHold() {
	s.Held = false
	s.HoldExpiry = nil
	s.HoldOwner = nil
}

// RowLabelFor converts a zero-based row index to a spreadsheet style label:
// 0 -> A, 25 -> Z, 26 -> AA.
func RowLabelFor(i int) string {
	if i < 0 {
		return ""
	}
	var res []rune
	for {
		res = append([]rune{rune('A' + i%26)}, res...)
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return string(res)
}

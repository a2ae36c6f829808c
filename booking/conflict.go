package booking

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/hotel-ledger/calendar"
)

// OccupancyReader is the slice of Reader that conflict detection needs.
type OccupancyReader interface {
	OccupyingBookings(ctx context.Context, roomID, excludeID string) ([]Booking, error)
}

// Conflict is the outcome of a conflict check.
type Conflict struct {
	Has   bool
	Dates []calendar.Date
}

// DetectConflict reports every date of [checkIn, checkOut) already held in
// roomID by an occupying booking other than excludeID. Dates are sorted.
//
// Run inside a write transaction, the result stays true until commit: no other
// writer can insert a booking in between.
func DetectConflict(ctx context.Context, r OccupancyReader, roomID string, checkIn, checkOut calendar.Date, excludeID string) (Conflict, error) {
	stay, err := calendar.NewRange(checkIn, checkOut)
	if err != nil {
		return Conflict{}, err
	}

	wanted := make(map[string]calendar.Date, stay.Nights())
	for _, d := range stay.Dates() {
		wanted[calendar.OccupancyKey(roomID, d)] = d
	}

	existing, err := r.OccupyingBookings(ctx, roomID, excludeID)
	if err != nil {
		return Conflict{}, fmt.Errorf("load bookings for room %s: %w", roomID, err)
	}

	taken := make(map[string]calendar.Date)
	for _, b := range existing {
		if b.ID == excludeID || !b.Status.Occupying() {
			continue
		}
		for _, key := range calendar.OccupancyKeys(b.RoomID, b.Stay) {
			if d, ok := wanted[key]; ok {
				taken[key] = d
			}
		}
	}

	if len(taken) == 0 {
		return Conflict{}, nil
	}

	dates := make([]calendar.Date, 0, len(taken))
	for _, d := range taken {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return Conflict{Has: true, Dates: dates}, nil
}

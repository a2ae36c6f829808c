package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned when a stay does not end after it starts.
var ErrInvalidRange = errors.New("invalid date range")

// MaxNights is the longest stay a single booking may cover.
const MaxNights = 365

// InvalidRangeError carries the offending bounds. TooLong is set when the
// range is well ordered but exceeds MaxNights.
type InvalidRangeError struct {
	Start   Date
	End     Date
	TooLong bool
}

func (e *InvalidRangeError) Error() string {
	if e.TooLong {
		return fmt.Sprintf("invalid date range: stay %s to %s exceeds %d nights", e.Start, e.End, MaxNights)
	}
	return fmt.Sprintf("invalid date range: check-out %s must be after check-in %s", e.End, e.Start)
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// =============================================================================
// RANGE - Half-open stay interval [Start, End)
// =============================================================================

// Range is a stay. End is exclusive: it is the check-out day.
type Range struct {
	Start Date
	End   Date
}

// NewRange validates that end is strictly after start and that the stay is
// at most MaxNights long.
func NewRange(start, end Date) (Range, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return Range{}, &InvalidRangeError{Start: start, End: end}
	}
	if DaysBetween(start, end) > MaxNights {
		return Range{}, &InvalidRangeError{Start: start, End: end, TooLong: true}
	}
	return Range{Start: start, End: end}, nil
}

// Nights returns the number of occupied dates.
func (r Range) Nights() int {
	return DaysBetween(r.Start, r.End)
}

// Dates returns every occupied date in order. The check-out day is excluded.
func (r Range) Dates() []Date {
	dates := make([]Date, 0, r.Nights())
	for d := r.Start; d.Before(r.End); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Overlaps reports whether the two stays share at least one night.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r Range) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + ")"
}

// ExpandDates flattens [start, end) into its occupied dates.
// ExpandDates(d, d+1) is [d]; ExpandDates(d, d) fails with InvalidRangeError.
func ExpandDates(start, end Date) ([]Date, error) {
	r, err := NewRange(start, end)
	if err != nil {
		return nil, err
	}
	return r.Dates(), nil
}

// =============================================================================
// OCCUPANCY KEYS
// =============================================================================

// OccupancyKey combines a room and a date. The date part is fixed width, so
// two distinct (room, date) pairs never produce the same key.
func OccupancyKey(roomID string, d Date) string {
	return d.Compact() + "_" + roomID
}

// OccupancyKeys returns the keys for every occupied date of a stay.
func OccupancyKeys(roomID string, r Range) []string {
	dates := r.Dates()
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = OccupancyKey(roomID, d)
	}
	return keys
}

// ParseOccupancyKey splits a key produced by OccupancyKey.
func ParseOccupancyKey(key string) (string, Date, error) {
	datePart, roomID, ok := strings.Cut(key, "_")
	if !ok || len(datePart) != len(compactLayout) {
		return "", Date{}, fmt.Errorf("malformed occupancy key %q", key)
	}
	t, err := time.Parse(compactLayout, datePart)
	if err != nil {
		return "", Date{}, fmt.Errorf("malformed occupancy key %q: %w", key, err)
	}
	return roomID, Date{t: t}, nil
}

// Nights counts the occupied dates of [start, end). It is zero for an invalid range.
func Nights(start, end Date) int {
	if !end.After(start) {
		return 0
	}
	return DaysBetween(start, end)
}

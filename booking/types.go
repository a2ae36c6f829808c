/*
Package booking implements room reservations and their financial side effects.

PURPOSE:
  The Engine is the only component that changes booking or room state. Each
  operation runs as one write transaction: validation, conflict detection,
  the state change, the ledger posting and the audit entry all commit together
  or not at all.

STATE MACHINE:
  Confirmed -> CheckedIn -> CheckedOut
  Confirmed -> CheckedOut      (guest checked out without a recorded check-in)
  Confirmed -> Cancelled
  Confirmed -> NoShow

  Only Confirmed and CheckedIn bookings occupy dates.

SEE ALSO:
  - conflict.go: DetectConflict
  - engine.go: the operations
  - ledger/template.go: the journals each operation posts
*/
package booking

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/calendar"
)

// =============================================================================
// ROOMS
// =============================================================================

// RoomStatus is the housekeeping state of a room.
type RoomStatus string

const (
	RoomVacant           RoomStatus = "Vacant"
	RoomOccupied         RoomStatus = "Occupied"
	RoomUnderMaintenance RoomStatus = "UnderMaintenance"
)

// Room is a bookable unit.
type Room struct {
	ID          string
	Type        string
	NightlyRate decimal.Decimal
	Status      RoomStatus
	UpdatedAt   time.Time
}

// =============================================================================
// BOOKINGS
// =============================================================================

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusConfirmed  Status = "Confirmed"
	StatusCheckedIn  Status = "CheckedIn"
	StatusCheckedOut Status = "CheckedOut"
	StatusCancelled  Status = "Cancelled"
	StatusNoShow     Status = "NoShow"
)

var transitions = map[Status][]Status{
	StatusConfirmed: {StatusCheckedIn, StatusCheckedOut, StatusCancelled, StatusNoShow},
	StatusCheckedIn: {StatusCheckedOut},
}

// Occupying reports whether a booking in this status holds its dates.
func (s Status) Occupying() bool {
	return s == StatusConfirmed || s == StatusCheckedIn
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s -> to is a legal move.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is a reservation of one room for a stay.
type Booking struct {
	ID         string
	CustomerID string
	RoomID     string
	Stay       calendar.Range
	TotalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditAction is the kind of change recorded.
type AuditAction string

const (
	AuditInsert AuditAction = "INSERT"
	AuditUpdate AuditAction = "UPDATE"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	Table    string
	RecordID string
	Action   AuditAction
	OldValue string
	NewValue string
	At       time.Time
}

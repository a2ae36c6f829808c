package booking

import (
	"context"
	"time"

	"github.com/warp/hotel-ledger/ledger"
)

// Reader is the read side shared by transactional and snapshot access.
// Get methods return (nil, nil) when the row does not exist.
type Reader interface {
	GetRoom(ctx context.Context, id string) (*Room, error)
	GetBooking(ctx context.Context, id string) (*Booking, error)

	// OccupyingBookings returns the Confirmed and CheckedIn bookings of a room,
	// leaving out excludeID when it is not empty.
	OccupyingBookings(ctx context.Context, roomID, excludeID string) ([]Booking, error)
}

// Store is the view of the database inside one write transaction.
type Store interface {
	Reader
	ledger.Store

	InsertBooking(ctx context.Context, b Booking) error

	// UpdateBookingStatus moves a booking from one status to another. It fails
	// with ErrConcurrentModification if the booking is no longer in from.
	UpdateBookingStatus(ctx context.Context, id string, from, to Status, at time.Time) error

	UpdateRoomStatus(ctx context.Context, roomID string, status RoomStatus, at time.Time) error
	AppendAudit(ctx context.Context, e AuditEntry) error
}

// TxStore opens write transactions and serves committed reads.
type TxStore interface {
	Reader

	ListRooms(ctx context.Context) ([]Room, error)
	ListBookings(ctx context.Context, roomID string) ([]Booking, error)
	GetJournal(ctx context.Context, id string) (*ledger.Journal, error)

	// WithTx runs fn in a serialized write transaction. A nil return commits.
	WithTx(ctx context.Context, fn func(Store) error) error
}

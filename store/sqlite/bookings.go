package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/calendar"
)

// =============================================================================
// ROOMS
// =============================================================================

const roomColumns = `id, room_type, nightly_rate_cents, status, updated_at`

// SaveRoom inserts or replaces a room definition.
func (s *Store) SaveRoom(ctx context.Context, r booking.Room) error {
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	status := r.Status
	if status == "" {
		status = booking.RoomVacant
	}

	rate, err := toCents("nightly_rate", r.NightlyRate)
	if err != nil {
		return err
	}

	_, err = s.writer.ExecContext(ctx, `
		INSERT INTO rooms (id, room_type, nightly_rate_cents, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			room_type = excluded.room_type,
			nightly_rate_cents = excluded.nightly_rate_cents,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, r.ID, r.Type, rate, string(status), formatTime(updated))
	if err != nil {
		return classify("save room", err)
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*booking.Room, error) {
	return getRoom(ctx, s.reader, id)
}

// ListRooms returns every room ordered by id.
func (s *Store) ListRooms(ctx context.Context) ([]booking.Room, error) {
	rows, err := s.reader.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id`)
	if err != nil {
		return nil, classify("list rooms", err)
	}
	defer rows.Close()

	var rooms []booking.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func getRoom(ctx context.Context, q querier, id string) (*booking.Room, error) {
	row := q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get room", err)
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(sc scanner) (booking.Room, error) {
	var (
		r       booking.Room
		cents   int64
		status  string
		updated string
	)
	if err := sc.Scan(&r.ID, &r.Type, &cents, &status, &updated); err != nil {
		return r, err
	}
	t, err := parseTime(updated)
	if err != nil {
		return r, err
	}
	r.NightlyRate = fromCents(cents)
	r.Status = booking.RoomStatus(status)
	r.UpdatedAt = t
	return r, nil
}

// =============================================================================
// BOOKINGS
// =============================================================================

const bookingColumns = `id, customer_id, room_id, check_in, check_out, total_price_cents, status, created_at, updated_at`

func (s *Store) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return getBooking(ctx, s.reader, id)
}

func (s *Store) OccupyingBookings(ctx context.Context, roomID, excludeID string) ([]booking.Booking, error) {
	return occupyingBookings(ctx, s.reader, roomID, excludeID)
}

// ListBookings returns every booking of a room ordered by check-in.
func (s *Store) ListBookings(ctx context.Context, roomID string) ([]booking.Booking, error) {
	return queryBookings(ctx, s.reader, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE room_id = ?
		ORDER BY check_in, id
	`, roomID)
}

func getBooking(ctx context.Context, q querier, id string) (*booking.Booking, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get booking", err)
	}
	return &b, nil
}

func occupyingBookings(ctx context.Context, q querier, roomID, excludeID string) ([]booking.Booking, error) {
	return queryBookings(ctx, q, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE room_id = ?
		  AND status IN (?, ?)
		  AND id <> ?
		ORDER BY check_in, id
	`, roomID, string(booking.StatusConfirmed), string(booking.StatusCheckedIn), excludeID)
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]booking.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query bookings", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query bookings", err)
	}
	return bookings, nil
}

func scanBooking(sc scanner) (booking.Booking, error) {
	var (
		b                    booking.Booking
		checkIn, checkOut    string
		cents                int64
		status               string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&b.ID, &b.CustomerID, &b.RoomID, &checkIn, &checkOut, &cents, &status, &createdAt, &updatedAt); err != nil {
		return b, err
	}

	in, err := calendar.Parse(checkIn)
	if err != nil {
		return b, err
	}
	out, err := calendar.Parse(checkOut)
	if err != nil {
		return b, err
	}
	stay, err := calendar.NewRange(in, out)
	if err != nil {
		return b, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return b, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return b, err
	}

	b.Stay = stay
	b.TotalPrice = fromCents(cents)
	b.Status = booking.Status(status)
	return b, nil
}

// =============================================================================
// TRANSACTIONAL WRITES (booking.Store)
// =============================================================================

func (ts *txStore) GetRoom(ctx context.Context, id string) (*booking.Room, error) {
	return getRoom(ctx, ts.q, id)
}

func (ts *txStore) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return getBooking(ctx, ts.q, id)
}

func (ts *txStore) OccupyingBookings(ctx context.Context, roomID, excludeID string) ([]booking.Booking, error) {
	return occupyingBookings(ctx, ts.q, roomID, excludeID)
}

func (ts *txStore) InsertBooking(ctx context.Context, b booking.Booking) error {
	price, err := toCents("total_price", b.TotalPrice)
	if err != nil {
		return err
	}
	_, err = ts.q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.CustomerID,
		b.RoomID,
		b.Stay.Start.String(),
		b.Stay.End.String(),
		price,
		string(b.Status),
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("insert booking %s: %w", b.ID, booking.ErrConcurrentModification)
		}
		return classify("insert booking", err)
	}
	return nil
}

func (ts *txStore) UpdateBookingStatus(ctx context.Context, id string, from, to booking.Status, at time.Time) error {
	res, err := ts.q.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(at), id, string(from))
	if err != nil {
		return classify("update booking status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("update booking status", err)
	}
	if n == 0 {
		return fmt.Errorf("update booking %s from %s: %w", id, from, booking.ErrConcurrentModification)
	}
	return nil
}

func (ts *txStore) UpdateRoomStatus(ctx context.Context, roomID string, status booking.RoomStatus, at time.Time) error {
	res, err := ts.q.ExecContext(ctx, `
		UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(at), roomID)
	if err != nil {
		return classify("update room status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &booking.NotFoundError{Kind: "room", ID: roomID}
	}
	return nil
}

func (ts *txStore) AppendAudit(ctx context.Context, e booking.AuditEntry) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO audit_log (table_name, record_id, action, old_value, new_value, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Table, e.RecordID, string(e.Action), nullString(e.OldValue), nullString(e.NewValue), formatTime(e.At))
	if err != nil {
		return classify("append audit", err)
	}
	return nil
}

// AuditTrail returns the audit entries of one record, oldest first.
func (s *Store) AuditTrail(ctx context.Context, table, recordID string) ([]booking.AuditEntry, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT table_name, record_id, action, old_value, new_value, changed_at
		FROM audit_log
		WHERE table_name = ? AND record_id = ?
		ORDER BY id
	`, table, recordID)
	if err != nil {
		return nil, classify("audit trail", err)
	}
	defer rows.Close()

	var entries []booking.AuditEntry
	for rows.Next() {
		var (
			e          booking.AuditEntry
			action     string
			oldV, newV sql.NullString
			at         string
		)
		if err := rows.Scan(&e.Table, &e.RecordID, &action, &oldV, &newV, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		e.Action = booking.AuditAction(action)
		e.OldValue = oldV.String
		e.NewValue = newV.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

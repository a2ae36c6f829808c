package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/idgen"
	"github.com/warp/hotel-ledger/ledger"
)

// RecognitionMethod decides when a deposit becomes revenue.
type RecognitionMethod string

const (
	// RecognizeAtCheckout recognizes the whole stay when the guest leaves.
	RecognizeAtCheckout RecognitionMethod = "checkout"
	// RecognizeDaily accrues revenue night by night. Not implemented.
	RecognizeDaily RecognitionMethod = "daily"
)

// ParseRecognitionMethod validates a configured method name.
func ParseRecognitionMethod(s string) (RecognitionMethod, error) {
	switch m := RecognitionMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case RecognizeAtCheckout:
		return m, nil
	case RecognizeDaily:
		return m, fmt.Errorf("%w: %s", ErrRecognitionNotImplemented, m)
	default:
		return "", fmt.Errorf("unknown revenue recognition method %q", s)
	}
}

// Engine coordinates bookings, rooms and the ledger.
type Engine struct {
	store       TxStore
	ledger      *ledger.Ledger
	recognition RecognitionMethod
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides time.Now for booking timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecognitionMethod selects the revenue recognition policy.
func WithRecognitionMethod(m RecognitionMethod) Option {
	return func(e *Engine) { e.recognition = m }
}

// NewEngine creates an Engine over store, posting through l.
func NewEngine(store TxStore, l *ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		ledger:      l,
		recognition: RecognizeAtCheckout,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// REQUESTS AND RESULTS
// =============================================================================

// CreateBookingRequest is the input to CreateBooking.
type CreateBookingRequest struct {
	CustomerID string
	RoomID     string
	CheckIn    calendar.Date
	CheckOut   calendar.Date
	TotalPrice decimal.Decimal
}

// Confirmation is a created booking with its deposit journal.
type Confirmation struct {
	Booking Booking
	Journal ledger.Journal
}

// Receipt is a checked-out booking with its revenue journal.
type Receipt struct {
	Booking Booking
	Journal ledger.Journal
}

// MeterReading carries one billing period of electricity and water meters.
type MeterReading struct {
	RoomID       string
	ElectricOld  decimal.Decimal
	ElectricNew  decimal.Decimal
	WaterOld     decimal.Decimal
	WaterNew     decimal.Decimal
	ElectricRate decimal.Decimal
	WaterRate    decimal.Decimal
}

// UtilityCharge is the computed bill and its journal.
type UtilityCharge struct {
	RoomID         string
	ElectricUnits  decimal.Decimal
	WaterUnits     decimal.Decimal
	ElectricAmount decimal.Decimal
	WaterAmount    decimal.Decimal
	Total          decimal.Decimal
	Journal        ledger.Journal
}

// =============================================================================
// BOOKING LIFECYCLE
// =============================================================================

// CreateBooking reserves a room and records the deposit.
func (e *Engine) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Confirmation, error) {
	stay, err := calendar.NewRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, e.fail(ctx, "create booking", err, slog.String("room_id", req.RoomID))
	}
	if err := ledger.CheckAmount("total_price", req.TotalPrice); err != nil {
		return nil, e.fail(ctx, "create booking", err, slog.String("room_id", req.RoomID))
	}

	var out Confirmation
	err = e.store.WithTx(ctx, func(s Store) error {
		room, err := s.GetRoom(ctx, req.RoomID)
		if err != nil {
			return err
		}
		if room == nil {
			return &NotFoundError{Kind: "room", ID: req.RoomID}
		}

		conflict, err := DetectConflict(ctx, s, room.ID, stay.Start, stay.End, "")
		if err != nil {
			return err
		}
		if conflict.Has {
			return &ConflictError{RoomID: room.ID, Dates: conflict.Dates}
		}

		id, err := idgen.Next(ctx, s, idgen.Sequential, idgen.PrefixBooking, calendar.Date{})
		if err != nil {
			return err
		}

		now := e.now().UTC()
		b := Booking{
			ID:         id,
			CustomerID: req.CustomerID,
			RoomID:     room.ID,
			Stay:       stay,
			TotalPrice: req.TotalPrice.Round(2),
			Status:     StatusConfirmed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.InsertBooking(ctx, b); err != nil {
			return err
		}

		j, err := e.ledger.Post(ctx, s, ledger.DepositReceived, b.TotalPrice, b.ID, "room "+room.ID)
		if err != nil {
			return err
		}

		if err := e.setRoomStatus(ctx, s, room, RoomOccupied, now); err != nil {
			return err
		}
		if err := s.AppendAudit(ctx, AuditEntry{
			Table:    "bookings",
			RecordID: b.ID,
			Action:   AuditInsert,
			NewValue: snapshot(b),
			At:       now,
		}); err != nil {
			return err
		}

		out = Confirmation{Booking: b, Journal: j}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "create booking", err, slog.String("room_id", req.RoomID))
	}

	e.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", out.Booking.ID),
		slog.String("room_id", out.Booking.RoomID),
		slog.String("stay", out.Booking.Stay.String()),
		slog.String("total", out.Booking.TotalPrice.StringFixed(2)),
		slog.String("journal_id", out.Journal.ID),
	)
	return &out, nil
}

// Checkout ends a stay and recognizes its revenue.
func (e *Engine) Checkout(ctx context.Context, bookingID string) (*Receipt, error) {
	if e.recognition != RecognizeAtCheckout {
		err := fmt.Errorf("%w: %s", ErrRecognitionNotImplemented, e.recognition)
		return nil, e.fail(ctx, "checkout", err, slog.String("booking_id", bookingID))
	}

	var out Receipt
	err := e.store.WithTx(ctx, func(s Store) error {
		now := e.now().UTC()
		b, err := e.transition(ctx, s, bookingID, StatusCheckedOut, now)
		if err != nil {
			return err
		}

		j, err := e.ledger.Post(ctx, s, ledger.RevenueRecognition, b.TotalPrice, b.ID, "room "+b.RoomID)
		if err != nil {
			return err
		}

		room, err := s.GetRoom(ctx, b.RoomID)
		if err != nil {
			return err
		}
		if room != nil {
			if err := e.setRoomStatus(ctx, s, room, RoomVacant, now); err != nil {
				return err
			}
		}

		out = Receipt{Booking: *b, Journal: j}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "checkout", err, slog.String("booking_id", bookingID))
	}

	e.logger.InfoContext(ctx, "booking checked out",
		slog.String("booking_id", out.Booking.ID),
		slog.String("room_id", out.Booking.RoomID),
		slog.String("journal_id", out.Journal.ID),
	)
	return &out, nil
}

// CheckIn marks the guest as arrived.
func (e *Engine) CheckIn(ctx context.Context, bookingID string) (*Booking, error) {
	var out *Booking
	err := e.store.WithTx(ctx, func(s Store) error {
		now := e.now().UTC()
		b, err := e.transition(ctx, s, bookingID, StatusCheckedIn, now)
		if err != nil {
			return err
		}
		room, err := s.GetRoom(ctx, b.RoomID)
		if err != nil {
			return err
		}
		if room != nil {
			if err := e.setRoomStatus(ctx, s, room, RoomOccupied, now); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "check in", err, slog.String("booking_id", bookingID))
	}

	e.logger.InfoContext(ctx, "booking checked in", slog.String("booking_id", out.ID))
	return out, nil
}

// Cancel releases a Confirmed booking's dates. No journal is posted.
func (e *Engine) Cancel(ctx context.Context, bookingID string) (*Booking, error) {
	return e.release(ctx, "cancel", bookingID, StatusCancelled)
}

// MarkNoShow releases the dates of a guest who never arrived.
func (e *Engine) MarkNoShow(ctx context.Context, bookingID string) (*Booking, error) {
	return e.release(ctx, "mark no-show", bookingID, StatusNoShow)
}

func (e *Engine) release(ctx context.Context, op, bookingID string, to Status) (*Booking, error) {
	var out *Booking
	err := e.store.WithTx(ctx, func(s Store) error {
		now := e.now().UTC()
		b, err := e.transition(ctx, s, bookingID, to, now)
		if err != nil {
			return err
		}

		others, err := s.OccupyingBookings(ctx, b.RoomID, b.ID)
		if err != nil {
			return err
		}
		if len(others) == 0 {
			room, err := s.GetRoom(ctx, b.RoomID)
			if err != nil {
				return err
			}
			if room != nil {
				if err := e.setRoomStatus(ctx, s, room, RoomVacant, now); err != nil {
					return err
				}
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, op, err, slog.String("booking_id", bookingID))
	}

	e.logger.InfoContext(ctx, "booking released",
		slog.String("booking_id", out.ID),
		slog.String("status", string(out.Status)),
	)
	return out, nil
}

// transition applies one state-machine move and audits it.
func (e *Engine) transition(ctx context.Context, s Store, bookingID string, to Status, now time.Time) (*Booking, error) {
	b, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: bookingID}
	}
	if b.Status == to {
		return nil, &AlreadyProcessedError{BookingID: b.ID, Status: b.Status}
	}
	if !b.Status.CanTransition(to) {
		return nil, &InvalidTransitionError{BookingID: b.ID, From: b.Status, To: to}
	}

	from := b.Status
	if err := s.UpdateBookingStatus(ctx, b.ID, from, to, now); err != nil {
		return nil, err
	}
	if err := s.AppendAudit(ctx, AuditEntry{
		Table:    "bookings",
		RecordID: b.ID,
		Action:   AuditUpdate,
		OldValue: string(from),
		NewValue: string(to),
		At:       now,
	}); err != nil {
		return nil, err
	}

	b.Status = to
	b.UpdatedAt = now
	return b, nil
}

func (e *Engine) setRoomStatus(ctx context.Context, s Store, room *Room, to RoomStatus, now time.Time) error {
	if room.Status == to {
		return nil
	}
	if err := s.UpdateRoomStatus(ctx, room.ID, to, now); err != nil {
		return err
	}
	return s.AppendAudit(ctx, AuditEntry{
		Table:    "rooms",
		RecordID: room.ID,
		Action:   AuditUpdate,
		OldValue: string(room.Status),
		NewValue: string(to),
		At:       now,
	})
}

// =============================================================================
// UTILITIES AND MANUAL POSTINGS
// =============================================================================

// RecordUtilityCharge bills metered usage and posts it as utility income.
func (e *Engine) RecordUtilityCharge(ctx context.Context, r MeterReading) (*UtilityCharge, error) {
	charge, err := computeUtilityCharge(r)
	if err != nil {
		return nil, e.fail(ctx, "record utility charge", err, slog.String("room_id", r.RoomID))
	}

	err = e.store.WithTx(ctx, func(s Store) error {
		room, err := s.GetRoom(ctx, r.RoomID)
		if err != nil {
			return err
		}
		if room == nil {
			return &NotFoundError{Kind: "room", ID: r.RoomID}
		}

		note := fmt.Sprintf("room %s electric %s units, water %s units",
			room.ID, charge.ElectricUnits.String(), charge.WaterUnits.String())
		j, err := e.ledger.Post(ctx, s, ledger.UtilityIncome, charge.Total, "UTIL-"+room.ID, note)
		if err != nil {
			return err
		}
		charge.Journal = j
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "record utility charge", err, slog.String("room_id", r.RoomID))
	}

	e.logger.InfoContext(ctx, "utility charge recorded",
		slog.String("room_id", charge.RoomID),
		slog.String("total", charge.Total.StringFixed(2)),
		slog.String("journal_id", charge.Journal.ID),
	)
	return charge, nil
}

func computeUtilityCharge(r MeterReading) (*UtilityCharge, error) {
	if r.ElectricNew.LessThan(r.ElectricOld) {
		return nil, &NegativeUsageError{Meter: "electric", Old: r.ElectricOld, New: r.ElectricNew}
	}
	if r.WaterNew.LessThan(r.WaterOld) {
		return nil, &NegativeUsageError{Meter: "water", Old: r.WaterOld, New: r.WaterNew}
	}
	if err := ledger.CheckAmount("electric_rate", r.ElectricRate); err != nil {
		return nil, err
	}
	if err := ledger.CheckAmount("water_rate", r.WaterRate); err != nil {
		return nil, err
	}

	c := &UtilityCharge{
		RoomID:        r.RoomID,
		ElectricUnits: r.ElectricNew.Sub(r.ElectricOld),
		WaterUnits:    r.WaterNew.Sub(r.WaterOld),
	}
	c.ElectricAmount = c.ElectricUnits.Mul(r.ElectricRate).Round(2)
	c.WaterAmount = c.WaterUnits.Mul(r.WaterRate).Round(2)
	c.Total = c.ElectricAmount.Add(c.WaterAmount)
	if err := ledger.CheckAmount("utility_total", c.Total); err != nil {
		return nil, err
	}
	return c, nil
}

// PostJournal posts a template by name outside any booking flow.
func (e *Engine) PostJournal(ctx context.Context, templateName string, amount decimal.Decimal, reference, note string) (*ledger.Journal, error) {
	t, err := ledger.ParseTemplate(templateName)
	if err != nil {
		return nil, e.fail(ctx, "post journal", err, slog.String("template", templateName))
	}

	var out ledger.Journal
	err = e.store.WithTx(ctx, func(s Store) error {
		j, err := e.ledger.Post(ctx, s, t, amount, reference, note)
		if err != nil {
			return err
		}
		out = j
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, "post journal", err, slog.String("template", templateName))
	}

	e.logger.InfoContext(ctx, "journal posted",
		slog.String("journal_id", out.ID),
		slog.String("template", out.Template.String()),
		slog.String("reference", out.Reference),
	)
	return &out, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// HasConflict runs conflict detection against committed state.
func (e *Engine) HasConflict(ctx context.Context, roomID string, checkIn, checkOut calendar.Date, excludeID string) (Conflict, error) {
	room, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		return Conflict{}, e.fail(ctx, "check conflict", err, slog.String("room_id", roomID))
	}
	if room == nil {
		return Conflict{}, &NotFoundError{Kind: "room", ID: roomID}
	}
	c, err := DetectConflict(ctx, e.store, roomID, checkIn, checkOut, excludeID)
	if err != nil {
		return Conflict{}, e.fail(ctx, "check conflict", err, slog.String("room_id", roomID))
	}
	return c, nil
}

// GetBooking loads one booking.
func (e *Engine) GetBooking(ctx context.Context, id string) (*Booking, error) {
	b, err := e.store.GetBooking(ctx, id)
	if err != nil {
		return nil, e.fail(ctx, "get booking", err, slog.String("booking_id", id))
	}
	if b == nil {
		return nil, &NotFoundError{Kind: "booking", ID: id}
	}
	return b, nil
}

// ListRooms returns every room ordered by id.
func (e *Engine) ListRooms(ctx context.Context) ([]Room, error) {
	rooms, err := e.store.ListRooms(ctx)
	if err != nil {
		return nil, e.fail(ctx, "list rooms", err)
	}
	return rooms, nil
}

// ListBookings returns all bookings of a room ordered by check-in.
func (e *Engine) ListBookings(ctx context.Context, roomID string) ([]Booking, error) {
	room, err := e.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, e.fail(ctx, "list bookings", err, slog.String("room_id", roomID))
	}
	if room == nil {
		return nil, &NotFoundError{Kind: "room", ID: roomID}
	}
	bookings, err := e.store.ListBookings(ctx, roomID)
	if err != nil {
		return nil, e.fail(ctx, "list bookings", err, slog.String("room_id", roomID))
	}
	return bookings, nil
}

// GetJournal loads one journal with its postings.
func (e *Engine) GetJournal(ctx context.Context, id string) (*ledger.Journal, error) {
	j, err := e.store.GetJournal(ctx, id)
	if err != nil {
		return nil, e.fail(ctx, "get journal", err, slog.String("journal_id", id))
	}
	if j == nil {
		return nil, &NotFoundError{Kind: "journal", ID: id}
	}
	return j, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// fail logs err and wraps anything that is not a domain error as a
// PersistenceError.
func (e *Engine) fail(ctx context.Context, op string, err error, attrs ...any) error {
	kind := KindOf(err)
	attrs = append(attrs, slog.String("op", op), slog.String("error_kind", string(kind)), slog.Any("error", err))

	if kind != KindPersistence {
		e.logger.WarnContext(ctx, "operation rejected", attrs...)
		return err
	}

	e.logger.ErrorContext(ctx, "operation failed", attrs...)
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func snapshot(b Booking) string {
	out, err := json.Marshal(map[string]string{
		"customer_id": b.CustomerID,
		"room_id":     b.RoomID,
		"check_in":    b.Stay.Start.String(),
		"check_out":   b.Stay.End.String(),
		"total_price": b.TotalPrice.StringFixed(2),
		"status":      string(b.Status),
	})
	if err != nil {
		return ""
	}
	return string(out)
}

package booking_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/ledger"
	"github.com/warp/hotel-ledger/reporting"
	"github.com/warp/hotel-ledger/store/sqlite"
)

func fixedNow() time.Time {
	return time.Date(2026, time.May, 20, 10, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "hotel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEngine(t *testing.T, store booking.TxStore, opts ...booking.Option) *booking.Engine {
	t.Helper()
	l := ledger.New(ledger.WithClock(fixedNow), ledger.WithVATRate(dec("0.07")))
	opts = append([]booking.Option{
		booking.WithClock(fixedNow),
		booking.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return booking.NewEngine(store, l, opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func request(room, in, out, price string) booking.CreateBookingRequest {
	return booking.CreateBookingRequest{
		CustomerID: "CUS-00001",
		RoomID:     room,
		CheckIn:    calendar.MustParse(in),
		CheckOut:   calendar.MustParse(out),
		TotalPrice: dec(price),
	}
}

func roomStatus(t *testing.T, store *sqlite.Store, id string) booking.RoomStatus {
	t.Helper()
	r, err := store.GetRoom(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r.Status
}

// =============================================================================
// CREATE BOOKING
// =============================================================================

func TestCreateBooking_Room101Scenario(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	// GIVEN: B1 holds room 101 from June 1 to June 5
	b1, err := engine.CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))
	require.NoError(t, err)
	assert.Equal(t, "RES-00001", b1.Booking.ID)
	assert.Equal(t, booking.StatusConfirmed, b1.Booking.Status)
	assert.Equal(t, "JNL-20260520-001", b1.Journal.ID)
	assert.Equal(t, booking.RoomOccupied, roomStatus(t, store, "101"))

	// WHEN: B2 asks for June 3 to June 7
	_, err = engine.CreateBooking(ctx, request("101", "2026-06-03", "2026-06-07", "5000"))

	// THEN: it is rejected with the two overlapping nights
	var conflict *booking.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"2026-06-03", "2026-06-04"}, conflict.DateStrings())
	assert.Equal(t, booking.KindConflict, booking.KindOf(err))

	// WHEN: B3 arrives on B1's check-out day
	b3, err := engine.CreateBooking(ctx, request("101", "2026-06-05", "2026-06-08", "3600"))

	// THEN: back-to-back stays are accepted
	require.NoError(t, err)
	assert.Equal(t, "RES-00002", b3.Booking.ID)

	// WHEN: B1 checks out
	receipt, err := engine.Checkout(ctx, b1.Booking.ID)
	require.NoError(t, err)

	// THEN: revenue is recognized net of VAT and the room is vacant
	assert.Equal(t, booking.StatusCheckedOut, receipt.Booking.Status)
	j := receipt.Journal
	require.Len(t, j.Postings, 3)
	assert.Equal(t, ledger.AccountCustomerDeposits, j.Postings[0].AccountCode)
	assert.Equal(t, "5000.00", j.Postings[0].Debit.StringFixed(2))
	assert.Equal(t, ledger.AccountRoomRevenue, j.Postings[1].AccountCode)
	assert.Equal(t, "4672.90", j.Postings[1].Credit.StringFixed(2))
	assert.Equal(t, ledger.AccountVATPayable, j.Postings[2].AccountCode)
	assert.Equal(t, "327.10", j.Postings[2].Credit.StringFixed(2))
	assert.Equal(t, booking.RoomVacant, roomStatus(t, store, "101"))

	stored, err := engine.GetJournal(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, stored.Balanced())
}

func TestCreateBooking_Validation(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	tests := []struct {
		name string
		req  booking.CreateBookingRequest
		kind booking.ErrorKind
	}{
		{"same day", request("101", "2026-06-01", "2026-06-01", "100"), booking.KindInvalidRange},
		{"reversed", request("101", "2026-06-05", "2026-06-01", "100"), booking.KindInvalidRange},
		{"negative price", request("101", "2026-06-01", "2026-06-02", "-1"), booking.KindInvalidAmount},
		{"stay longer than a year", request("101", "2026-06-01", "2027-06-02", "100"), booking.KindInvalidRange},
		{"far future check-out", request("101", "2026-06-01", "9999-12-31", "100"), booking.KindInvalidRange},
		{"price beyond cents limit", request("101", "2026-06-01", "2026-06-02", "100000000000000000000"), booking.KindInvalidAmount},
		{"unknown room", request("999", "2026-06-01", "2026-06-02", "100"), booking.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.CreateBooking(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, booking.KindOf(err))
			assert.True(t, booking.IsClientError(err))
		})
	}

	// Nothing was written.
	bookings, err := store.ListBookings(ctx, "101")
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestCreateBooking_ZeroPriceIsAllowed(t *testing.T) {
	engine := newTestEngine(t, newTestStore(t))

	c, err := engine.CreateBooking(context.Background(), request("102", "2026-06-01", "2026-06-02", "0"))

	require.NoError(t, err)
	assert.True(t, c.Journal.Balanced())
}

// failingLedgerStore makes every journal insert fail inside the transaction.
type failingLedgerStore struct {
	booking.TxStore
}

func (f failingLedgerStore) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	return f.TxStore.WithTx(ctx, func(s booking.Store) error {
		return fn(failingJournals{s})
	})
}

type failingJournals struct {
	booking.Store
}

func (failingJournals) InsertJournal(context.Context, ledger.Journal) error {
	return errors.New("disk I/O error")
}

func TestCreateBooking_LedgerFailureRollsBackEverything(t *testing.T) {
	// GIVEN: a store whose journal writes fail
	store := newTestStore(t)
	engine := newTestEngine(t, failingLedgerStore{store})
	ctx := context.Background()

	// WHEN
	_, err := engine.CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))

	// THEN: a persistence error, no booking, room untouched, id not consumed
	var pe *booking.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, booking.KindPersistence, booking.KindOf(err))
	assert.False(t, booking.IsRetryable(err))

	b, err := store.GetBooking(ctx, "RES-00001")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Equal(t, booking.RoomVacant, roomStatus(t, store, "101"))

	ok, err := newTestEngine(t, store).CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))
	require.NoError(t, err)
	assert.Equal(t, "RES-00001", ok.Booking.ID)
}

func TestCreateBooking_ConcurrentRequestsForSameRoom(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			// Every request overlaps June 4.
			in := calendar.MustParse("2026-06-01").AddDays(offset % 4)
			_, err := engine.CreateBooking(ctx, booking.CreateBookingRequest{
				CustomerID: "CUS-00001",
				RoomID:     "201",
				CheckIn:    in,
				CheckOut:   calendar.MustParse("2026-06-05"),
				TotalPrice: dec("1800"),
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, booking.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	bookings, err := store.OccupyingBookings(ctx, "201", "")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

// =============================================================================
// CHECKOUT
// =============================================================================

func TestCheckout_IsNotRepeated(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	c, err := engine.CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))
	require.NoError(t, err)
	_, err = engine.Checkout(ctx, c.Booking.ID)
	require.NoError(t, err)

	// WHEN: checkout is called again
	_, err = engine.Checkout(ctx, c.Booking.ID)

	// THEN: already processed, and no second revenue journal exists
	var already *booking.AlreadyProcessedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, booking.StatusCheckedOut, already.Status)

	journals, err := store.JournalsByReference(ctx, c.Booking.ID)
	require.NoError(t, err)
	require.Len(t, journals, 2)
	assert.Equal(t, ledger.DepositReceived, journals[0].Template)
	assert.Equal(t, ledger.RevenueRecognition, journals[1].Template)
}

func TestCheckout_Errors(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	_, err := engine.Checkout(ctx, "RES-99999")
	var nf *booking.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "booking", nf.Kind)

	c, err := engine.CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, c.Booking.ID)
	require.NoError(t, err)

	_, err = engine.Checkout(ctx, c.Booking.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestCheckout_DailyRecognitionNotImplemented(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store, booking.WithRecognitionMethod(booking.RecognizeDaily))
	ctx := context.Background()

	c, err := engine.CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))
	require.NoError(t, err)

	_, err = engine.Checkout(ctx, c.Booking.ID)

	assert.ErrorIs(t, err, booking.ErrRecognitionNotImplemented)
	assert.Equal(t, booking.KindNotImplemented, booking.KindOf(err))
	b, _ := engine.GetBooking(ctx, c.Booking.ID)
	assert.Equal(t, booking.StatusConfirmed, b.Status)
}

func TestParseRecognitionMethod(t *testing.T) {
	m, err := booking.ParseRecognitionMethod("Checkout")
	require.NoError(t, err)
	assert.Equal(t, booking.RecognizeAtCheckout, m)

	_, err = booking.ParseRecognitionMethod("daily")
	assert.ErrorIs(t, err, booking.ErrRecognitionNotImplemented)

	_, err = booking.ParseRecognitionMethod("weekly")
	assert.Error(t, err)
}

// =============================================================================
// OTHER TRANSITIONS
// =============================================================================

func TestCheckInThenCheckout(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	c, err := engine.CreateBooking(ctx, request("301", "2026-06-01", "2026-06-03", "7000"))
	require.NoError(t, err)

	b, err := engine.CheckIn(ctx, c.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCheckedIn, b.Status)

	_, err = engine.CheckIn(ctx, c.Booking.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyProcessed)

	_, err = engine.Cancel(ctx, c.Booking.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	r, err := engine.Checkout(ctx, c.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCheckedOut, r.Booking.Status)

	trail, err := store.AuditTrail(ctx, "bookings", c.Booking.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, booking.AuditInsert, trail[0].Action)
	assert.Equal(t, "CheckedIn", trail[1].NewValue)
	assert.Equal(t, "CheckedOut", trail[2].NewValue)
}

func TestCancel_FreesDatesAndRoom(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	c, err := engine.CreateBooking(ctx, request("102", "2026-06-01", "2026-06-05", "4800"))
	require.NoError(t, err)

	cancelled, err := engine.Cancel(ctx, c.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
	assert.Equal(t, booking.RoomVacant, roomStatus(t, store, "102"))

	_, err = engine.Cancel(ctx, c.Booking.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyProcessed)

	// The same dates can be booked again.
	_, err = engine.CreateBooking(ctx, request("102", "2026-06-01", "2026-06-05", "4800"))
	assert.NoError(t, err)
}

func TestMarkNoShow_KeepsRoomOccupiedWhileOthersHoldIt(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	first, err := engine.CreateBooking(ctx, request("202", "2026-06-01", "2026-06-03", "3600"))
	require.NoError(t, err)
	_, err = engine.CreateBooking(ctx, request("202", "2026-06-10", "2026-06-12", "3600"))
	require.NoError(t, err)

	b, err := engine.MarkNoShow(ctx, first.Booking.ID)
	require.NoError(t, err)

	assert.Equal(t, booking.StatusNoShow, b.Status)
	assert.Equal(t, booking.RoomOccupied, roomStatus(t, store, "202"))
}

// =============================================================================
// UTILITIES AND MANUAL POSTINGS
// =============================================================================

func TestRecordUtilityCharge(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	// GIVEN: 150 kWh at 8.00 and 15 m3 at 20.00
	charge, err := engine.RecordUtilityCharge(ctx, booking.MeterReading{
		RoomID:       "101",
		ElectricOld:  dec("1000"),
		ElectricNew:  dec("1150"),
		WaterOld:     dec("50"),
		WaterNew:     dec("65"),
		ElectricRate: dec("8"),
		WaterRate:    dec("20"),
	})

	// THEN: 1200.00 + 300.00 posted as utility income
	require.NoError(t, err)
	assert.Equal(t, "150", charge.ElectricUnits.String())
	assert.Equal(t, "15", charge.WaterUnits.String())
	assert.Equal(t, "1200.00", charge.ElectricAmount.StringFixed(2))
	assert.Equal(t, "300.00", charge.WaterAmount.StringFixed(2))
	assert.Equal(t, "1500.00", charge.Total.StringFixed(2))

	j, err := engine.GetJournal(ctx, charge.Journal.ID)
	require.NoError(t, err)
	assert.Equal(t, "UTIL-101", j.Reference)
	require.Len(t, j.Postings, 2)
	assert.Equal(t, ledger.AccountBank, j.Postings[0].AccountCode)
	assert.Equal(t, "1500.00", j.Postings[0].Debit.StringFixed(2))
	assert.Equal(t, ledger.AccountUtilityRevenue, j.Postings[1].AccountCode)
	assert.Equal(t, "1500.00", j.Postings[1].Credit.StringFixed(2))
}

func TestRecordUtilityCharge_Rejections(t *testing.T) {
	engine := newTestEngine(t, newTestStore(t))
	ctx := context.Background()

	_, err := engine.RecordUtilityCharge(ctx, booking.MeterReading{
		RoomID: "101", ElectricOld: dec("1000"), ElectricNew: dec("900"),
		WaterOld: dec("1"), WaterNew: dec("2"), ElectricRate: dec("8"), WaterRate: dec("20"),
	})
	var neg *booking.NegativeUsageError
	require.ErrorAs(t, err, &neg)
	assert.Equal(t, "electric", neg.Meter)

	_, err = engine.RecordUtilityCharge(ctx, booking.MeterReading{
		RoomID: "101", ElectricOld: dec("1"), ElectricNew: dec("2"),
		WaterOld: dec("9"), WaterNew: dec("8"), ElectricRate: dec("8"), WaterRate: dec("20"),
	})
	require.ErrorAs(t, err, &neg)
	assert.Equal(t, "water", neg.Meter)

	_, err = engine.RecordUtilityCharge(ctx, booking.MeterReading{
		RoomID: "999", ElectricOld: dec("1"), ElectricNew: dec("2"),
		WaterOld: dec("1"), WaterNew: dec("2"), ElectricRate: dec("8"), WaterRate: dec("20"),
	})
	assert.True(t, booking.IsNotFound(err))

	// Units times rate past the int64 cents limit.
	_, err = engine.RecordUtilityCharge(ctx, booking.MeterReading{
		RoomID: "101", ElectricOld: dec("0"), ElectricNew: dec("100000000000000000"),
		WaterOld: dec("1"), WaterNew: dec("2"), ElectricRate: dec("8"), WaterRate: dec("20"),
	})
	var amountErr *ledger.InvalidAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.True(t, amountErr.TooLarge)
	assert.Equal(t, booking.KindInvalidAmount, booking.KindOf(err))
}

func TestPostJournal(t *testing.T) {
	engine := newTestEngine(t, newTestStore(t))
	ctx := context.Background()

	j, err := engine.PostJournal(ctx, "deposit_received", dec("250.5"), "WALK-IN", "front desk")
	require.NoError(t, err)
	assert.Equal(t, "Deposit received: front desk", j.Description)
	assert.Equal(t, "250.50", j.Postings[0].Debit.StringFixed(2))

	_, err = engine.PostJournal(ctx, "payroll", dec("1"), "", "")
	assert.Equal(t, booking.KindUnknownTemplate, booking.KindOf(err))
}

// =============================================================================
// QUERIES AND REPORTS
// =============================================================================

func TestQueries(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	c, err := engine.CreateBooking(ctx, request("101", "2026-06-01", "2026-06-05", "5000"))
	require.NoError(t, err)

	conflict, err := engine.HasConflict(ctx, "101", calendar.MustParse("2026-06-04"), calendar.MustParse("2026-06-06"), "")
	require.NoError(t, err)
	assert.True(t, conflict.Has)

	conflict, err = engine.HasConflict(ctx, "101", calendar.MustParse("2026-06-04"), calendar.MustParse("2026-06-06"), c.Booking.ID)
	require.NoError(t, err)
	assert.False(t, conflict.Has)

	rooms, err := engine.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 5)

	bookings, err := engine.ListBookings(ctx, "101")
	require.NoError(t, err)
	require.Len(t, bookings, 1)

	_, err = engine.ListBookings(ctx, "999")
	assert.True(t, booking.IsNotFound(err))

	_, err = engine.GetBooking(ctx, "RES-99999")
	assert.True(t, booking.IsNotFound(err))
}

func TestHasConflict_UnknownRoom(t *testing.T) {
	engine := newTestEngine(t, newTestStore(t))

	_, err := engine.HasConflict(context.Background(), "999",
		calendar.MustParse("2026-06-01"), calendar.MustParse("2026-06-02"), "")

	var nf *booking.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "room", nf.Kind)
	assert.Equal(t, "999", nf.ID)
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
}

// roomLookupFailure returns an already classified storage error, wrapped
// once more, from every room lookup.
type roomLookupFailure struct {
	booking.TxStore
	err error
}

func (f roomLookupFailure) GetRoom(context.Context, string) (*booking.Room, error) {
	return nil, f.err
}

func TestPersistenceErrorIsNotWrappedTwice(t *testing.T) {
	// GIVEN: a room lookup that fails with a wrapped PersistenceError
	cause := &booking.PersistenceError{Op: "get room", Err: booking.ErrConcurrentModification}
	wrapped := fmt.Errorf("room lookup: %w", cause)
	engine := newTestEngine(t, roomLookupFailure{TxStore: newTestStore(t), err: wrapped})

	// WHEN
	_, err := engine.ListBookings(context.Background(), "101")

	// THEN: the error comes back as is, keeping its original op and retryability
	require.Equal(t, wrapped, err)
	var pe *booking.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Same(t, cause, pe)
	assert.True(t, booking.IsRetryable(err))
	assert.Equal(t, booking.KindPersistence, booking.KindOf(err))
}

func TestLedgerStaysBalancedAcrossOperations(t *testing.T) {
	store := newTestStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	for _, req := range []booking.CreateBookingRequest{
		request("101", "2026-06-01", "2026-06-05", "5000"),
		request("102", "2026-06-01", "2026-06-02", "1199.99"),
		request("201", "2026-06-03", "2026-06-06", "5400.33"),
	} {
		c, err := engine.CreateBooking(ctx, req)
		require.NoError(t, err)
		_, err = engine.Checkout(ctx, c.Booking.ID)
		require.NoError(t, err)
	}
	_, err := engine.RecordUtilityCharge(ctx, booking.MeterReading{
		RoomID: "101", ElectricOld: dec("0"), ElectricNew: dec("12.5"),
		WaterOld: dec("0"), WaterNew: dec("3.25"), ElectricRate: dec("8"), WaterRate: dec("20"),
	})
	require.NoError(t, err)

	tb, err := reporting.NewService(store, nil).TrialBalance(ctx)
	require.NoError(t, err)
	assert.True(t, tb.InBalance)

	for _, row := range tb.Rows {
		if row.Code == ledger.AccountCustomerDeposits {
			assert.True(t, row.Balance.IsZero(), "deposits fully released")
		}
	}
}

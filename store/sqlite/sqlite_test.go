package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/ledger"
	"github.com/warp/hotel-ledger/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "hotel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleBooking(id string) booking.Booking {
	stay, _ := calendar.NewRange(calendar.MustParse("2026-06-01"), calendar.MustParse("2026-06-05"))
	now := time.Date(2026, time.May, 20, 9, 0, 0, 0, time.UTC)
	return booking.Booking{
		ID:         id,
		CustomerID: "CUS-00001",
		RoomID:     "101",
		Stay:       stay,
		TotalPrice: dec("5000.00"),
		Status:     booking.StatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// =============================================================================
// MIGRATIONS AND SEED DATA
// =============================================================================

func TestNew_SeedsAccountsAndRooms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	codes := map[string]ledger.Category{}
	for _, a := range accounts {
		codes[a.Code] = a.Category
	}
	// Every account a template posts to exists.
	for _, tmpl := range ledger.Templates() {
		for _, code := range tmpl.Accounts() {
			assert.Contains(t, codes, code, "template %s", tmpl)
		}
	}
	assert.Equal(t, ledger.CategoryRevenue, codes[ledger.AccountUtilityRevenue])

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 5)
	assert.Equal(t, "101", rooms[0].ID)
	assert.Equal(t, "1200.00", rooms[0].NightlyRate.StringFixed(2))
	assert.Equal(t, booking.RoomVacant, rooms[0].Status)
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotel.db")
	first, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.New(path)
	require.NoError(t, err)
	defer second.Close()

	rooms, err := second.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 5)
}

func TestNew_RejectsMemory(t *testing.T) {
	_, err := sqlite.New(":memory:")
	assert.Error(t, err)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_CommitAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s booking.Store) error {
		return s.InsertBooking(ctx, sampleBooking("RES-00001"))
	})
	require.NoError(t, err)

	got, err := store.GetBooking(ctx, "RES-00001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "5000.00", got.TotalPrice.StringFixed(2))
	assert.Equal(t, "2026-06-01", got.Stay.Start.String())
	assert.Equal(t, "2026-06-05", got.Stay.End.String())
	assert.Equal(t, booking.StatusConfirmed, got.Status)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s booking.Store) error {
		require.NoError(t, s.InsertBooking(ctx, sampleBooking("RES-00001")))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := store.GetBooking(ctx, "RES-00001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertBooking_AmountAtCentsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a price exactly at the int64 cents limit
	b := sampleBooking("RES-00001")
	b.TotalPrice = ledger.MaxAmount

	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		return s.InsertBooking(ctx, b)
	}))

	// THEN it is stored without loss
	got, err := store.GetBooking(ctx, "RES-00001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "92233720368547758.07", got.TotalPrice.StringFixed(2))
}

func TestInsertBooking_AmountBeyondCentsLimitRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a price that would wrap when converted to int64 cents
	b := sampleBooking("RES-00001")
	b.TotalPrice = dec("100000000000000000000")

	// WHEN inserting it
	err := store.WithTx(ctx, func(s booking.Store) error {
		return s.InsertBooking(ctx, b)
	})

	// THEN the insert fails and nothing is stored
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	got, err := store.GetBooking(ctx, "RES-00001")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGet_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b, err := store.GetBooking(ctx, "RES-99999")
	require.NoError(t, err)
	assert.Nil(t, b)

	r, err := store.GetRoom(ctx, "999")
	require.NoError(t, err)
	assert.Nil(t, r)

	j, err := store.GetJournal(ctx, "JNL-20260101-001")
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestUpdateBookingStatus_IsConditional(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.June, 5, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		return s.InsertBooking(ctx, sampleBooking("RES-00001"))
	}))

	// WHEN: the expected current status does not match
	err := store.WithTx(ctx, func(s booking.Store) error {
		return s.UpdateBookingStatus(ctx, "RES-00001", booking.StatusCheckedIn, booking.StatusCheckedOut, at)
	})

	// THEN: nothing changes and the error is retryable
	assert.ErrorIs(t, err, booking.ErrConcurrentModification)
	got, _ := store.GetBooking(ctx, "RES-00001")
	assert.Equal(t, booking.StatusConfirmed, got.Status)
}

func TestOccupyingBookings_FiltersStatusAndExclusion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cancelled := sampleBooking("RES-00002")
	cancelled.Status = booking.StatusCancelled
	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		if err := s.InsertBooking(ctx, sampleBooking("RES-00001")); err != nil {
			return err
		}
		return s.InsertBooking(ctx, cancelled)
	}))

	all, err := store.OccupyingBookings(ctx, "101", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "RES-00001", all[0].ID)

	excluded, err := store.OccupyingBookings(ctx, "101", "RES-00001")
	require.NoError(t, err)
	assert.Empty(t, excluded)

	listed, err := store.ListBookings(ctx, "101")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

// =============================================================================
// COUNTERS
// =============================================================================

func TestCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := calendar.MustParse("2026-06-01")

	var seq []int
	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		for i := 0; i < 3; i++ {
			n, err := s.NextSequence(ctx, "RES")
			if err != nil {
				return err
			}
			seq = append(seq, n)
		}
		a, err := s.NextDailySequence(ctx, "JNL", day)
		if err != nil {
			return err
		}
		b, err := s.NextDailySequence(ctx, "JNL", day.AddDays(1))
		if err != nil {
			return err
		}
		seq = append(seq, a, b)
		return nil
	}))

	assert.Equal(t, []int{1, 2, 3, 1, 1}, seq)
}

func TestCounters_RolledBackDrawIsReused(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.WithTx(ctx, func(s booking.Store) error {
		_, _ = s.NextSequence(ctx, "RES")
		return assert.AnError
	})

	var n int
	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		var err error
		n, err = s.NextSequence(ctx, "RES")
		return err
	}))
	assert.Equal(t, 1, n)
}

// =============================================================================
// JOURNALS
// =============================================================================

func postDeposit(t *testing.T, store *sqlite.Store, amount, reference string) ledger.Journal {
	t.Helper()
	ctx := context.Background()
	l := ledger.New(ledger.WithClock(func() time.Time {
		return time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	}))

	var j ledger.Journal
	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		var err error
		j, err = l.Post(ctx, s, ledger.DepositReceived, dec(amount), reference, "")
		return err
	}))
	return j
}

func TestJournal_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	posted := postDeposit(t, store, "1234.56", "RES-00001")

	got, err := store.GetJournal(ctx, posted.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "JNL-20260601-001", got.ID)
	assert.Equal(t, ledger.DepositReceived, got.Template)
	assert.Equal(t, "RES-00001", got.Reference)
	require.Len(t, got.Postings, 2)
	assert.Equal(t, ledger.AccountBank, got.Postings[0].AccountCode)
	assert.Equal(t, "1234.56", got.Postings[0].Debit.StringFixed(2))
	assert.True(t, got.Balanced())

	byRef, err := store.JournalsByReference(ctx, "RES-00001")
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.Equal(t, posted.ID, byRef[0].ID)
}

func TestJournal_IsAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotel.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()
	posted := postDeposit(t, store, "10", "RES-00001")

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Exec(`UPDATE journals SET description = 'edited' WHERE id = ?`, posted.ID)
	assert.Error(t, err)
	_, err = raw.Exec(`DELETE FROM journal_postings WHERE journal_id = ?`, posted.ID)
	assert.Error(t, err)
}

func TestJournal_UnknownAccountRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s booking.Store) error {
		return s.InsertJournal(ctx, ledger.Journal{
			ID:            "JNL-20260601-001",
			TransactionAt: time.Now(),
			Description:   "bad",
			Template:      ledger.DepositReceived,
			Postings: []ledger.Posting{
				{AccountCode: "9999", Debit: dec("1"), Credit: decimal.Zero},
				{AccountCode: "2050", Debit: decimal.Zero, Credit: dec("1")},
			},
		})
	})

	assert.ErrorIs(t, err, sqlite.ErrConstraint)
}

func TestAccountTotals_IncludesUnusedAccounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	postDeposit(t, store, "100", "RES-00001")
	postDeposit(t, store, "50.25", "RES-00002")

	totals, err := store.AccountTotals(ctx)
	require.NoError(t, err)

	accounts, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, totals, len(accounts))

	for _, tot := range totals {
		switch tot.Code {
		case ledger.AccountBank:
			assert.Equal(t, "150.25", tot.Debit.StringFixed(2))
		case ledger.AccountCustomerDeposits:
			assert.Equal(t, "150.25", tot.Credit.StringFixed(2))
		default:
			assert.True(t, tot.Debit.IsZero() && tot.Credit.IsZero(), tot.Code)
		}
	}
}

// =============================================================================
// AUDIT AND BACKUP
// =============================================================================

func TestAuditTrail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithTx(ctx, func(s booking.Store) error {
		if err := s.AppendAudit(ctx, booking.AuditEntry{Table: "bookings", RecordID: "RES-00001", Action: booking.AuditInsert, NewValue: "{}", At: at}); err != nil {
			return err
		}
		return s.AppendAudit(ctx, booking.AuditEntry{Table: "bookings", RecordID: "RES-00001", Action: booking.AuditUpdate, OldValue: "Confirmed", NewValue: "CheckedOut", At: at})
	}))

	trail, err := store.AuditTrail(ctx, "bookings", "RES-00001")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, booking.AuditInsert, trail[0].Action)
	assert.Equal(t, "", trail[0].OldValue)
	assert.Equal(t, "Confirmed", trail[1].OldValue)
	assert.Equal(t, "CheckedOut", trail[1].NewValue)
}

func TestBackup_ProducesUsableCopy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	postDeposit(t, store, "42", "RES-00001")

	dest, err := store.Backup(ctx, filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	copyStore, err := sqlite.New(dest)
	require.NoError(t, err)
	defer copyStore.Close()

	j, err := copyStore.JournalsByReference(ctx, "RES-00001")
	require.NoError(t, err)
	assert.Len(t, j, 1)
}

func TestListAndPruneBackups(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	// GIVEN: four snapshots of this database and two unrelated files
	stamps := []string{
		"20260601_020000.000000000",
		"20260603_020000.000000000",
		"20260602_020000.000000000",
		"20260604_020000.000000000",
	}
	for _, s := range stamps {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "hotel_"+s+".db"), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other_20260601_020000.000000000.db"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hotel_notes.txt"), []byte("x"), 0o644))

	// WHEN: listing
	files, err := store.ListBackups(dir)

	// THEN: only ours, newest first
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, time.Date(2026, 6, 4, 2, 0, 0, 0, time.UTC), files[0].TakenAt)
	assert.Equal(t, time.Date(2026, 6, 1, 2, 0, 0, 0, time.UTC), files[3].TakenAt)

	// WHEN: keeping two
	removed, err := store.PruneBackups(dir, 2)

	// THEN: the two oldest are gone
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "hotel_20260601_020000.000000000.db"),
		filepath.Join(dir, "hotel_20260602_020000.000000000.db"),
	}, removed)

	files, err = store.ListBackups(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	_, err = os.Stat(filepath.Join(dir, "other_20260601_020000.000000000.db"))
	assert.NoError(t, err)
}

func TestListBackups_MissingDir(t *testing.T) {
	store := newTestStore(t)

	files, err := store.ListBackups(filepath.Join(t.TempDir(), "nope"))

	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSaveRoom(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRoom(ctx, booking.Room{ID: "401", Type: "Family", NightlyRate: dec("2500")}))

	r, err := store.GetRoom(ctx, "401")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "Family", r.Type)
	assert.Equal(t, booking.RoomVacant, r.Status)
}

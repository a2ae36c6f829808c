/*
handlers.go - HTTP API handlers for the hotel ledger

PURPOSE:
  Exposes the booking engine and reports via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Bookings:
    POST   /api/bookings                 Create booking (posts deposit)
    GET    /api/bookings/{id}            Get booking
    POST   /api/bookings/{id}/checkin    Mark guest arrived
    POST   /api/bookings/{id}/checkout   Check out (recognizes revenue)
    POST   /api/bookings/{id}/cancel     Cancel, frees the dates
    POST   /api/bookings/{id}/no-show    Mark no-show, frees the dates

  Rooms:
    GET    /api/rooms                    List rooms
    GET    /api/rooms/{id}/bookings      Bookings of a room
    GET    /api/rooms/{id}/conflicts     Availability check
    POST   /api/rooms/{id}/utilities     Bill meter readings

  Journals:
    POST   /api/journals                 Post a template journal
    GET    /api/journals/{id}            Journal with postings

  Reports:
    GET    /api/reports/trial-balance
    GET    /api/reports/income-statement

  Admin:
    POST   /api/admin/backup             Snapshot the database
    GET    /api/admin/backups            List snapshots, newest first

REQUEST FLOW:
  1. Decode JSON body
  2. Validate shape (validator tags)
  3. Call the engine
  4. Wrap result in the Result envelope

ERROR HANDLING:
  See result.go. The error kind drives the status:
  - 400: invalid input, unknown template, negative meter usage
  - 404: room, booking or journal not found
  - 409: date conflict, already processed, invalid transition
  - 501: recognition method not implemented
  - 503: storage busy (Retry-After set)
  - 500: everything else, without storage details

SEE ALSO:
  - dto.go: Request/response data structures
  - result.go: Envelope and error mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/reporting"
	"github.com/warp/hotel-ledger/store/sqlite"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backuper writes and lists database snapshots.
type Backuper interface {
	Backup(ctx context.Context, dir string) (string, error)
	ListBackups(dir string) ([]sqlite.BackupFile, error)
}

// UtilityRates are the per-unit defaults used when a request omits them.
type UtilityRates struct {
	Electric decimal.Decimal
	Water    decimal.Decimal
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	engine    *booking.Engine
	reports   *reporting.Service
	backups   Backuper
	backupDir string
	rates     UtilityRates
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler creates a handler. A nil logger uses slog.Default.
func NewHandler(engine *booking.Engine, reports *reporting.Service, backups Backuper, backupDir string, rates UtilityRates, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		engine:    engine,
		reports:   reports,
		backups:   backups,
		backupDir: backupDir,
		rates:     rates,
		validate:  v,
		logger:    logger,
	}
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking reserves a room and posts the deposit.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := h.decode(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	// datetime tags already checked the layout
	checkIn, _ := calendar.Parse(req.CheckIn)
	checkOut, _ := calendar.Parse(req.CheckOut)

	conf, err := h.engine.CreateBooking(r.Context(), booking.CreateBookingRequest{
		CustomerID: req.CustomerID,
		RoomID:     req.RoomID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TotalPrice: *req.TotalPrice,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeData(w, r, http.StatusCreated, BookingWithJournalDTO{
		Booking: toBookingDTO(conf.Booking),
		Journal: toJournalDTO(conf.Journal),
	})
}

// GetBooking returns one booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusOK, toBookingDTO(*b))
}

// Checkout closes the stay and recognizes revenue.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.engine.Checkout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusOK, BookingWithJournalDTO{
		Booking: toBookingDTO(receipt.Booking),
		Journal: toJournalDTO(receipt.Journal),
	})
}

// CheckIn marks the guest as arrived.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.CheckIn)
}

// Cancel cancels a confirmed booking.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Cancel)
}

// MarkNoShow records that the guest never arrived.
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.MarkNoShow)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*booking.Booking, error)) {
	b, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusOK, toBookingDTO(*b))
}

// =============================================================================
// ROOM HANDLERS
// =============================================================================

// ListRooms returns all rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.engine.ListRooms(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	dtos := make([]RoomDTO, len(rooms))
	for i, room := range rooms {
		dtos[i] = toRoomDTO(room)
	}
	h.writeData(w, r, http.StatusOK, dtos)
}

// ListRoomBookings returns every booking of a room.
func (h *Handler) ListRoomBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.engine.ListBookings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b)
	}
	h.writeData(w, r, http.StatusOK, dtos)
}

// CheckConflicts reports which nights of a prospective stay are taken.
// Query: check_in, check_out (YYYY-MM-DD), optional exclude booking id.
// An unknown room is a 404.
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	checkIn, err := calendar.Parse(q.Get("check_in"))
	if err != nil {
		h.writeFailure(w, r, badRequest("check_in must be a YYYY-MM-DD date"))
		return
	}
	checkOut, err := calendar.Parse(q.Get("check_out"))
	if err != nil {
		h.writeFailure(w, r, badRequest("check_out must be a YYYY-MM-DD date"))
		return
	}

	roomID := chi.URLParam(r, "id")
	c, err := h.engine.HasConflict(r.Context(), roomID, checkIn, checkOut, q.Get("exclude"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	dates := make([]string, len(c.Dates))
	for i, d := range c.Dates {
		dates[i] = d.String()
	}
	h.writeData(w, r, http.StatusOK, ConflictCheckDTO{
		RoomID:           roomID,
		CheckIn:          checkIn.String(),
		CheckOut:         checkOut.String(),
		Available:        !c.Has,
		ConflictingDates: dates,
	})
}

// RecordUtilityCharge bills a room's meter readings.
func (h *Handler) RecordUtilityCharge(w http.ResponseWriter, r *http.Request) {
	var req UtilityChargeRequest
	if err := h.decode(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	reading := booking.MeterReading{
		RoomID:       chi.URLParam(r, "id"),
		ElectricOld:  *req.ElectricOld,
		ElectricNew:  *req.ElectricNew,
		WaterOld:     *req.WaterOld,
		WaterNew:     *req.WaterNew,
		ElectricRate: h.rates.Electric,
		WaterRate:    h.rates.Water,
	}
	if req.ElectricRate != nil {
		reading.ElectricRate = *req.ElectricRate
	}
	if req.WaterRate != nil {
		reading.WaterRate = *req.WaterRate
	}

	charge, err := h.engine.RecordUtilityCharge(r.Context(), reading)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusCreated, toUtilityChargeDTO(*charge))
}

// =============================================================================
// JOURNAL HANDLERS
// =============================================================================

// PostJournal posts a template journal outside the booking flow.
func (h *Handler) PostJournal(w http.ResponseWriter, r *http.Request) {
	var req PostJournalRequest
	if err := h.decode(r, &req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	j, err := h.engine.PostJournal(r.Context(), req.Template, *req.Amount, req.Reference, req.Note)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusCreated, toJournalDTO(*j))
}

// GetJournal returns a journal with its postings.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	j, err := h.engine.GetJournal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusOK, toJournalDTO(*j))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// TrialBalance returns per-account totals.
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.reports.TrialBalance(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusOK, toTrialBalanceDTO(*tb))
}

// IncomeStatement returns revenue, expenses and margin.
func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	is, err := h.reports.IncomeStatement(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeData(w, r, http.StatusOK, toIncomeStatementDTO(*is))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// Backup snapshots the database into the configured directory.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	path, err := h.backups.Backup(r.Context(), h.backupDir)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "backup written", slog.String("path", path))
	h.writeData(w, r, http.StatusCreated, BackupDTO{Path: path})
}

// ListBackups returns the snapshots in the configured directory.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := h.backups.ListBackups(h.backupDir)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	dtos := make([]BackupDTO, len(files))
	for i, f := range files {
		dtos[i] = BackupDTO{Path: f.Path, Size: f.Size, TakenAt: &f.TakenAt}
	}
	h.writeData(w, r, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return h.validate.Struct(dst)
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Money is rendered as a string with two decimals ("4672.90"). Requests
  accept either JSON numbers or strings. Dates are YYYY-MM-DD.

VALIDATION:
  Request types carry go-playground/validator tags; handlers run them before
  calling the engine. Domain rules (ranges, conflicts) stay in the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - result.go: Response envelope
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/ledger"
	"github.com/warp/hotel-ledger/reporting"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateBookingRequest is the body of POST /api/bookings.
type CreateBookingRequest struct {
	CustomerID string           `json:"customer_id" validate:"required,max=64"`
	RoomID     string           `json:"room_id" validate:"required,max=32"`
	CheckIn    string           `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string           `json:"check_out" validate:"required,datetime=2006-01-02"`
	TotalPrice *decimal.Decimal `json:"total_price" validate:"required"`
}

// UtilityChargeRequest is the body of POST /api/rooms/{id}/utilities.
// Rates default to the configured values when omitted.
type UtilityChargeRequest struct {
	ElectricOld  *decimal.Decimal `json:"electric_old" validate:"required"`
	ElectricNew  *decimal.Decimal `json:"electric_new" validate:"required"`
	WaterOld     *decimal.Decimal `json:"water_old" validate:"required"`
	WaterNew     *decimal.Decimal `json:"water_new" validate:"required"`
	ElectricRate *decimal.Decimal `json:"electric_rate,omitempty"`
	WaterRate    *decimal.Decimal `json:"water_rate,omitempty"`
}

// PostJournalRequest is the body of POST /api/journals.
type PostJournalRequest struct {
	Template  string           `json:"template" validate:"required"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
	Reference string           `json:"reference" validate:"max=64"`
	Note      string           `json:"note" validate:"max=256"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// RoomDTO represents a room.
type RoomDTO struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	NightlyRate string    `json:"nightly_rate"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BookingDTO represents a booking.
type BookingDTO struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	RoomID     string    `json:"room_id"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Nights     int       `json:"nights"`
	TotalPrice string    `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostingDTO represents one journal line.
type PostingDTO struct {
	AccountCode string `json:"account_code"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Memo        string `json:"memo,omitempty"`
}

// JournalDTO represents a journal with its postings.
type JournalDTO struct {
	ID            string       `json:"id"`
	TransactionAt time.Time    `json:"transaction_at"`
	Description   string       `json:"description"`
	Reference     string       `json:"reference"`
	Template      string       `json:"template"`
	Postings      []PostingDTO `json:"postings"`
	TotalDebit    string       `json:"total_debit"`
	TotalCredit   string       `json:"total_credit"`
	Reverses      string       `json:"reverses,omitempty"`
}

// BookingWithJournalDTO is returned by create and checkout.
type BookingWithJournalDTO struct {
	Booking BookingDTO `json:"booking"`
	Journal JournalDTO `json:"journal"`
}

// ConflictCheckDTO is returned by the availability check.
type ConflictCheckDTO struct {
	RoomID           string   `json:"room_id"`
	CheckIn          string   `json:"check_in"`
	CheckOut         string   `json:"check_out"`
	Available        bool     `json:"available"`
	ConflictingDates []string `json:"conflicting_dates"`
}

// UtilityChargeDTO is the computed utility bill.
type UtilityChargeDTO struct {
	RoomID         string `json:"room_id"`
	ElectricUnits  string `json:"electric_units"`
	WaterUnits     string `json:"water_units"`
	ElectricAmount string `json:"electric_amount"`
	WaterAmount    string `json:"water_amount"`
	Total          string `json:"total"`
	JournalID      string `json:"journal_id"`
}

// TrialBalanceRowDTO is one account line.
type TrialBalanceRowDTO struct {
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	Category    string `json:"category"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
}

// TrialBalanceDTO is the trial balance report.
type TrialBalanceDTO struct {
	Rows        []TrialBalanceRowDTO `json:"rows"`
	TotalDebit  string               `json:"total_debit"`
	TotalCredit string               `json:"total_credit"`
	InBalance   bool                 `json:"in_balance"`
}

// IncomeStatementDTO is the income statement report.
type IncomeStatementDTO struct {
	Revenue      string `json:"revenue"`
	Expenses     string `json:"expenses"`
	NetProfit    string `json:"net_profit"`
	ProfitMargin string `json:"profit_margin"`
}

// BackupDTO describes a snapshot file.
type BackupDTO struct {
	Path    string     `json:"path"`
	Size    int64      `json:"size,omitempty"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toRoomDTO(r booking.Room) RoomDTO {
	return RoomDTO{
		ID:          r.ID,
		Type:        r.Type,
		NightlyRate: money(r.NightlyRate),
		Status:      string(r.Status),
		UpdatedAt:   r.UpdatedAt,
	}
}

func toBookingDTO(b booking.Booking) BookingDTO {
	return BookingDTO{
		ID:         b.ID,
		CustomerID: b.CustomerID,
		RoomID:     b.RoomID,
		CheckIn:    b.Stay.Start.String(),
		CheckOut:   b.Stay.End.String(),
		Nights:     b.Stay.Nights(),
		TotalPrice: money(b.TotalPrice),
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toJournalDTO(j ledger.Journal) JournalDTO {
	postings := make([]PostingDTO, len(j.Postings))
	for i, p := range j.Postings {
		postings[i] = PostingDTO{
			AccountCode: p.AccountCode,
			Debit:       money(p.Debit),
			Credit:      money(p.Credit),
			Memo:        p.Memo,
		}
	}
	debit, credit := j.Totals()
	return JournalDTO{
		ID:            j.ID,
		TransactionAt: j.TransactionAt,
		Description:   j.Description,
		Reference:     j.Reference,
		Template:      j.Template.String(),
		Postings:      postings,
		TotalDebit:    money(debit),
		TotalCredit:   money(credit),
		Reverses:      j.Reverses,
	}
}

func toUtilityChargeDTO(c booking.UtilityCharge) UtilityChargeDTO {
	return UtilityChargeDTO{
		RoomID:         c.RoomID,
		ElectricUnits:  c.ElectricUnits.String(),
		WaterUnits:     c.WaterUnits.String(),
		ElectricAmount: money(c.ElectricAmount),
		WaterAmount:    money(c.WaterAmount),
		Total:          money(c.Total),
		JournalID:      c.Journal.ID,
	}
}

func toTrialBalanceDTO(tb reporting.TrialBalance) TrialBalanceDTO {
	rows := make([]TrialBalanceRowDTO, len(tb.Rows))
	for i, r := range tb.Rows {
		rows[i] = TrialBalanceRowDTO{
			AccountCode: r.Code,
			AccountName: r.Name,
			Category:    string(r.Category),
			Debit:       money(r.Debit),
			Credit:      money(r.Credit),
			Balance:     money(r.Balance),
		}
	}
	return TrialBalanceDTO{
		Rows:        rows,
		TotalDebit:  money(tb.TotalDebit),
		TotalCredit: money(tb.TotalCredit),
		InBalance:   tb.InBalance,
	}
}

func toIncomeStatementDTO(is reporting.IncomeStatement) IncomeStatementDTO {
	return IncomeStatementDTO{
		Revenue:      money(is.Revenue),
		Expenses:     money(is.Expenses),
		NetProfit:    money(is.NetProfit),
		ProfitMargin: is.ProfitMargin.StringFixed(4),
	}
}

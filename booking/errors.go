package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/ledger"
)

// =============================================================================
// SENTINEL ERRORS - Use errors.Is() to check
// =============================================================================

var (
	ErrConflict          = errors.New("room unavailable")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyProcessed  = errors.New("already processed")
	ErrNegativeUsage     = errors.New("negative meter usage")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("persistence failure")

	// ErrConcurrentModification is reported by stores when the database was
	// busy or a conditional update matched no row. Retrying may succeed.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrRecognitionNotImplemented rejects the daily accrual policy.
	ErrRecognitionNotImplemented = errors.New("revenue recognition method not implemented")
)

// =============================================================================
// STRUCTURED ERRORS - Use errors.As() to extract details
// =============================================================================

// ConflictError lists the dates already held by another booking.
type ConflictError struct {
	RoomID string
	Dates  []calendar.Date
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("room %s unavailable on %s", e.RoomID, strings.Join(e.DateStrings(), ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// DateStrings renders the conflicting dates as YYYY-MM-DD.
func (e *ConflictError) DateStrings() []string {
	out := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		out[i] = d.String()
	}
	return out
}

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyProcessedError is returned when an operation was already applied.
type AlreadyProcessedError struct {
	BookingID string
	Status    Status
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("booking %s is already %s", e.BookingID, e.Status)
}

func (e *AlreadyProcessedError) Unwrap() error {
	return ErrAlreadyProcessed
}

// NegativeUsageError is returned when a meter reading went backwards.
type NegativeUsageError struct {
	Meter string
	Old   decimal.Decimal
	New   decimal.Decimal
}

func (e *NegativeUsageError) Error() string {
	return fmt.Sprintf("%s meter reading %s is below previous reading %s", e.Meter, e.New, e.Old)
}

func (e *NegativeUsageError) Unwrap() error {
	return ErrNegativeUsage
}

// InvalidTransitionError is returned for moves the state machine forbids.
type InvalidTransitionError struct {
	BookingID string
	From      Status
	To        Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s cannot move from %s to %s", e.BookingID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// PersistenceError wraps a storage failure. Both ErrPersistence and the
// underlying cause match with errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Retryable reports whether the operation may succeed if attempted again.
func (e *PersistenceError) Retryable() bool {
	return errors.Is(e.Err, ErrConcurrentModification)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ErrorKind is the stable, client-facing classification of an error.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindInvalidRange      ErrorKind = "invalid_range"
	KindInvalidAmount     ErrorKind = "invalid_amount"
	KindConflict          ErrorKind = "conflict"
	KindUnknownTemplate   ErrorKind = "unknown_template"
	KindUnbalancedEntry   ErrorKind = "unbalanced_entry"
	KindNotFound          ErrorKind = "not_found"
	KindAlreadyProcessed  ErrorKind = "already_processed"
	KindNegativeUsage     ErrorKind = "negative_usage"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindNotImplemented    ErrorKind = "not_implemented"
	KindPersistence       ErrorKind = "persistence"
)

// KindOf classifies err. Anything unrecognized is a persistence failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, calendar.ErrInvalidRange):
		return KindInvalidRange
	case errors.Is(err, ledger.ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ledger.ErrUnknownTemplate):
		return KindUnknownTemplate
	case errors.Is(err, ledger.ErrUnbalancedEntry), errors.Is(err, ledger.ErrInvalidPosting):
		return KindUnbalancedEntry
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return KindAlreadyProcessed
	case errors.Is(err, ErrNegativeUsage):
		return KindNegativeUsage
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrRecognitionNotImplemented):
		return KindNotImplemented
	default:
		return KindPersistence
	}
}

// IsClientError returns true for errors caused by the request itself.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidRange, KindInvalidAmount, KindConflict, KindUnknownTemplate,
		KindNotFound, KindAlreadyProcessed, KindNegativeUsage, KindInvalidTransition:
		return true
	}
	return false
}

// IsNotFound returns true for missing rooms, bookings or journals.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true for transient storage contention.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return errors.Is(err, ErrConcurrentModification)
}

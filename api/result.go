package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/warp/hotel-ledger/booking"
)

// kindInvalidRequest marks malformed or incomplete request bodies.
const kindInvalidRequest booking.ErrorKind = "invalid_request"

// Result is the envelope of every response.
type Result struct {
	Success          bool              `json:"success"`
	Data             any               `json:"data,omitempty"`
	Message          string            `json:"message,omitempty"`
	ErrorKind        booking.ErrorKind `json:"error_kind,omitempty"`
	ConflictingDates []string          `json:"conflicting_dates,omitempty"`
	CorrelationID    string            `json:"correlation_id,omitempty"`
}

// requestError is a malformed request, rejected before reaching the engine.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, Result{
		Success:       true,
		Data:          data,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

// writeFailure maps err to a status and a message that is safe to show.
// Storage details are logged, never returned.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	res := Result{CorrelationID: GetCorrelationID(r.Context())}

	var (
		reqErr   *requestError
		valErrs  validator.ValidationErrors
		conflict *booking.ConflictError
	)
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &reqErr):
		status, res.ErrorKind, res.Message = http.StatusBadRequest, kindInvalidRequest, reqErr.msg
	case errors.As(err, &valErrs):
		status, res.ErrorKind, res.Message = http.StatusBadRequest, kindInvalidRequest, describeValidation(valErrs)
	default:
		res.ErrorKind = booking.KindOf(err)
		switch res.ErrorKind {
		case booking.KindInvalidRange, booking.KindInvalidAmount, booking.KindNegativeUsage, booking.KindUnknownTemplate:
			status, res.Message = http.StatusBadRequest, err.Error()
		case booking.KindNotFound:
			status, res.Message = http.StatusNotFound, err.Error()
		case booking.KindConflict:
			status, res.Message = http.StatusConflict, err.Error()
			if errors.As(err, &conflict) {
				res.ConflictingDates = conflict.DateStrings()
			}
		case booking.KindAlreadyProcessed, booking.KindInvalidTransition:
			status, res.Message = http.StatusConflict, err.Error()
		case booking.KindNotImplemented:
			status, res.Message = http.StatusNotImplemented, err.Error()
		case booking.KindUnbalancedEntry:
			status, res.Message = http.StatusInternalServerError, "ledger posting rejected"
		default:
			if booking.IsRetryable(err) {
				status, res.Message = http.StatusServiceUnavailable, "storage busy, retry the request"
				w.Header().Set("Retry-After", "1")
			} else {
				status, res.Message = http.StatusInternalServerError, "internal error"
			}
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("correlation_id", res.CorrelationID),
			slog.String("error_kind", string(res.ErrorKind)),
			slog.Any("error", err),
		)
	}
	writeJSON(w, status, res)
}

func describeValidation(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		return fe.Field() + " must be a YYYY-MM-DD date"
	case "max":
		return fe.Field() + " is too long"
	default:
		return fe.Field() + " is invalid"
	}
}

package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Sentinel errors for errors.Is checks.
var (
	ErrUnknownTemplate = errors.New("unknown posting template")
	ErrUnbalancedEntry = errors.New("unbalanced journal entry")
	ErrInvalidPosting  = errors.New("invalid posting")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// UnknownTemplateError is returned by ParseTemplate for names outside the closed set.
type UnknownTemplateError struct {
	Name string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown posting template %q", e.Name)
}

func (e *UnknownTemplateError) Unwrap() error {
	return ErrUnknownTemplate
}

// UnbalancedEntryError means debits and credits differ after rounding.
// Seeing one at runtime means a template recipe is wrong.
type UnbalancedEntryError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("unbalanced journal entry: debit %s, credit %s",
		e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

func (e *UnbalancedEntryError) Unwrap() error {
	return ErrUnbalancedEntry
}

// InvalidPostingError describes a malformed posting line.
type InvalidPostingError struct {
	Line   int
	Reason string
}

func (e *InvalidPostingError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("invalid posting: %s", e.Reason)
	}
	return fmt.Sprintf("invalid posting line %d: %s", e.Line+1, e.Reason)
}

func (e *InvalidPostingError) Unwrap() error {
	return ErrInvalidPosting
}

// InvalidAmountError is returned for negative monetary inputs and for
// amounts too large to store as whole cents (TooLarge).
type InvalidAmountError struct {
	Field    string
	Amount   decimal.Decimal
	TooLarge bool
}

func (e *InvalidAmountError) Error() string {
	if e.TooLarge {
		return fmt.Sprintf("invalid amount for %s: %s exceeds the maximum of %s",
			e.Field, e.Amount.String(), MaxAmount.StringFixed(2))
	}
	return fmt.Sprintf("invalid amount for %s: %s must not be negative", e.Field, e.Amount.String())
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}

// MaxAmount is the largest amount representable as int64 cents.
var MaxAmount = decimal.New(math.MaxInt64, -2)

// CheckAmount rejects amounts that are negative or that would not fit in
// int64 cents once rounded to two decimals.
func CheckAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidAmountError{Field: field, Amount: amount}
	}
	if amount.Round(2).GreaterThan(MaxAmount) {
		return &InvalidAmountError{Field: field, Amount: amount, TooLarge: true}
	}
	return nil
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of a posting.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Posting is one line of a journal. Exactly one of Debit and Credit is
// non-zero, except for zero-amount entries where both are zero.
type Posting struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// Side reports which side the posting hits.
func (p Posting) Side() Side {
	if p.Credit.IsPositive() {
		return Credit
	}
	return Debit
}

// Amount is the non-zero side's value.
func (p Posting) Amount() decimal.Decimal {
	if p.Credit.IsPositive() {
		return p.Credit
	}
	return p.Debit
}

// Journal is an immutable business event.
type Journal struct {
	ID            string
	TransactionAt time.Time
	Description   string
	Reference     string
	Template      Template
	Postings      []Posting

	// Reverses names the journal this entry compensates, if any.
	Reverses string
}

// Totals sums both sides.
func (j Journal) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, p := range j.Postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	return debit, credit
}

// Balanced reports whether Σdebit equals Σcredit.
func (j Journal) Balanced() bool {
	d, c := j.Totals()
	return d.Equal(c)
}

// ValidatePostings checks the structural invariants of a journal body:
// at least two lines, no negative amounts, no line with both sides set,
// and equal totals at two decimal places.
func ValidatePostings(postings []Posting) error {
	if len(postings) < 2 {
		return &InvalidPostingError{Line: -1, Reason: "a journal needs at least two postings"}
	}

	debit, credit := decimal.Zero, decimal.Zero
	for i, p := range postings {
		if p.AccountCode == "" {
			return &InvalidPostingError{Line: i, Reason: "account code is required"}
		}
		if p.Debit.IsNegative() || p.Credit.IsNegative() {
			return &InvalidPostingError{Line: i, Reason: "amounts must not be negative"}
		}
		if p.Debit.IsPositive() && p.Credit.IsPositive() {
			return &InvalidPostingError{Line: i, Reason: "a posting cannot debit and credit at once"}
		}
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}

	if !debit.Round(2).Equal(credit.Round(2)) {
		return &UnbalancedEntryError{Debit: debit, Credit: credit}
	}
	return nil
}

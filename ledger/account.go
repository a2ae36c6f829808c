/*
Package ledger implements double-entry bookkeeping for the hotel.

PURPOSE:
  Every business event (a deposit, a checkout, a utility bill) becomes one
  Journal: an immutable record carrying two or more Postings against the chart
  of accounts. The sum of debits always equals the sum of credits.

KEY CONCEPTS:
  - Account: a chart-of-accounts entry, seeded by migration
  - Journal: one business event, identified as JNL-YYYYMMDD-NNN
  - Posting: one debit or credit line against one account
  - Template: a closed set of posting recipes (deposit, revenue, utility)

APPEND-ONLY:
  Journals are never updated or deleted. A correction is a new Journal whose
  Reverses field points at the entry it compensates.

SEE ALSO:
  - template.go: the posting recipes
  - ledger.go: Post, the only write path
*/
package ledger

// Category is the top-level classification of an account.
type Category string

const (
	CategoryAssets      Category = "Assets"
	CategoryLiabilities Category = "Liabilities"
	CategoryEquity      Category = "Equity"
	CategoryRevenue     Category = "Revenue"
	CategoryExpenses    Category = "Expenses"
)

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAssets, CategoryLiabilities, CategoryEquity, CategoryRevenue, CategoryExpenses:
		return true
	}
	return false
}

// Account codes referenced by the posting templates. The full chart is seeded
// by the store migrations.
const (
	AccountFrontCash        = "1010"
	AccountBank             = "1020"
	AccountVATPayable       = "2030"
	AccountCustomerDeposits = "2050"
	AccountRoomRevenue      = "4010"
	AccountUtilityRevenue   = "4020"
)

// Account is a chart-of-accounts entry.
type Account struct {
	Code        string
	Name        string
	Category    Category
	Subcategory string
}

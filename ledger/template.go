package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TEMPLATES - Closed set of posting recipes
// =============================================================================

// Template selects a posting recipe. The set is closed: there is no way to
// define a template at runtime.
type Template int

const (
	// DepositReceived records cash in for a new booking.
	// Dr Bank, Cr Customer deposits.
	DepositReceived Template = iota + 1

	// RevenueRecognition releases a deposit into revenue at checkout.
	// Dr Customer deposits (gross), Cr Room revenue (net), Cr VAT payable (tax).
	RevenueRecognition

	// UtilityIncome records a metered electricity and water charge.
	// Dr Bank, Cr Utility revenue.
	UtilityIncome
)

// share says which portion of the gross amount a leg carries.
type share int

const (
	shareGross share = iota
	shareNet
	shareTax
)

type leg struct {
	account string
	side    Side
	share   share
	memo    string
}

type recipe struct {
	name        string
	description string
	legs        []leg
}

var recipes = map[Template]recipe{
	DepositReceived: {
		name:        "deposit_received",
		description: "Deposit received",
		legs: []leg{
			{account: AccountBank, side: Debit, share: shareGross, memo: "cash in"},
			{account: AccountCustomerDeposits, side: Credit, share: shareGross, memo: "deposit held"},
		},
	},
	RevenueRecognition: {
		name:        "revenue_recognition",
		description: "Room revenue recognized",
		legs: []leg{
			{account: AccountCustomerDeposits, side: Debit, share: shareGross, memo: "deposit released"},
			{account: AccountRoomRevenue, side: Credit, share: shareNet, memo: "room revenue"},
			{account: AccountVATPayable, side: Credit, share: shareTax, memo: "output VAT"},
		},
	},
	UtilityIncome: {
		name:        "utility_income",
		description: "Utility charge",
		legs: []leg{
			{account: AccountBank, side: Debit, share: shareGross, memo: "utility payment"},
			{account: AccountUtilityRevenue, side: Credit, share: shareGross, memo: "utility revenue"},
		},
	},
}

// Templates lists every template in declaration order.
func Templates() []Template {
	return []Template{DepositReceived, RevenueRecognition, UtilityIncome}
}

// ParseTemplate resolves a template by its wire name.
func ParseTemplate(name string) (Template, error) {
	n := strings.TrimSpace(strings.ToLower(name))
	for t, r := range recipes {
		if r.name == n {
			return t, nil
		}
	}
	return 0, &UnknownTemplateError{Name: name}
}

func (t Template) String() string {
	if r, ok := recipes[t]; ok {
		return r.name
	}
	return fmt.Sprintf("template(%d)", int(t))
}

// Description is the default journal description for the template.
func (t Template) Description() string {
	return recipes[t].description
}

// Accounts returns the account codes touched by the template.
func (t Template) Accounts() []string {
	r := recipes[t]
	codes := make([]string, len(r.legs))
	for i, l := range r.legs {
		codes[i] = l.account
	}
	return codes
}

// MarshalText encodes the wire name.
func (t Template) MarshalText() ([]byte, error) {
	if _, ok := recipes[t]; !ok {
		return nil, &UnknownTemplateError{Name: t.String()}
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a wire name.
func (t *Template) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplate(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SplitVAT divides a VAT-inclusive gross amount into net and tax.
// net = round2(gross / (1 + rate)), tax = gross - net.
func SplitVAT(gross, rate decimal.Decimal) (net, tax decimal.Decimal) {
	gross = gross.Round(2)
	net = gross.DivRound(decimal.NewFromInt(1).Add(rate), 2)
	return net, gross.Sub(net)
}

// BuildPostings expands a template for a gross amount. Amounts are rounded to
// two decimal places before the split, so the legs always balance exactly.
func BuildPostings(t Template, amount, vatRate decimal.Decimal) ([]Posting, error) {
	r, ok := recipes[t]
	if !ok {
		return nil, &UnknownTemplateError{Name: t.String()}
	}
	if err := CheckAmount("amount", amount); err != nil {
		return nil, err
	}

	gross := amount.Round(2)
	net, tax := SplitVAT(gross, vatRate)

	postings := make([]Posting, 0, len(r.legs))
	for _, l := range r.legs {
		var value decimal.Decimal
		switch l.share {
		case shareNet:
			value = net
		case shareTax:
			value = tax
		default:
			value = gross
		}

		p := Posting{AccountCode: l.account, Memo: l.memo, Debit: decimal.Zero, Credit: decimal.Zero}
		if l.side == Debit {
			p.Debit = value
		} else {
			p.Credit = value
		}
		postings = append(postings, p)
	}
	return postings, nil
}

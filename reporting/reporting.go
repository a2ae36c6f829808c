/*
Package reporting derives financial statements from the ledger.

PURPOSE:
  Reports are read-only projections of journal postings. Each one is computed
  from a single snapshot of per-account totals, so a report never mixes
  states from before and after a concurrent write.

REPORTS:
  TrialBalance:    every account with total debit, total credit and balance
  IncomeStatement: revenue, expenses, net profit and profit margin

SEE ALSO:
  - store/sqlite/ledger.go: AccountTotals
*/
package reporting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/ledger"
)

// AccountTotal is the raw aggregate for one account.
type AccountTotal struct {
	Code     string
	Name     string
	Category ledger.Category
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// Reader supplies per-account totals read from one consistent snapshot.
type Reader interface {
	AccountTotals(ctx context.Context) ([]AccountTotal, error)
}

// TrialBalanceRow is one account line. Balance is debit minus credit.
type TrialBalanceRow struct {
	AccountTotal
	Balance decimal.Decimal
}

// TrialBalance lists every account in code order.
type TrialBalance struct {
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	InBalance   bool
}

// IncomeStatement summarizes profitability. ProfitMargin is a ratio
// (0.25 means 25%) and is zero when there is no revenue.
type IncomeStatement struct {
	Revenue      decimal.Decimal
	Expenses     decimal.Decimal
	NetProfit    decimal.Decimal
	ProfitMargin decimal.Decimal
}

// Service builds reports.
type Service struct {
	reader Reader
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(r Reader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: r, logger: logger}
}

// TrialBalance computes the trial balance.
func (s *Service) TrialBalance(ctx context.Context) (*TrialBalance, error) {
	totals, err := s.reader.AccountTotals(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "trial balance failed", slog.Any("error", err))
		return nil, fmt.Errorf("trial balance: %w", err)
	}
	tb := BuildTrialBalance(totals)
	if !tb.InBalance {
		s.logger.ErrorContext(ctx, "trial balance out of balance",
			slog.String("debit", tb.TotalDebit.StringFixed(2)),
			slog.String("credit", tb.TotalCredit.StringFixed(2)),
		)
	}
	return tb, nil
}

// IncomeStatement computes the income statement.
func (s *Service) IncomeStatement(ctx context.Context) (*IncomeStatement, error) {
	totals, err := s.reader.AccountTotals(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "income statement failed", slog.Any("error", err))
		return nil, fmt.Errorf("income statement: %w", err)
	}
	return BuildIncomeStatement(totals), nil
}

// BuildTrialBalance is the pure part of TrialBalance.
func BuildTrialBalance(totals []AccountTotal) *TrialBalance {
	tb := &TrialBalance{
		Rows:        make([]TrialBalanceRow, 0, len(totals)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, t := range totals {
		tb.Rows = append(tb.Rows, TrialBalanceRow{AccountTotal: t, Balance: t.Debit.Sub(t.Credit)})
		tb.TotalDebit = tb.TotalDebit.Add(t.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(t.Credit)
	}
	tb.InBalance = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb
}

// BuildIncomeStatement is the pure part of IncomeStatement.
func BuildIncomeStatement(totals []AccountTotal) *IncomeStatement {
	revenue, expenses := decimal.Zero, decimal.Zero
	for _, t := range totals {
		switch t.Category {
		case ledger.CategoryRevenue:
			revenue = revenue.Add(t.Credit.Sub(t.Debit))
		case ledger.CategoryExpenses:
			expenses = expenses.Add(t.Debit.Sub(t.Credit))
		}
	}

	net := revenue.Sub(expenses)
	margin := decimal.Zero
	if revenue.IsPositive() {
		margin = net.DivRound(revenue, 4)
	}
	return &IncomeStatement{
		Revenue:      revenue,
		Expenses:     expenses,
		NetProfit:    net,
		ProfitMargin: margin,
	}
}

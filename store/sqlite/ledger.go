package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/ledger"
	"github.com/warp/hotel-ledger/reporting"
)

// =============================================================================
// COUNTERS
// =============================================================================

func (ts *txStore) NextSequence(ctx context.Context, prefix string) (int, error) {
	var n int
	err := ts.q.QueryRowContext(ctx, `
		INSERT INTO id_counters (prefix, last_value) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`, prefix).Scan(&n)
	if err != nil {
		return 0, classify("next sequence", err)
	}
	return n, nil
}

func (ts *txStore) NextDailySequence(ctx context.Context, prefix string, day calendar.Date) (int, error) {
	var n int
	err := ts.q.QueryRowContext(ctx, `
		INSERT INTO daily_counters (prefix, day, last_value) VALUES (?, ?, 1)
		ON CONFLICT(prefix, day) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`, prefix, day.String()).Scan(&n)
	if err != nil {
		return 0, classify("next daily sequence", err)
	}
	return n, nil
}

// =============================================================================
// JOURNALS
// =============================================================================

// InsertJournal writes a journal and its postings. Both land in the caller's
// transaction.
func (ts *txStore) InsertJournal(ctx context.Context, j ledger.Journal) error {
	if len(j.Postings) == 0 {
		return fmt.Errorf("insert journal %s: no postings", j.ID)
	}

	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO journals (id, transaction_at, description, reference_id, template, reverses_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, j.ID, formatTime(j.TransactionAt), j.Description, j.Reference, j.Template.String(), nullString(j.Reverses))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("insert journal %s: %w", j.ID, booking.ErrConcurrentModification)
		}
		return classify("insert journal", err)
	}

	for i, p := range j.Postings {
		debit, err := toCents("debit", p.Debit)
		if err != nil {
			return err
		}
		credit, err := toCents("credit", p.Credit)
		if err != nil {
			return err
		}
		_, err = ts.q.ExecContext(ctx, `
			INSERT INTO journal_postings (journal_id, line_no, account_code, debit_cents, credit_cents, memo)
			VALUES (?, ?, ?, ?, ?, ?)
		`, j.ID, i+1, p.AccountCode, debit, credit, p.Memo)
		if err != nil {
			return classify(fmt.Sprintf("insert posting %d of %s", i+1, j.ID), err)
		}
	}
	return nil
}

// GetJournal loads a journal with its postings in line order.
func (s *Store) GetJournal(ctx context.Context, id string) (*ledger.Journal, error) {
	var out *ledger.Journal
	err := s.readTx(ctx, func(q querier) error {
		j, err := getJournal(ctx, q, id)
		out = j
		return err
	})
	return out, err
}

// JournalsByReference lists the journals posted for one business reference.
func (s *Store) JournalsByReference(ctx context.Context, reference string) ([]ledger.Journal, error) {
	var out []ledger.Journal
	err := s.readTx(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT id FROM journals WHERE reference_id = ? ORDER BY transaction_at, id`, reference)
		if err != nil {
			return classify("journals by reference", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan journal id: %w", err)
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return classify("journals by reference", err)
		}

		for _, id := range ids {
			j, err := getJournal(ctx, q, id)
			if err != nil {
				return err
			}
			if j != nil {
				out = append(out, *j)
			}
		}
		return nil
	})
	return out, err
}

func getJournal(ctx context.Context, q querier, id string) (*ledger.Journal, error) {
	var (
		j        ledger.Journal
		at       string
		tmpl     string
		reverses sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, transaction_at, description, reference_id, template, reverses_id
		FROM journals WHERE id = ?
	`, id).Scan(&j.ID, &at, &j.Description, &j.Reference, &tmpl, &reverses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get journal", err)
	}

	if j.TransactionAt, err = parseTime(at); err != nil {
		return nil, err
	}
	if j.Template, err = ledger.ParseTemplate(tmpl); err != nil {
		return nil, err
	}
	j.Reverses = reverses.String

	rows, err := q.QueryContext(ctx, `
		SELECT account_code, debit_cents, credit_cents, memo
		FROM journal_postings WHERE journal_id = ? ORDER BY line_no
	`, id)
	if err != nil {
		return nil, classify("get journal postings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p             ledger.Posting
			debit, credit int64
		)
		if err := rows.Scan(&p.AccountCode, &debit, &credit, &p.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		p.Debit = fromCents(debit)
		p.Credit = fromCents(credit)
		j.Postings = append(j.Postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("get journal postings", err)
	}
	return &j, nil
}

// =============================================================================
// ACCOUNTS AND REPORTS (reporting.Reader)
// =============================================================================

// ListAccounts returns the chart of accounts ordered by code.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.reader.QueryContext(ctx, `SELECT code, name, category, subcategory FROM accounts ORDER BY code`)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var (
			a        ledger.Account
			category string
		)
		if err := rows.Scan(&a.Code, &a.Name, &category, &a.Subcategory); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Category = ledger.Category(category)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountTotals sums postings per account in one snapshot. Accounts without
// postings are included with zero totals.
func (s *Store) AccountTotals(ctx context.Context) ([]reporting.AccountTotal, error) {
	var out []reporting.AccountTotal
	err := s.readTx(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT a.code, a.name, a.category,
			       COALESCE(SUM(p.debit_cents), 0),
			       COALESCE(SUM(p.credit_cents), 0)
			FROM accounts a
			LEFT JOIN journal_postings p ON p.account_code = a.code
			GROUP BY a.code, a.name, a.category
			ORDER BY a.code
		`)
		if err != nil {
			return classify("account totals", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t             reporting.AccountTotal
				category      string
				debit, credit int64
			)
			if err := rows.Scan(&t.Code, &t.Name, &category, &debit, &credit); err != nil {
				return fmt.Errorf("failed to scan account total: %w", err)
			}
			t.Category = ledger.Category(category)
			t.Debit = fromCents(debit)
			t.Credit = fromCents(credit)
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

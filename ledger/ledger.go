package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/calendar"
	"github.com/warp/hotel-ledger/idgen"
)

// Store persists journals. It is always the caller's transaction, so a journal
// lands together with the business change that produced it or not at all.
type Store interface {
	idgen.Sequencer
	InsertJournal(ctx context.Context, j Journal) error
}

// DefaultVATRate is the rate applied when none is configured.
var DefaultVATRate = decimal.RequireFromString("0.07")

// Ledger turns templates into persisted journals.
type Ledger struct {
	vatRate decimal.Decimal
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithVATRate sets the rate used by RevenueRecognition.
func WithVATRate(rate decimal.Decimal) Option {
	return func(l *Ledger) { l.vatRate = rate }
}

// WithClock overrides time.Now for journal timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{vatRate: DefaultVATRate, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// VATRate returns the configured rate.
func (l *Ledger) VATRate() decimal.Decimal {
	return l.vatRate
}

// Post builds, validates and persists one journal for template t.
// The journal id is drawn from the day-scoped JNL counter inside s.
func (l *Ledger) Post(ctx context.Context, s Store, t Template, amount decimal.Decimal, reference, note string) (Journal, error) {
	postings, err := BuildPostings(t, amount, l.vatRate)
	if err != nil {
		return Journal{}, err
	}
	if err := ValidatePostings(postings); err != nil {
		return Journal{}, err
	}

	at := l.now().UTC()
	id, err := idgen.Next(ctx, s, idgen.Daily, idgen.PrefixJournal, calendar.FromTime(at))
	if err != nil {
		return Journal{}, fmt.Errorf("allocate journal id: %w", err)
	}

	description := t.Description()
	if note = strings.TrimSpace(note); note != "" {
		description += ": " + note
	}

	j := Journal{
		ID:            id,
		TransactionAt: at,
		Description:   description,
		Reference:     reference,
		Template:      t,
		Postings:      postings,
	}
	if err := s.InsertJournal(ctx, j); err != nil {
		return Journal{}, fmt.Errorf("insert journal %s: %w", id, err)
	}
	return j, nil
}

/*
Package idgen formats human-readable identifiers for bookings and journals.

FORMATS:
  Sequential: {PREFIX}-{NNNNN}           e.g. RES-00042
  Daily:      {PREFIX}-{YYYYMMDD}-{NNN}  e.g. JNL-20260601-007

The counters themselves live in the store (id_counters and daily_counters
tables) and are advanced inside the caller's write transaction, so an id is
consumed only if the surrounding unit of work commits.

SEE ALSO:
  - store/sqlite/sqlite.go: NextSequence, NextDailySequence
*/
package idgen

import (
	"context"
	"fmt"

	"github.com/warp/hotel-ledger/calendar"
)

// Well-known prefixes.
const (
	PrefixBooking = "RES"
	PrefixJournal = "JNL"
)

// Mode selects the counter scope.
type Mode int

const (
	// Sequential numbers never reset.
	Sequential Mode = iota
	// Daily numbers restart at 1 every calendar day.
	Daily
)

// Sequencer advances counters. Implementations must be transactional.
type Sequencer interface {
	NextSequence(ctx context.Context, prefix string) (int, error)
	NextDailySequence(ctx context.Context, prefix string, day calendar.Date) (int, error)
}

// FormatSequential renders {PREFIX}-{NNNNN}.
func FormatSequential(prefix string, n int) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// FormatDaily renders {PREFIX}-{YYYYMMDD}-{NNN}.
func FormatDaily(prefix string, day calendar.Date, n int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Compact(), n)
}

// Next draws the next identifier for prefix in the given mode.
// day is only used by Daily mode.
func Next(ctx context.Context, seq Sequencer, mode Mode, prefix string, day calendar.Date) (string, error) {
	switch mode {
	case Sequential:
		n, err := seq.NextSequence(ctx, prefix)
		if err != nil {
			return "", fmt.Errorf("next %s sequence: %w", prefix, err)
		}
		return FormatSequential(prefix, n), nil
	case Daily:
		if day.IsZero() {
			return "", fmt.Errorf("next %s daily sequence: day is required", prefix)
		}
		n, err := seq.NextDailySequence(ctx, prefix, day)
		if err != nil {
			return "", fmt.Errorf("next %s daily sequence: %w", prefix, err)
		}
		return FormatDaily(prefix, day, n), nil
	default:
		return "", fmt.Errorf("unknown id mode %d", mode)
	}
}

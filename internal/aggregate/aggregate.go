// Package aggregate filters transactions by time range and derives the
// dashboard summary statistics from the retained set.
package aggregate

import (
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// Cutoff returns the earliest instant kept by r relative to now. The second
// result is false for RangeAll and unknown ranges, which apply no bound.
//
// Month and year steps are calendar-aware: the day is clamped to the length
// of the target month, so March 31 minus one month is the last day of
// February rather than early March.
func Cutoff(r core.TimeRange, now time.Time) (time.Time, bool) {
	switch r {
	case core.RangeWeek:
		return now.AddDate(0, 0, -7), true
	case core.RangeMonth:
		return subtractMonths(now, 1), true
	case core.RangeYear:
		return subtractMonths(now, 12), true
	default:
		return time.Time{}, false
	}
}

func subtractMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// wallClock reinterprets t's calendar fields in UTC. Ledger dates carry no
// zone, so both sides of a comparison are reduced to wall-clock time.
func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Filter keeps the transactions dated on or after the range cutoff, in input order.
func Filter(txs []core.Transaction, r core.TimeRange, now time.Time) []core.Transaction {
	cutoff, bounded := Cutoff(r, now)
	if !bounded {
		return txs
	}
	cutoff = wallClock(cutoff)

	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !wallClock(tx.Date.Time).Before(cutoff) {
			out = append(out, tx)
		}
	}
	return out
}

// Summarize computes the statistics for an already filtered set.
func Summarize(txs []core.Transaction) core.SummaryStats {
	total := decimal.Zero
	highest := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount)
		if tx.Amount.GreaterThan(highest) {
			highest = tx.Amount
		}
	}

	avg := decimal.Zero
	if n := len(txs); n > 0 {
		avg = total.Div(decimal.NewFromInt(int64(n)))
	}

	return core.SummaryStats{
		TotalSpent:         total,
		AverageTransaction: avg,
		HighestExpense:     highest,
		TransactionCount:   len(txs),
	}
}

// FilterAndSummarize applies the range filter and derives the statistics of
// the retained transactions. It never fails; the empty list yields zero stats.
func FilterAndSummarize(txs []core.Transaction, r core.TimeRange, now time.Time) ([]core.Transaction, core.SummaryStats) {
	filtered := Filter(txs, r, now)
	return filtered, Summarize(filtered)
}

// Package chart reshapes transactions into the series the dashboard plots.
package chart

import (
	"time"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// DailyWindow is the number of days in the daily spending series.
const DailyWindow = 30

const dailyLabelLayout = "Jan 2"

// Point is one labeled value of a series. Date is set for daily points only.
type Point struct {
	Label string          `json:"label"`
	Date  string          `json:"date,omitempty"`
	Value decimal.Decimal `json:"value"`
}

// Bundle holds the three series rendered by the dashboard.
type Bundle struct {
	Monthly    []Point `json:"monthly"`
	Categories []Point `json:"categories"`
	Daily      []Point `json:"daily"`
}

// Projector builds chart bundles with a fixed categorizer.
type Projector struct {
	categorizer *Categorizer
}

// NewProjector returns a projector using c, or the default rules when c is nil.
func NewProjector(c *Categorizer) *Projector {
	if c == nil {
		c = NewCategorizer(DefaultRules()...)
	}
	return &Projector{categorizer: c}
}

var defaultProjector = NewProjector(nil)

// Project builds the bundle with the default keyword categories.
func Project(filtered []core.Transaction, monthly []core.MonthlyExpenseEntry, now time.Time) Bundle {
	return defaultProjector.Project(filtered, monthly, now)
}

// Project builds the monthly, category and daily series for one render.
func (p *Projector) Project(filtered []core.Transaction, monthly []core.MonthlyExpenseEntry, now time.Time) Bundle {
	return Bundle{
		Monthly:    MonthlySeries(monthly),
		Categories: p.categorizer.Series(filtered),
		Daily:      DailySeries(filtered, now),
	}
}

// MonthlySeries passes the remote entries through in the order supplied.
func MonthlySeries(monthly []core.MonthlyExpenseEntry) []Point {
	out := make([]Point, 0, len(monthly))
	for _, m := range monthly {
		out = append(out, Point{Label: m.Month, Value: m.Total})
	}
	return out
}

// DailySeries returns exactly DailyWindow points for the days ending on
// now's date in now's location, oldest first. A transaction counts for its
// own calendar date; days without transactions are zero.
func DailySeries(txs []core.Transaction, now time.Time) []Point {
	byDay := make(map[string]decimal.Decimal, len(txs))
	for _, tx := range txs {
		key := tx.Day()
		byDay[key] = byDay[key].Add(tx.Amount)
	}

	y, m, d := now.Date()
	out := make([]Point, 0, DailyWindow)
	for i := DailyWindow - 1; i >= 0; i-- {
		day := time.Date(y, m, d-i, 0, 0, 0, 0, now.Location())
		key := day.Format(core.DayLayout)
		v, ok := byDay[key]
		if !ok {
			v = decimal.Zero
		}
		out = append(out, Point{Label: day.Format(dailyLabelLayout), Date: key, Value: v})
	}
	return out
}

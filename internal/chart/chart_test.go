package chart

import (
	"testing"
	"time"

	"finboard/internal/aggregate"
	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

var now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func tx(desc, amount string, at time.Time) core.Transaction {
	return core.Transaction{Description: desc, Amount: decimal.RequireFromString(amount), Date: core.Date{Time: at}}
}

func TestDailySeriesAlwaysThirty(t *testing.T) {
	inputs := [][]core.Transaction{
		nil,
		{tx("Grocery Store", "-124.50", now)},
		{tx("Way back", "5", now.AddDate(-1, 0, 0))},
	}
	for i, in := range inputs {
		got := DailySeries(in, now)
		if len(got) != DailyWindow {
			t.Fatalf("case %d: expected %d points, got %d", i, DailyWindow, len(got))
		}
		if got[0].Date != "2025-05-17" || got[29].Date != "2025-06-15" {
			t.Fatalf("case %d: unexpected window %s..%s", i, got[0].Date, got[29].Date)
		}
		if got[29].Label != "Jun 15" {
			t.Fatalf("case %d: label = %q", i, got[29].Label)
		}
	}
}

func TestDailySeriesBucketsByDay(t *testing.T) {
	in := []core.Transaction{
		tx("morning", "-10", time.Date(2025, 6, 15, 0, 5, 0, 0, time.UTC)),
		tx("night", "-2.5", time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)),
		tx("earlier", "40", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	got := DailySeries(in, now)

	byDate := map[string]decimal.Decimal{}
	for _, p := range got {
		byDate[p.Date] = p.Value
	}
	if !byDate["2025-06-15"].Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("today = %s", byDate["2025-06-15"])
	}
	if !byDate["2025-06-01"].Equal(decimal.NewFromInt(40)) {
		t.Fatalf("jun 1 = %s", byDate["2025-06-01"])
	}
	if !byDate["2025-06-02"].IsZero() {
		t.Fatalf("empty day should be zero, got %s", byDate["2025-06-02"])
	}
}

func TestDailySeriesUsesNowLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2025, 6, 16, 2, 0, 0, 0, ist)
	got := DailySeries(nil, late)
	if got[DailyWindow-1].Date != "2025-06-16" {
		t.Fatalf("series should end on the local date, got %s", got[DailyWindow-1].Date)
	}
}

func TestCategorize(t *testing.T) {
	c := NewCategorizer(DefaultRules()...)
	cases := map[string]string{
		"FOOD delivery":      "Food",
		"Monthly rent":       "Rent",
		"Public Transport":   "Transport",
		"Food and rent":      "Food",
		"Parental transport": "Rent",
		"Salary Deposit":     "Other",
		"":                   "Other",
	}
	for in, want := range cases {
		if got := c.Categorize(in); got != want {
			t.Errorf("Categorize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCategorySeries(t *testing.T) {
	in := []core.Transaction{
		tx("Salary Deposit", "3500", now),
		tx("Food truck", "-12.40", now),
		tx("Rent June", "-950", now),
		tx("fast food", "-7.60", now),
	}
	got := NewCategorizer(DefaultRules()...).Series(in)

	want := []struct {
		label string
		value string
	}{
		{"Other", "3500"},
		{"Food", "-20"},
		{"Rent", "-950"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d categories, got %+v", len(want), got)
	}
	for i, w := range want {
		if got[i].Label != w.label || !got[i].Value.Equal(decimal.RequireFromString(w.value)) {
			t.Errorf("point %d = %s %s, want %s %s", i, got[i].Label, got[i].Value, w.label, w.value)
		}
	}
}

func TestCategorySumsEqualTotal(t *testing.T) {
	in := []core.Transaction{
		tx("Grocery Store", "-124.50", now),
		tx("Salary Deposit", "3500.00", now.AddDate(0, 0, -1)),
		tx("Electric Bill", "-87.32", now.AddDate(0, 0, -3)),
		tx("Transport pass", "-45", now.AddDate(0, 0, -10)),
		tx("food", "-3.21", now.AddDate(0, -2, 0)),
	}
	for _, r := range core.TimeRanges() {
		filtered, stats := aggregate.FilterAndSummarize(in, r, now)
		bundle := Project(filtered, nil, now)

		sum := decimal.Zero
		for _, p := range bundle.Categories {
			sum = sum.Add(p.Value)
		}
		if !sum.Equal(stats.TotalSpent) {
			t.Fatalf("%s: category sum %s != total %s", r, sum, stats.TotalSpent)
		}
	}
}

func TestProjectMonthlyPassThrough(t *testing.T) {
	monthly := []core.MonthlyExpenseEntry{
		{Month: "2025-05", Total: decimal.NewFromInt(300)},
		{Month: "2025-03", Total: decimal.NewFromInt(100)},
		{Month: "2025-04", Total: decimal.NewFromInt(200)},
	}
	got := Project(nil, monthly, now)

	if len(got.Monthly) != 3 {
		t.Fatalf("expected 3 monthly points, got %d", len(got.Monthly))
	}
	for i, m := range monthly {
		if got.Monthly[i].Label != m.Month || !got.Monthly[i].Value.Equal(m.Total) {
			t.Fatalf("monthly point %d reordered or changed: %+v", i, got.Monthly[i])
		}
	}
	if len(got.Categories) != 0 {
		t.Fatalf("no transactions should give no categories")
	}
	if len(got.Daily) != DailyWindow {
		t.Fatalf("daily series length %d", len(got.Daily))
	}
}

func TestCustomRules(t *testing.T) {
	p := NewProjector(NewCategorizer(KeywordRule("Utilities", "bill")))
	got := p.Project([]core.Transaction{tx("Electric Bill", "-87.32", now), tx("Rent", "-1", now)}, nil, now)
	if len(got.Categories) != 2 || got.Categories[0].Label != "Utilities" || got.Categories[1].Label != "Other" {
		t.Fatalf("unexpected categories %+v", got.Categories)
	}
}

func TestConstructorDefaults(t *testing.T) {
	rules := []Rule{KeywordRule("Utilities", "bill")}
	c := NewCategorizer(rules...)
	rules[0] = KeywordRule("Changed", "bill")
	if got := c.Categorize("Water bill"); got != "Utilities" {
		t.Errorf("categorizer saw caller mutation: %q", got)
	}

	got := NewProjector(nil).Project([]core.Transaction{tx("Food market", "-5", now)}, nil, now)
	if len(got.Categories) != 1 || got.Categories[0].Label != "Food" {
		t.Errorf("nil categorizer should use default rules, got %+v", got.Categories)
	}
}

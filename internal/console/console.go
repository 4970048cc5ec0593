// Package console renders dashboard state in the terminal.
package console

import (
	"fmt"
	"io"
	"strings"

	"finboard/internal/chart"
	"finboard/internal/core"
	"finboard/internal/dashboard"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
)

const barWidth = 40

var (
	BrightCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	BrightGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	BrightRed    = color.New(color.FgRed, color.Bold).SprintFunc()
	BrightYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	Faint        = color.New(color.Faint).SprintFunc()
)

type Console struct {
	out         io.Writer
	currency    string
	interactive bool
}

// New writes to out. Spinners are shown only when interactive is set.
func New(out io.Writer, currency string, interactive bool) *Console {
	if currency == "" {
		currency = core.DefaultCurrencySymbol
	}
	return &Console{out: out, currency: currency, interactive: interactive}
}

// DisableColor turns off ANSI styling, for pipes and tests.
func DisableColor() {
	color.NoColor = true
	pterm.DisableColor()
}

func (c *Console) Info(format string, a ...any) {
	fmt.Fprint(c.out, pterm.Info.Sprintfln(format, a...))
}

func (c *Console) Warning(format string, a ...any) {
	fmt.Fprint(c.out, pterm.Warning.Sprintfln(format, a...))
}

func (c *Console) Error(format string, a ...any) {
	fmt.Fprint(c.out, pterm.Error.Sprintfln(format, a...))
}

func (c *Console) Success(format string, a ...any) {
	fmt.Fprint(c.out, pterm.Success.Sprintfln(format, a...))
}

// Status starts a spinner and returns the function that stops it.
func (c *Console) Status(message string) (stop func()) {
	if !c.interactive {
		return func() {}
	}
	spinner, err := pterm.DefaultSpinner.Start(message)
	if err != nil {
		return func() {}
	}
	return func() { _ = spinner.Stop() }
}

// Render prints the whole dashboard: summary, categories, monthly trend,
// the 30-day series and the transaction list.
func (c *Console) Render(st dashboard.State) {
	fmt.Fprintln(c.out, c.Sprint(st))
}

func (c *Console) Sprint(st dashboard.State) string {
	var b strings.Builder

	title := "Your dashboard"
	if st.UserName != "" {
		title = "Hello, " + st.UserName
	}
	fmt.Fprintf(&b, "%s  %s\n\n", BrightCyan(title), Faint("range: "+st.Range.Label()))

	for _, e := range st.Errors {
		b.WriteString(pterm.Warning.Sprintfln("%s could not be loaded (%v); showing the last known data", e.Source, e.Err))
	}
	if st.Empty() {
		b.WriteString(pterm.Info.Sprintfln("No transactions yet. Add one with: finboard add"))
		return b.String()
	}

	b.WriteString(c.summary(st.Stats))
	b.WriteString("\n")
	b.WriteString(c.categories(st.Charts.Categories))
	b.WriteString("\n")
	b.WriteString(c.TrendBars(st.Charts.Monthly))
	b.WriteString("\n")
	b.WriteString(c.daily(st.Charts.Daily))
	b.WriteString("\n")
	b.WriteString(c.transactions(st.Transactions))
	return b.String()
}

// Amount formats d with the currency, red for spending and green for income.
func (c *Console) Amount(d decimal.Decimal) string {
	s := core.FormatAmount(d, c.currency)
	switch {
	case d.IsNegative():
		return BrightRed(s)
	case d.IsPositive():
		return BrightGreen(s)
	default:
		return s
	}
}

func (c *Console) summary(s core.SummaryStats) string {
	data := pterm.TableData{
		{"Total", c.Amount(s.TotalSpent)},
		{"Average", core.FormatAmount(s.AverageTransaction, c.currency)},
		{"Highest", core.FormatAmount(s.HighestExpense, c.currency)},
		{"Transactions", fmt.Sprint(s.TransactionCount)},
	}
	table, _ := pterm.DefaultTable.WithData(data).Srender()
	return pterm.DefaultBox.WithTitle("Summary").WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).Sprint(table) + "\n"
}

func (c *Console) categories(points []chart.Point) string {
	if len(points) == 0 {
		return pterm.Info.Sprintfln("No transactions in this range")
	}
	data := pterm.TableData{{"Category", "Total"}}
	for _, p := range points {
		data = append(data, []string{p.Label, c.Amount(p.Value)})
	}
	return c.table(data)
}

// TrendBars draws one bar per month scaled to the largest absolute total.
func (c *Console) TrendBars(points []chart.Point) string {
	maxAbs := decimal.Zero
	for _, p := range points {
		if a := p.Value.Abs(); a.GreaterThan(maxAbs) {
			maxAbs = a
		}
	}
	if maxAbs.IsZero() {
		return pterm.Warning.Sprintfln("No monthly totals yet")
	}

	data := pterm.TableData{{"Month", "Total", ""}}
	for _, p := range points {
		n := int(p.Value.Abs().Div(maxAbs).Mul(decimal.NewFromInt(barWidth)).IntPart())
		bar := strings.Repeat("█", n)
		if p.Value.IsNegative() {
			bar = pterm.FgRed.Sprint(bar)
		} else {
			bar = pterm.FgGreen.Sprint(bar)
		}
		data = append(data, []string{p.Label, core.FormatAmount(p.Value, c.currency), bar})
	}
	table, _ := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	return pterm.DefaultBox.WithTitle("Monthly trend").WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).Sprint(table) + "\n"
}

func (c *Console) daily(points []chart.Point) string {
	data := pterm.TableData{{"Day", "Total"}}
	for _, p := range points {
		amount := Faint(core.FormatAmount(p.Value, c.currency))
		if !p.Value.IsZero() {
			amount = c.Amount(p.Value)
		}
		data = append(data, []string{p.Date, amount})
	}
	return c.table(data)
}

func (c *Console) transactions(txs []core.Transaction) string {
	data := pterm.TableData{{"Date", "Description", "Amount", "ID"}}
	for _, tx := range txs {
		data = append(data, []string{tx.Day(), tx.Description, c.Amount(tx.Amount), Faint(tx.ID)})
	}
	return c.table(data)
}

func (c *Console) table(data pterm.TableData) string {
	out, _ := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	return out + "\n"
}

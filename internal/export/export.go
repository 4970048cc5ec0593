// Package export writes a dashboard state to CSV, JSON or PDF report files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finboard/internal/chart"
	"finboard/internal/core"
	"finboard/internal/dashboard"

	"github.com/jung-kurt/gofpdf"
)

const (
	TypeCSV  = "csv"
	TypeJSON = "json"
	TypePDF  = "pdf"

	DefaultBaseName = "finboard_report"
)

// Exporter names files <base>_<timestamp>.<ext> inside dir.
type Exporter struct {
	dir      string
	base     string
	currency string
	now      func() time.Time
}

// New returns an exporter. Empty dir means the working directory.
func New(dir, base, currency string) *Exporter {
	if base == "" {
		base = DefaultBaseName
	}
	if currency == "" {
		currency = core.DefaultCurrencySymbol
	}
	return &Exporter{dir: dir, base: base, currency: currency, now: time.Now}
}

// ValidateTypes rejects report types other than csv, json and pdf.
func ValidateTypes(types []string) error {
	for _, t := range types {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case TypeCSV, TypeJSON, TypePDF:
		default:
			return fmt.Errorf("unsupported report type %q (use csv, json or pdf)", t)
		}
	}
	return nil
}

// Export writes one file per type and returns their absolute paths.
func (e *Exporter) Export(st dashboard.State, types []string) ([]string, error) {
	if err := ValidateTypes(types); err != nil {
		return nil, err
	}
	var paths []string
	for _, t := range types {
		var (
			path string
			err  error
		)
		switch strings.ToLower(strings.TrimSpace(t)) {
		case TypeCSV:
			path, err = e.CSV(st)
		case TypeJSON:
			path, err = e.JSON(st)
		case TypePDF:
			path, err = e.PDF(st)
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// CSV writes one row per transaction in the current range.
func (e *Exporter) CSV(st dashboard.State) (string, error) {
	name, err := e.filename(TypeCSV)
	if err != nil {
		return "", err
	}
	file, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	records := [][]string{{"ID", "Date", "Description", "Amount", "Category"}}
	for _, tx := range st.Transactions {
		records = append(records, []string{tx.ID, tx.Day(), tx.Description, tx.Amount.StringFixed(2), tx.CategoryName()})
	}
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("error writing CSV file: %w", err)
	}
	return filepath.Abs(name)
}

type report struct {
	Email        string                     `json:"email"`
	Range        core.TimeRange             `json:"range"`
	GeneratedAt  time.Time                  `json:"generatedAt"`
	Stats        core.SummaryStats          `json:"stats"`
	Categories   []chart.Point              `json:"categories"`
	Monthly      []core.MonthlyExpenseEntry `json:"monthly"`
	Transactions []core.Transaction         `json:"transactions"`
}

func (e *Exporter) JSON(st dashboard.State) (string, error) {
	name, err := e.filename(TypeJSON)
	if err != nil {
		return "", err
	}
	file, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("error creating JSON file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{
		Email:        st.Email,
		Range:        st.Range,
		GeneratedAt:  e.now().UTC(),
		Stats:        st.Stats,
		Categories:   st.Charts.Categories,
		Monthly:      st.Monthly,
		Transactions: st.Transactions,
	}); err != nil {
		return "", fmt.Errorf("error encoding JSON data: %w", err)
	}
	return filepath.Abs(name)
}

// PDF lays out the summary, category totals and transactions on A4 pages.
func (e *Exporter) PDF(st dashboard.State) (string, error) {
	name, err := e.filename(TypePDF)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	amount := func(tx core.Transaction) string { return tr(core.FormatAmount(tx.Amount, pdfSymbol(e.currency))) }

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, tr("Generated "+e.now().Format("2006-01-02 15:04")), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFillColor(30, 58, 138)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 14)
	title := "Finance report"
	if st.UserName != "" {
		title += " - " + st.UserName
	}
	pdf.CellFormat(0, 12, tr("  "+title), "", 1, "L", true, 0, "")
	pdf.SetTextColor(50, 50, 50)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("  %s, range %s", st.Email, st.Range.Label())), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.Cell(0, 8, tr(title))
		pdf.Ln(7)
		pdf.SetDrawColor(200, 200, 200)
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+190, pdf.GetY())
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(50, 50, 50)
	}
	row := func(cells []string, widths []float64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		for i, c := range cells {
			align := "L"
			if i == len(cells)-1 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, tr(c), "B", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	sym := pdfSymbol(e.currency)
	section("Summary")
	for _, kv := range [][2]string{
		{"Total", core.FormatAmount(st.Stats.TotalSpent, sym)},
		{"Average transaction", core.FormatAmount(st.Stats.AverageTransaction, sym)},
		{"Highest expense", core.FormatAmount(st.Stats.HighestExpense, sym)},
		{"Transactions", fmt.Sprint(st.Stats.TransactionCount)},
	} {
		row(kv[:], []float64{95, 95}, false)
	}
	pdf.Ln(6)

	if len(st.Charts.Categories) > 0 {
		section("By category")
		for _, p := range st.Charts.Categories {
			row([]string{p.Label, core.FormatAmount(p.Value, sym)}, []float64{95, 95}, false)
		}
		pdf.Ln(6)
	}

	section("Transactions")
	widths := []float64{30, 120, 40}
	row([]string{"Date", "Description", "Amount"}, widths, true)
	for _, tx := range st.Transactions {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(widths[0], 7, tx.Day(), "B", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(truncate(tx.Description, 70)), "B", 0, "L", false, 0, "")
		if tx.Amount.IsNegative() {
			pdf.SetTextColor(192, 0, 0)
		} else {
			pdf.SetTextColor(0, 128, 0)
		}
		pdf.CellFormat(widths[2], 7, amount(tx), "B", 1, "R", false, 0, "")
		pdf.SetTextColor(50, 50, 50)
	}

	if err := pdf.OutputFileAndClose(name); err != nil {
		return "", fmt.Errorf("error writing PDF file: %w", err)
	}
	return filepath.Abs(name)
}

func (e *Exporter) filename(ext string) (string, error) {
	dir := e.dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = cwd
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output directory '%s': %w", dir, err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", e.base, e.now().Format("20060102_150405"), ext)), nil
}

// pdfSymbol swaps symbols the core PDF fonts cannot draw for a text form.
func pdfSymbol(symbol string) string {
	switch symbol {
	case "₹":
		return "Rs."
	default:
		return symbol
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finboard/internal/chart"
	"finboard/internal/core"
	"finboard/internal/dashboard"

	"github.com/shopspring/decimal"
)

func sampleState() dashboard.State {
	food := "Food"
	st := dashboard.State{
		Email:    "asha@example.com",
		UserName: "Asha Rao",
		All: []core.Transaction{
			{ID: "t1", Description: "Grocery Store", Amount: decimal.RequireFromString("-124.50"), Date: core.NewDate(2025, 6, 14), Category: &food},
			{ID: "t2", Description: "Salary", Amount: decimal.RequireFromString("3000"), Date: core.NewDate(2025, 6, 1)},
		},
		Monthly: []core.MonthlyExpenseEntry{{Month: "2025-06", Total: decimal.RequireFromString("2875.50")}},
	}
	return st.Derive(core.RangeAll, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), chart.NewProjector(nil))
}

func newExporter(t *testing.T) *Exporter {
	t.Helper()
	e := New(filepath.Join(t.TempDir(), "reports"), "june", "")
	e.now = func() time.Time { return time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC) }
	return e
}

func TestExportAllTypes(t *testing.T) {
	e := newExporter(t)
	paths, err := e.Export(sampleState(), []string{"csv", "JSON", "pdf"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 files, got %v", paths)
	}
	for _, p := range paths {
		if !filepath.IsAbs(p) || !strings.Contains(filepath.Base(p), "june_20250615_093000") {
			t.Errorf("unexpected path %s", p)
		}
	}

	raw, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 || records[1][2] != "Grocery Store" || records[1][3] != "-124.50" || records[1][4] != "Food" {
		t.Fatalf("unexpected csv %v", records)
	}

	raw, err = os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var doc struct {
		Email string `json:"email"`
		Stats struct {
			TransactionCount int `json:"transactionCount"`
		} `json:"stats"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if doc.Email != "asha@example.com" || doc.Stats.TransactionCount != 2 || len(doc.Transactions) != 2 {
		t.Fatalf("unexpected json report %+v", doc)
	}

	raw, err = os.ReadFile(paths[2])
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Fatalf("pdf file does not start with a PDF header")
	}
}

func TestValidateTypes(t *testing.T) {
	if err := ValidateTypes([]string{"csv", " pdf "}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := ValidateTypes([]string{"xlsx"}); err == nil {
		t.Fatalf("xlsx should be rejected")
	}
	if _, err := newExporter(t).Export(sampleState(), []string{"csv", "xml"}); err == nil {
		t.Fatalf("export should validate before writing")
	}
}

func TestTruncateAndSymbol(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
	if pdfSymbol("₹") != "Rs." || pdfSymbol("€") != "€" {
		t.Fatalf("unexpected pdf symbols")
	}
}

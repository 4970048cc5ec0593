package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finboard/internal/apiserver"
	"finboard/internal/backend"
	"finboard/internal/console"
	"finboard/internal/ledger/memory"
	logpkg "finboard/internal/log"
	"finboard/internal/services"
)

var fixedNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

// newLedger starts an in-memory ledger API with one registered user.
func newLedger(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	logger := logpkg.New(logpkg.Config{Output: io.Discard})
	b := &backend.Backend{
		Transactions: services.NewTransactionService(store, nil, logger.Slog()),
		Users:        services.NewUserService(store),
		Ping:         func(context.Context) error { return nil },
	}
	ts := httptest.NewServer(apiserver.NewServer(":0", b, logger, 6000).Handler)
	t.Cleanup(ts.Close)

	body := `{"first_name":"Asha","last_name":"Rao","email":"asha@example.com","password":"correct horse"}`
	resp, err := http.Post(ts.URL+"/signup/", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status=%d", resp.StatusCode)
	}
	return ts
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DEFAULT_EMAIL", "")
	console.DisableColor()

	app := NewApp("test", nil)
	app.now = func() time.Time { return fixedNow }
	var out bytes.Buffer
	app.SetOutput(&out)
	app.SetArgs(args)
	err := app.Execute(context.Background())
	return out.String(), err
}

func TestAddRenderAndDelete(t *testing.T) {
	ts := newLedger(t)
	base := []string{"--api-url", ts.URL, "--email", "asha@example.com", "--no-color"}

	out, err := run(t, base...)
	if err != nil {
		t.Fatalf("empty dashboard: %v", err)
	}
	if !strings.Contains(out, "No transactions yet") {
		t.Fatalf("expected empty hint, got:\n%s", out)
	}

	out, err = run(t, append([]string{"add", "--description", "Grocery Store", "--amount", "-124.50", "--date", "2025-06-14"}, base...)...)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, want := range []string{"Transaction added", "Grocery Store", "-₹124.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("add output missing %q:\n%s", want, out)
		}
	}

	id := ""
	for _, f := range strings.Fields(out) {
		if f = strings.Trim(f, "()"); len(f) == 36 && strings.Count(f, "-") == 4 {
			id = f
			break
		}
	}
	if id == "" {
		t.Fatalf("no transaction id in output:\n%s", out)
	}

	out, err = run(t, append([]string{"delete", id}, base...)...)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Transaction deleted") || !strings.Contains(out, "No transactions yet") {
		t.Fatalf("unexpected delete output:\n%s", out)
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	ts := newLedger(t)
	base := []string{"--api-url", ts.URL, "--email", "asha@example.com"}

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"amount", []string{"--description", "x", "--amount", "abc"}, "invalid amount"},
		{"date", []string{"--description", "x", "--amount", "1", "--date", "15/06/2025"}, "invalid date"},
		{"future", []string{"--description", "x", "--amount", "1", "--date", "2025-06-16"}, "future"},
		{"zero", []string{"--description", "x", "--amount", "0"}, "amount"},
	}
	for _, tc := range cases {
		_, err := run(t, append(append([]string{"add"}, tc.args...), base...)...)
		if err == nil || !strings.Contains(strings.ToLower(err.Error()), tc.want) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSessionErrors(t *testing.T) {
	ts := newLedger(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no email", []string{"--api-url", ts.URL}, "email is required"},
		{"bad range", []string{"--api-url", ts.URL, "-e", "asha@example.com", "-r", "decade"}, "invalid range"},
		{"bad report", []string{"--api-url", ts.URL, "-e", "asha@example.com", "-y", "xlsx"}, "xlsx"},
		{"unknown user", []string{"--api-url", ts.URL, "-e", "ghost@example.com"}, "not found"},
	}
	for _, tc := range cases {
		_, err := run(t, tc.args...)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestExportReports(t *testing.T) {
	ts := newLedger(t)
	dir := t.TempDir()
	base := []string{"--api-url", ts.URL, "-e", "asha@example.com"}

	if _, err := run(t, append([]string{"add", "--description", "Salary", "--amount", "3000", "--date", "2025-06-01"}, base...)...); err != nil {
		t.Fatalf("add: %v", err)
	}
	out, err := run(t, append([]string{"-y", "csv,json", "-n", "june", "-d", dir}, base...)...)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Count(out, "Report saved") != 2 {
		t.Fatalf("expected two saved reports:\n%s", out)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "june_*.csv"))
	if len(matches) != 1 {
		t.Fatalf("expected one csv report, got %v", matches)
	}
	raw, err := os.ReadFile(matches[0])
	if err != nil || !strings.Contains(string(raw), "Salary") {
		t.Fatalf("csv report missing row: %q err=%v", raw, err)
	}
}

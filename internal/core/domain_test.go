package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in  string
		day string
		ok  bool
	}{
		{"2025-01-31", "2025-01-31", true},
		{"2025-01-31T23:59:59", "2025-01-31", true},
		{"2025-01-31T08:15:00.123456", "2025-01-31", true},
		{"2025-01-31T23:30:00+05:30", "2025-01-31", true},
		{"2025-01-31 10:00:00", "2025-01-31", true},
		{"31/01/2025", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || d.DayKey() != tc.day {
				t.Fatalf("%q expected day %s, got %s (err=%v)", tc.in, tc.day, d.DayKey(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestTransactionJSON(t *testing.T) {
	body := `{"id":"665f1","description":"Grocery Store","amount":-124.5,"date":"2025-03-02T18:45:00","user_id":"u1","category":null,"created_at":"2025-03-02T18:46:01.512000"}`
	var tx Transaction
	if err := json.Unmarshal([]byte(body), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("-124.50")) {
		t.Fatalf("amount = %s", tx.Amount)
	}
	if tx.Day() != "2025-03-02" {
		t.Fatalf("day = %s", tx.Day())
	}
	if tx.Category != nil || tx.CategoryName() != "" {
		t.Fatalf("expected no category, got %v", tx.Category)
	}

	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"amount":-124.5`) {
		t.Fatalf("amount should be a JSON number: %s", out)
	}
	if !strings.Contains(string(out), `"date":"2025-03-02T18:45:00"`) {
		t.Fatalf("unexpected date encoding: %s", out)
	}
}

func TestDraftValidate(t *testing.T) {
	good := NewTransactionDraft{
		Description: "Rent March",
		Amount:      decimal.RequireFromString("-950"),
		Date:        NewDate(2025, 3, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		draft NewTransactionDraft
		want  error
	}{
		{NewTransactionDraft{Description: " ", Amount: decimal.NewFromInt(1), Date: NewDate(2025, 1, 1)}, ErrEmptyDescription},
		{NewTransactionDraft{Description: strings.Repeat("x", 201), Amount: decimal.NewFromInt(1), Date: NewDate(2025, 1, 1)}, ErrDescriptionTooLong},
		{NewTransactionDraft{Description: "a", Amount: decimal.Zero, Date: NewDate(2025, 1, 1)}, ErrInvalidAmount},
		{NewTransactionDraft{Description: "a", Amount: decimal.NewFromInt(1)}, ErrInvalidDate},
	}
	for i, tc := range bads {
		if err := tc.draft.Validate(); err != tc.want {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}

	now := time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)
	if err := good.ValidateAt(now); err != ErrFutureDate {
		t.Fatalf("expected ErrFutureDate, got %v", err)
	}
	if (good.Reset() != NewTransactionDraft{}) {
		t.Fatalf("reset should return the empty draft")
	}
}

func TestDraftJSON(t *testing.T) {
	d := NewTransactionDraft{
		Description: "Bus pass",
		Amount:      decimal.RequireFromString("45.10"),
		Date:        NewDate(2025, 4, 9),
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"description":"Bus pass","amount":45.1,"date":"2025-04-09"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}

	var back NewTransactionDraft
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Description != d.Description || !back.Amount.Equal(d.Amount) || back.Date.DayKey() != "2025-04-09" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestTimeRange(t *testing.T) {
	if r, ok := ParseTimeRange(" Month "); !ok || r != RangeMonth {
		t.Fatalf("expected month, got %s ok=%v", r, ok)
	}
	if r, ok := ParseTimeRange("decade"); ok || r != RangeAll {
		t.Fatalf("unknown range should fall back to all, got %s ok=%v", r, ok)
	}
	if RangeWeek.Label() != "Week" {
		t.Fatalf("label = %q", RangeWeek.Label())
	}
	if len(TimeRanges()) != 4 {
		t.Fatalf("expected 4 ranges")
	}
}

func TestUserProfile(t *testing.T) {
	u := UserProfile{FirstName: "Asha ", LastName: "Rao", Email: "asha@example.com"}
	if u.DisplayName() != "Asha Rao" {
		t.Fatalf("display name = %q", u.DisplayName())
	}
	if err := u.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (UserProfile{FirstName: "A", LastName: "B", Email: "nope"}).Validate(); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

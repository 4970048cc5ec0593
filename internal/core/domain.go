package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
	RangeAll   TimeRange = "all"
)

// MaxDescriptionLength mirrors the limit enforced by the ledger API.
const MaxDescriptionLength = 200

type (
	// TimeRange bounds which transactions the dashboard considers.
	TimeRange string

	Transaction struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
		Category    *string         `json:"category,omitempty"`
		UserID      string          `json:"user_id,omitempty"`
		CreatedAt   *Date           `json:"created_at,omitempty"`
		UpdatedAt   *Date           `json:"updated_at,omitempty"`
	}

	// SummaryStats is always derived from the current filtered set, never stored.
	SummaryStats struct {
		TotalSpent         decimal.Decimal `json:"totalSpent"`
		AverageTransaction decimal.Decimal `json:"averageTransaction"`
		HighestExpense     decimal.Decimal `json:"highestExpense"`
		TransactionCount   int             `json:"transactionCount"`
	}

	// MonthlyExpenseEntry is pre-aggregated by the remote API.
	MonthlyExpenseEntry struct {
		Month string          `json:"month"`
		Total decimal.Decimal `json:"total"`
	}

	// NewTransactionDraft is the creation form state.
	NewTransactionDraft struct {
		Description string
		Amount      decimal.Decimal
		Date        Date
	}

	UserProfile struct {
		ID          string  `json:"id,omitempty"`
		FirstName   string  `json:"first_name"`
		LastName    string  `json:"last_name"`
		Email       string  `json:"email,omitempty"`
		PhoneNumber *string `json:"phone_number,omitempty"`
	}
)

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrFutureDate         = errors.New("date cannot be in the future")
	ErrEmptyName          = errors.New("first and last name are required")
	ErrInvalidEmail       = errors.New("invalid email")
)

func init() {
	// Amounts travel as JSON numbers on the remote API, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// TimeRanges lists the selector values in display order.
func TimeRanges() []TimeRange {
	return []TimeRange{RangeWeek, RangeMonth, RangeYear, RangeAll}
}

// ParseTimeRange maps user input to a TimeRange. Unknown input yields RangeAll and ok=false.
func ParseTimeRange(s string) (TimeRange, bool) {
	r := TimeRange(strings.ToLower(strings.TrimSpace(s)))
	if r.IsValid() {
		return r, true
	}
	return RangeAll, false
}

func (r TimeRange) IsValid() bool {
	switch r {
	case RangeWeek, RangeMonth, RangeYear, RangeAll:
		return true
	default:
		return false
	}
}

// Label returns the capitalized name used on buttons.
func (r TimeRange) Label() string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r TimeRange) String() string {
	return string(r)
}

// Day returns the wall-clock calendar day of the transaction, ignoring time of day.
func (t Transaction) Day() string {
	return t.Date.DayKey()
}

// CategoryName returns the server-side category, if any.
func (t Transaction) CategoryName() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// Reset returns the empty draft shown after a successful submission.
func (d NewTransactionDraft) Reset() NewTransactionDraft {
	return NewTransactionDraft{}
}

func (d NewTransactionDraft) Validate() error {
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if d.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if d.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON encodes the draft the way the creation form posts it: date only, amount as a number.
func (d NewTransactionDraft) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Description string      `json:"description"`
		Amount      json.Number `json:"amount"`
		Date        string      `json:"date"`
	}{
		Description: d.Description,
		Amount:      json.Number(d.Amount.String()),
		Date:        d.Date.DayKey(),
	})
}

func (d *NewTransactionDraft) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Date        Date            `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Description = raw.Description
	d.Amount = raw.Amount
	d.Date = raw.Date
	return nil
}

// DisplayName is the greeting name shown on the dashboard.
func (u UserProfile) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

func (u UserProfile) Validate() error {
	if strings.TrimSpace(u.FirstName) == "" || strings.TrimSpace(u.LastName) == "" {
		return ErrEmptyName
	}
	return ValidateEmail(u.Email)
}

// ValidateEmail accepts anything shaped like local@domain.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateAt also rejects dates after now's calendar day. Days are compared
// rather than instants because drafts usually carry no time of day.
func (d NewTransactionDraft) ValidateAt(now time.Time) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Date.DayKey() > now.Format(DayLayout) {
		return ErrFutureDate
	}
	return nil
}

package core

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const (
	DayLayout      = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// Date is a calendar date with an optional time of day. Values without a zone are read as UTC.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	dateTimeLayout,
	"2006-01-02 15:04:05",
	DayLayout,
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts the date forms emitted by the ledger API and by HTML date inputs.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// DayKey is the wall-clock day in the date's own location, e.g. "2025-01-31".
func (d Date) DayKey() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DayLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateTimeLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

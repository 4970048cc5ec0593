// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing signed decimal amounts from form
// input and formatting them for display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbol is the symbol the dashboard prints in front of amounts.
const DefaultCurrencySymbol = "₹"

// ParseAmount converts a decimal string to a signed amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign. Zero is a valid parse result; callers that need a
// non-zero amount check it during validation.
//
// Examples:
//
//	ParseAmount("12.34")   -> 12.34, nil
//	ParseAmount("-87,32")  -> -87.32, nil
//	ParseAmount("1.2.3")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" || strings.ContainsAny(body, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimals, e.g. "₹1096.06" or "-₹124.50".
func FormatAmount(d decimal.Decimal, symbol string) string {
	if d.IsNegative() {
		return "-" + symbol + d.Abs().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}

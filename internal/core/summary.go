package core

import "github.com/shopspring/decimal"

// CategorySpending is an amount aggregated by the server-side category field.
type CategorySpending struct {
	Category *string         `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// DailySpending is the total for one calendar day.
type DailySpending struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

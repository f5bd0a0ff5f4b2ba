package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tracking is a single intraday price observation. Rows are append-only and
// never merged.
type Tracking struct {
	ID        int             `json:"id"`
	DailyID   int             `json:"daily_id"`
	StockID   int             `json:"stock_id"`
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

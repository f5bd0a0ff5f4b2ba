package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Daily represents one row of the per-day aggregate table: one row per
// (stock, trading date).
type Daily struct {
	ID           int              `json:"id"`
	StockID      int              `json:"stock_id"`
	Symbol       string           `json:"symbol"`
	Date         time.Time        `json:"date"`
	OpeningPrice *decimal.Decimal `json:"opening_price,omitempty"`
	ClosingPrice *decimal.Decimal `json:"closing_price,omitempty"`
	MaxPrice     *decimal.Decimal `json:"max_price,omitempty"`
	MinPrice     *decimal.Decimal `json:"min_price,omitempty"`
	Volume       *int64           `json:"volume,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// DailyFields is a partial update for a daily row. Only non-nil fields are
// written; the opening and closing jobs each own a disjoint subset so neither
// clobbers the other's columns.
type DailyFields struct {
	OpeningPrice *decimal.Decimal
	ClosingPrice *decimal.Decimal
	MaxPrice     *decimal.Decimal
	MinPrice     *decimal.Decimal
	Volume       *int64
}

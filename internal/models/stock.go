package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock represents one row of the symbol registry.
type Stock struct {
	ID                      int              `json:"id"`
	Symbol                  string           `json:"symbol"`
	AvgDailyVolume          *int64           `json:"avg_daily_volume,omitempty"`
	AvgDailyMinPrice        *decimal.Decimal `json:"avg_daily_min_price,omitempty"`
	AvgDailyMaxPrice        *decimal.Decimal `json:"avg_daily_max_price,omitempty"`
	BeginningOfYearPrice    *decimal.Decimal `json:"beginning_of_year_price,omitempty"`
	PreviousDayOpeningPrice *decimal.Decimal `json:"previous_day_opening_price,omitempty"`
	PreviousDayClosingPrice *decimal.Decimal `json:"previous_day_closing_price,omitempty"`
	Exchange                string           `json:"exchange,omitempty"`
	StockCap                string           `json:"stock_cap,omitempty"`
	StockType               string           `json:"stock_type,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at"`
}

// StockRef is the (id, symbol) pair the capture jobs iterate over.
type StockRef struct {
	ID     int    `json:"id"`
	Symbol string `json:"symbol"`
}

// ReferenceData carries the slow-changing per-symbol fields produced by a
// reference fetch. Nil fields were not provided by the upstream source and
// must not overwrite previously stored values.
type ReferenceData struct {
	Symbol                  string
	AvgDailyVolume          *int64
	AvgDailyMinPrice        *decimal.Decimal
	AvgDailyMaxPrice        *decimal.Decimal
	BeginningOfYearPrice    *decimal.Decimal
	PreviousDayOpeningPrice *decimal.Decimal
	PreviousDayClosingPrice *decimal.Decimal
	Exchange                *string
	StockCap                *string
	StockType               *string
}

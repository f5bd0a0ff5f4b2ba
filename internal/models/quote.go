package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a single OHLCV observation from an upstream source, either one
// intraday sample or one daily bar.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
}

// SessionSnapshot summarizes one trading session: the closing price plus the
// session's high, low and total volume.
type SessionSnapshot struct {
	ClosingPrice decimal.Decimal
	MaxPrice     decimal.Decimal
	MinPrice     decimal.Decimal
	Volume       int64
}

// MarketEvent is published to Kafka when the service records data.
type MarketEvent struct {
	EventType string           `json:"event_type"`
	Symbol    string           `json:"symbol,omitempty"`
	Job       string           `json:"job,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

// ErrNoDaily indicates no daily aggregate row exists for the requested
// (stock, date). Intraday ticks require one; callers skip the symbol.
var ErrNoDaily = errors.New("no daily row for stock and date")

// AppendTick inserts one intraday price observation. Ticks are append-only:
// they are never updated or merged, and the foreign key rejects a dailyID
// that does not resolve to an existing daily row.
func (db *DB) AppendTick(dailyID, stockID int, symbol string, timestamp time.Time, price decimal.Decimal) error {
	query := `
		INSERT INTO tracking (daily_id, stock_id, symbol, timestamp, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.conn.Exec(query, dailyID, stockID, symbol, timestamp, price, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append tick for %s: %w", symbol, err)
	}
	return nil
}

// GetTicks retrieves ticks for a daily row ordered by timestamp
func (db *DB) GetTicks(dailyID int) ([]*models.Tracking, error) {
	query := `
		SELECT id, daily_id, stock_id, symbol, timestamp, price, created_at
		FROM tracking
		WHERE daily_id = $1
		ORDER BY timestamp
	`
	rows, err := db.conn.Query(query, dailyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticks: %w", err)
	}
	defer rows.Close()

	var ticks []*models.Tracking
	for rows.Next() {
		var t models.Tracking
		if err := rows.Scan(&t.ID, &t.DailyID, &t.StockID, &t.Symbol, &t.Timestamp, &t.Price, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		ticks = append(ticks, &t)
	}

	return ticks, rows.Err()
}

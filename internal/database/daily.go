package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stanhq/svcmarket/internal/models"
)

// UpsertDailyFields reconciles a partial observation against the daily
// aggregate for (stockID, date) in a single write. The first job of the day
// creates the row with its fields; later jobs merge in only the non-nil
// fields, so the opening and closing captures never clobber each other.
// Returns the daily row id.
func (db *DB) UpsertDailyFields(stockID int, symbol string, date time.Time, fields *models.DailyFields) (int, error) {
	query := `
		INSERT INTO daily (
			stock_id, symbol, date, opening_price, closing_price,
			max_price, min_price, volume, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (stock_id, date) DO UPDATE SET
			opening_price = COALESCE(EXCLUDED.opening_price, daily.opening_price),
			closing_price = COALESCE(EXCLUDED.closing_price, daily.closing_price),
			max_price = COALESCE(EXCLUDED.max_price, daily.max_price),
			min_price = COALESCE(EXCLUDED.min_price, daily.min_price),
			volume = COALESCE(EXCLUDED.volume, daily.volume),
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	var id int
	err := db.conn.QueryRow(query,
		stockID, symbol, date, fields.OpeningPrice, fields.ClosingPrice,
		fields.MaxPrice, fields.MinPrice, fields.Volume, time.Now(),
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert daily fields for %s: %w", symbol, err)
	}
	return id, nil
}

// GetDailyID returns the daily row id for (stockID, date), or ErrNoDaily when
// no row exists. The intraday job uses this to decide whether a tick has a
// session to attach to.
func (db *DB) GetDailyID(stockID int, date time.Time) (int, error) {
	query := `
		SELECT id FROM daily
		WHERE stock_id = $1 AND date = $2
		LIMIT 1
	`
	var id int
	err := db.conn.QueryRow(query, stockID, date).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNoDaily
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get daily row for stock %d: %w", stockID, err)
	}
	return id, nil
}

// GetDaily retrieves a full daily row by (stockID, date)
func (db *DB) GetDaily(stockID int, date time.Time) (*models.Daily, error) {
	query := `
		SELECT id, stock_id, symbol, date, opening_price, closing_price,
		       max_price, min_price, volume, created_at, updated_at
		FROM daily
		WHERE stock_id = $1 AND date = $2
	`
	var d models.Daily
	var opening, closing, maxP, minP sql.NullString
	var volume sql.NullInt64

	err := db.conn.QueryRow(query, stockID, date).Scan(
		&d.ID, &d.StockID, &d.Symbol, &d.Date, &opening, &closing,
		&maxP, &minP, &volume, &d.CreatedAt, &d.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("daily row not found for stock %d on %s", stockID, date.Format("2006-01-02"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily row: %w", err)
	}

	d.OpeningPrice = nullDecimal(opening)
	d.ClosingPrice = nullDecimal(closing)
	d.MaxPrice = nullDecimal(maxP)
	d.MinPrice = nullDecimal(minP)
	if volume.Valid {
		d.Volume = &volume.Int64
	}

	return &d, nil
}

// CountDailyRows returns the number of daily rows for a stock on a date.
// Used by tests to assert the one-row-per-(stock, date) invariant.
func (db *DB) CountDailyRows(stockID int, date time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM daily WHERE stock_id = $1 AND date = $2`,
		stockID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily rows: %w", err)
	}
	return count, nil
}

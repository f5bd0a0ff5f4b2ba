package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

// UpsertReference reconciles a reference fetch against the symbol registry in
// a single write. An unknown symbol gets a new row; a known symbol has only
// the non-nil fields of ref updated, so values a later fetch omits are kept.
// Returns the stock id.
func (db *DB) UpsertReference(ref *models.ReferenceData) (int, error) {
	query := `
		INSERT INTO stocks (
			symbol, avg_daily_volume, avg_daily_min_price, avg_daily_max_price,
			beginning_of_year_price, previous_day_opening_price,
			previous_day_closing_price, exchange, stock_cap, stock_type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (symbol) DO UPDATE SET
			avg_daily_volume = COALESCE(EXCLUDED.avg_daily_volume, stocks.avg_daily_volume),
			avg_daily_min_price = COALESCE(EXCLUDED.avg_daily_min_price, stocks.avg_daily_min_price),
			avg_daily_max_price = COALESCE(EXCLUDED.avg_daily_max_price, stocks.avg_daily_max_price),
			beginning_of_year_price = COALESCE(EXCLUDED.beginning_of_year_price, stocks.beginning_of_year_price),
			previous_day_opening_price = COALESCE(EXCLUDED.previous_day_opening_price, stocks.previous_day_opening_price),
			previous_day_closing_price = COALESCE(EXCLUDED.previous_day_closing_price, stocks.previous_day_closing_price),
			exchange = COALESCE(EXCLUDED.exchange, stocks.exchange),
			stock_cap = COALESCE(EXCLUDED.stock_cap, stocks.stock_cap),
			stock_type = COALESCE(EXCLUDED.stock_type, stocks.stock_type),
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	var id int
	err := db.conn.QueryRow(query,
		ref.Symbol, ref.AvgDailyVolume, ref.AvgDailyMinPrice, ref.AvgDailyMaxPrice,
		ref.BeginningOfYearPrice, ref.PreviousDayOpeningPrice,
		ref.PreviousDayClosingPrice, ref.Exchange, ref.StockCap, ref.StockType,
		time.Now(),
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to upsert reference for %s: %w", ref.Symbol, err)
	}
	return id, nil
}

// ListStocks returns all (id, symbol) pairs ordered by symbol
func (db *DB) ListStocks() ([]models.StockRef, error) {
	query := `
		SELECT id, symbol
		FROM stocks
		WHERE symbol IS NOT NULL
		ORDER BY symbol
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []models.StockRef
	for rows.Next() {
		var s models.StockRef
		if err := rows.Scan(&s.ID, &s.Symbol); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}

	return stocks, rows.Err()
}

// GetStock retrieves a full registry row by symbol
func (db *DB) GetStock(symbol string) (*models.Stock, error) {
	query := `
		SELECT id, symbol, avg_daily_volume, avg_daily_min_price, avg_daily_max_price,
		       beginning_of_year_price, previous_day_opening_price,
		       previous_day_closing_price, exchange, stock_cap, stock_type,
		       created_at, updated_at
		FROM stocks
		WHERE symbol = $1
	`
	var s models.Stock
	var avgVolume sql.NullInt64
	var avgMin, avgMax, yearStart, prevOpen, prevClose sql.NullString
	var exchange, stockCap, stockType sql.NullString

	err := db.conn.QueryRow(query, symbol).Scan(
		&s.ID, &s.Symbol, &avgVolume, &avgMin, &avgMax,
		&yearStart, &prevOpen, &prevClose, &exchange, &stockCap, &stockType,
		&s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock not found: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	if avgVolume.Valid {
		s.AvgDailyVolume = &avgVolume.Int64
	}
	s.AvgDailyMinPrice = nullDecimal(avgMin)
	s.AvgDailyMaxPrice = nullDecimal(avgMax)
	s.BeginningOfYearPrice = nullDecimal(yearStart)
	s.PreviousDayOpeningPrice = nullDecimal(prevOpen)
	s.PreviousDayClosingPrice = nullDecimal(prevClose)
	if exchange.Valid {
		s.Exchange = exchange.String
	}
	if stockCap.Valid {
		s.StockCap = stockCap.String
	}
	if stockType.Valid {
		s.StockType = stockType.String
	}

	return &s, nil
}

// GetAllStocks retrieves all registry rows ordered by symbol
func (db *DB) GetAllStocks() ([]*models.Stock, error) {
	refs, err := db.ListStocks()
	if err != nil {
		return nil, err
	}

	stocks := make([]*models.Stock, 0, len(refs))
	for _, ref := range refs {
		s, err := db.GetStock(ref.Symbol)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, nil
}

func nullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

package quotes

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

// fallbackBarDays is how many daily bars the closing snapshot fallback asks
// for; the last one is the most recent completed session.
const fallbackBarDays = 2

// Fetcher derives job-level observations from an ordered list of sources.
// Each fetch tries the sources in order until one returns usable data; when
// all fail the result is ErrNotAvailable, never a raised provider error.
type Fetcher struct {
	sources         []Source
	cache           *PriceCache
	closingFallback bool
}

// NewFetcher creates a fetcher over the given sources, in fallback order.
// cache may be nil. closingFallback controls whether a closing snapshot may
// fall back to the last daily bar when the intraday series is empty.
func NewFetcher(sources []Source, cache *PriceCache, closingFallback bool) *Fetcher {
	return &Fetcher{
		sources:         sources,
		cache:           cache,
		closingFallback: closingFallback,
	}
}

// ReferenceProfile fetches the slow-changing reference fields for a symbol
func (f *Fetcher) ReferenceProfile(ctx context.Context, symbol string) (*models.ReferenceData, error) {
	for _, src := range f.sources {
		ref, err := src.ReferenceProfile(ctx, symbol)
		if err == nil {
			return ref, nil
		}
		log.Printf("Reference profile for %s unavailable from %s: %v", symbol, src.Name(), err)
	}
	return nil, fmt.Errorf("%w: reference profile for %s", ErrNotAvailable, symbol)
}

// OpeningPrice returns today's opening price: the open of the first intraday
// sample of the day.
func (f *Fetcher) OpeningPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	for _, src := range f.sources {
		bars, err := src.IntradaySeries(ctx, symbol)
		if err != nil || len(bars) == 0 {
			log.Printf("Intraday series for %s unavailable from %s", symbol, src.Name())
			continue
		}
		return bars[0].Open.Round(2), nil
	}
	return decimal.Zero, fmt.Errorf("%w: opening price for %s", ErrNotAvailable, symbol)
}

// ClosingSnapshot returns the session's closing price, high, low and total
// volume, aggregated from the intraday series. When the series is empty and
// the fallback policy allows it, the most recent daily bar is used instead.
func (f *Fetcher) ClosingSnapshot(ctx context.Context, symbol string) (*models.SessionSnapshot, error) {
	for _, src := range f.sources {
		bars, err := src.IntradaySeries(ctx, symbol)
		if err == nil && len(bars) > 0 {
			return aggregateSession(bars), nil
		}

		if !f.closingFallback {
			continue
		}

		daily, err := src.DailyBars(ctx, symbol, fallbackBarDays)
		if err != nil || len(daily) == 0 {
			log.Printf("Closing data for %s unavailable from %s", symbol, src.Name())
			continue
		}
		last := daily[len(daily)-1]
		return &models.SessionSnapshot{
			ClosingPrice: last.Close.Round(2),
			MaxPrice:     last.High.Round(2),
			MinPrice:     last.Low.Round(2),
			Volume:       last.Volume,
		}, nil
	}
	return nil, fmt.Errorf("%w: closing snapshot for %s", ErrNotAvailable, symbol)
}

// CurrentPrice returns the most recent traded price, consulting the cache
// before the sources.
func (f *Fetcher) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if price, ok := f.cache.Get(ctx, symbol); ok {
		return price, nil
	}

	for _, src := range f.sources {
		price, err := src.CurrentPrice(ctx, symbol)
		if err != nil {
			log.Printf("Current price for %s unavailable from %s: %v", symbol, src.Name(), err)
			continue
		}
		if err := f.cache.Set(ctx, symbol, price); err != nil {
			log.Printf("Failed to cache price for %s: %v", symbol, err)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: current price for %s", ErrNotAvailable, symbol)
}

// aggregateSession reduces intraday bars to close / high / low / volume
func aggregateSession(bars []models.Bar) *models.SessionSnapshot {
	snap := &models.SessionSnapshot{
		ClosingPrice: bars[len(bars)-1].Close.Round(2),
		MaxPrice:     bars[0].High,
		MinPrice:     bars[0].Low,
	}
	for _, b := range bars {
		if b.High.GreaterThan(snap.MaxPrice) {
			snap.MaxPrice = b.High
		}
		if b.Low.LessThan(snap.MinPrice) {
			snap.MinPrice = b.Low
		}
		snap.Volume += b.Volume
	}
	snap.MaxPrice = snap.MaxPrice.Round(2)
	snap.MinPrice = snap.MinPrice.Round(2)
	return snap
}

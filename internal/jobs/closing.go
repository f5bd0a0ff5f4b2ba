package jobs

import (
	"context"
	"log"

	"github.com/stanhq/svcmarket/internal/models"
)

// RunClosingCapture records the session's closing price, high, low and total
// volume for every registered stock, merging into today's daily row and the
// previous-day closing field on the registry row.
func (r *Runner) RunClosingCapture(ctx context.Context, force bool) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !force && !(r.cal.IsTradingDay(now) && r.cal.WithinWindow(now, r.cfg.ClosingWindowStart, r.cfg.ClosingWindowEnd)) {
		return skipped(JobNameClosing, "outside closing window or market closed"), nil
	}

	if err := r.checkStore(); err != nil {
		return nil, err
	}

	stocks, err := r.listStocks()
	if err != nil {
		return nil, err
	}

	today := r.cal.Today(now)
	summary := &Summary{Job: JobNameClosing, TotalProcessed: len(stocks)}
	for _, stock := range stocks {
		snap, err := r.fetcher.ClosingSnapshot(ctx, stock.Symbol)
		if err != nil {
			log.Printf("Failed to fetch closing snapshot for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}

		closing := snap.ClosingPrice
		ref := &models.ReferenceData{
			Symbol:                  stock.Symbol,
			PreviousDayClosingPrice: &closing,
		}
		if _, err := r.store.UpsertReference(ref); err != nil {
			log.Printf("Failed to store closing price for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}

		fields := &models.DailyFields{
			ClosingPrice: &snap.ClosingPrice,
			MaxPrice:     &snap.MaxPrice,
			MinPrice:     &snap.MinPrice,
			Volume:       &snap.Volume,
		}
		if _, err := r.store.UpsertDailyFields(stock.ID, stock.Symbol, today, fields); err != nil {
			log.Printf("Failed to store daily closing for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
		} else {
			summary.SuccessCount++
		}
		r.throttle()
	}

	r.finish(ctx, summary)
	return summary, nil
}

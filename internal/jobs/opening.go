package jobs

import (
	"context"
	"log"

	"github.com/stanhq/svcmarket/internal/models"
)

// RunOpeningCapture records today's opening price for every registered stock.
// Each capture lands in two places: the daily row for today and the
// previous-day opening field on the registry row.
func (r *Runner) RunOpeningCapture(ctx context.Context, force bool) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !force && !(r.cal.IsTradingDay(now) && r.cal.WithinWindow(now, r.cfg.OpeningWindowStart, r.cfg.OpeningWindowEnd)) {
		return skipped(JobNameOpening, "outside opening window or market closed"), nil
	}

	if err := r.checkStore(); err != nil {
		return nil, err
	}

	stocks, err := r.listStocks()
	if err != nil {
		return nil, err
	}

	today := r.cal.Today(now)
	summary := &Summary{Job: JobNameOpening, TotalProcessed: len(stocks)}
	for _, stock := range stocks {
		price, err := r.fetcher.OpeningPrice(ctx, stock.Symbol)
		if err != nil {
			log.Printf("Failed to fetch opening price for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}

		ref := &models.ReferenceData{
			Symbol:                  stock.Symbol,
			PreviousDayOpeningPrice: &price,
		}
		if _, err := r.store.UpsertReference(ref); err != nil {
			log.Printf("Failed to store opening price for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}

		fields := &models.DailyFields{OpeningPrice: &price}
		if _, err := r.store.UpsertDailyFields(stock.ID, stock.Symbol, today, fields); err != nil {
			log.Printf("Failed to store daily opening for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
		} else {
			summary.SuccessCount++
		}
		r.throttle()
	}

	r.finish(ctx, summary)
	return summary, nil
}

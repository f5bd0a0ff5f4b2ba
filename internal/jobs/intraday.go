package jobs

import (
	"context"
	"errors"
	"log"

	"github.com/stanhq/svcmarket/internal/database"
)

// progressEvery controls how often the intraday loop logs its position
// through a large registry.
const progressEvery = 200

// RunIntradayCapture appends a current-price tick for every registered stock.
// Ticks attach to today's daily row; a stock without one (listed after the
// opening capture, or an opening fetch that failed) is skipped silently so
// the tick history never references a session that was not recorded. force
// bypasses the time gate but not that precondition.
func (r *Runner) RunIntradayCapture(ctx context.Context, force bool) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !force {
		if !r.cal.IsTradingDay(now) || !r.cal.WithinSession(now, r.cfg.SessionOpen, r.cfg.SessionClose) {
			return skipped(JobNameIntraday, "market is closed"), nil
		}
		if !r.cal.OnInterval(now, r.cfg.TrackingInterval) {
			return skipped(JobNameIntraday, "not on tracking interval"), nil
		}
	}

	if err := r.checkStore(); err != nil {
		return nil, err
	}

	stocks, err := r.listStocks()
	if err != nil {
		return nil, err
	}

	today := r.cal.Today(now)
	summary := &Summary{Job: JobNameIntraday, TotalProcessed: len(stocks)}
	for i, stock := range stocks {
		if i > 0 && i%progressEvery == 0 {
			log.Printf("Intraday capture progress: %d/%d", i, len(stocks))
		}

		dailyID, err := r.store.GetDailyID(stock.ID, today)
		if errors.Is(err, database.ErrNoDaily) {
			continue
		}
		if err != nil {
			log.Printf("Failed to look up daily row for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			continue
		}

		price, err := r.fetcher.CurrentPrice(ctx, stock.Symbol)
		if err != nil {
			log.Printf("Failed to fetch current price for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}

		if err := r.store.AppendTick(dailyID, stock.ID, stock.Symbol, now, price); err != nil {
			log.Printf("Failed to record tick for %s: %v", stock.Symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}
		summary.SuccessCount++

		if r.events != nil {
			if err := r.events.PublishTickRecorded(ctx, stock.Symbol, price); err != nil {
				log.Printf("Failed to publish tick event for %s: %v", stock.Symbol, err)
			}
		}
		r.throttle()
	}

	r.finish(ctx, summary)
	return summary, nil
}

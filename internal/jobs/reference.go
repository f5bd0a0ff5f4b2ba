package jobs

import (
	"context"
	"log"
)

// RunReferenceRefresh refreshes the slow-changing reference fields for every
// symbol in the configured universe. Runs once per trading day; missing fields
// in a fetched profile leave the stored values untouched.
func (r *Runner) RunReferenceRefresh(ctx context.Context, force bool) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !force && !r.cal.IsTradingDay(now) {
		return skipped(JobNameReference, "market is closed today"), nil
	}

	if err := r.checkStore(); err != nil {
		return nil, err
	}

	symbols := r.cfg.TrackedSymbols
	if len(symbols) == 0 {
		return nil, errNoSymbols
	}

	summary := &Summary{Job: JobNameReference, TotalProcessed: len(symbols)}
	for _, symbol := range symbols {
		ref, err := r.fetcher.ReferenceProfile(ctx, symbol)
		if err != nil {
			log.Printf("Failed to fetch reference profile for %s: %v", symbol, err)
			summary.ErrorCount++
			r.throttle()
			continue
		}

		if _, err := r.store.UpsertReference(ref); err != nil {
			log.Printf("Failed to store reference data for %s: %v", symbol, err)
			summary.ErrorCount++
		} else {
			summary.SuccessCount++
		}
		r.throttle()
	}

	r.finish(ctx, summary)
	return summary, nil
}

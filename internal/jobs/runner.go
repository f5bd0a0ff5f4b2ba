// Package jobs implements the four market data jobs: reference refresh,
// opening capture, closing capture and intraday tracking. Each job checks its
// time gate, enumerates its symbol universe and reconciles observations into
// the store one symbol at a time, so one bad symbol never aborts a run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/calendar"
	"github.com/stanhq/svcmarket/internal/config"
	"github.com/stanhq/svcmarket/internal/models"
)

// Job numbers as used on the command line and the admin API
const (
	JobReferenceRefresh = 1
	JobOpeningCapture   = 2
	JobClosingCapture   = 3
	JobIntradayCapture  = 4
)

// Job names as reported in summaries and events
const (
	JobNameReference = "reference_refresh"
	JobNameOpening   = "opening_capture"
	JobNameClosing   = "closing_capture"
	JobNameIntraday  = "intraday_capture"
)

// Store is the persistence surface the jobs need
type Store interface {
	Ping() error
	ListStocks() ([]models.StockRef, error)
	UpsertReference(ref *models.ReferenceData) (int, error)
	UpsertDailyFields(stockID int, symbol string, date time.Time, fields *models.DailyFields) (int, error)
	GetDailyID(stockID int, date time.Time) (int, error)
	AppendTick(dailyID, stockID int, symbol string, timestamp time.Time, price decimal.Decimal) error
}

// QuoteFetcher provides the market observations the jobs record
type QuoteFetcher interface {
	ReferenceProfile(ctx context.Context, symbol string) (*models.ReferenceData, error)
	OpeningPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	ClosingSnapshot(ctx context.Context, symbol string) (*models.SessionSnapshot, error)
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// EventPublisher publishes job lifecycle events. A nil publisher disables
// publishing.
type EventPublisher interface {
	PublishTickRecorded(ctx context.Context, symbol string, price decimal.Decimal) error
	PublishJobCompleted(ctx context.Context, job string, successCount, errorCount int) error
}

// errNoSymbols fails a reference refresh with nothing to refresh
var errNoSymbols = errors.New("no symbols configured")

// Summary reports the outcome of a single job run
type Summary struct {
	Job            string `json:"job"`
	SuccessCount   int    `json:"success_count"`
	ErrorCount     int    `json:"error_count"`
	TotalProcessed int    `json:"total_processed"`
	Skipped        bool   `json:"skipped,omitempty"`
	SkipReason     string `json:"skip_reason,omitempty"`
}

// Runner executes the market data jobs. Runs are serialized: a job started
// while another is in flight waits for it to finish.
type Runner struct {
	mu      sync.Mutex
	store   Store
	fetcher QuoteFetcher
	cal     *calendar.Calendar
	events  EventPublisher
	cfg     config.MarketConfig
	now     func() time.Time
}

// NewRunner creates a job runner. events may be nil.
func NewRunner(store Store, fetcher QuoteFetcher, cal *calendar.Calendar, events EventPublisher, cfg config.MarketConfig) *Runner {
	return &Runner{
		store:   store,
		fetcher: fetcher,
		cal:     cal,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RunJob runs the job with the given number. force bypasses the time gates
// but never the precondition that a tick needs a daily row to attach to.
func (r *Runner) RunJob(ctx context.Context, number int, force bool) (*Summary, error) {
	switch number {
	case JobReferenceRefresh:
		return r.RunReferenceRefresh(ctx, force)
	case JobOpeningCapture:
		return r.RunOpeningCapture(ctx, force)
	case JobClosingCapture:
		return r.RunClosingCapture(ctx, force)
	case JobIntradayCapture:
		return r.RunIntradayCapture(ctx, force)
	default:
		return nil, fmt.Errorf("unknown job number %d", number)
	}
}

// listStocks returns the registry universe, failing the run when it is empty
func (r *Runner) listStocks() ([]models.StockRef, error) {
	stocks, err := r.store.ListStocks()
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	if len(stocks) == 0 {
		return nil, errors.New("no stocks in registry")
	}
	return stocks, nil
}

// checkStore verifies database connectivity before a run touches any symbol
func (r *Runner) checkStore() error {
	if err := r.store.Ping(); err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}
	return nil
}

// throttle pauses between symbols to stay under upstream rate limits
func (r *Runner) throttle() {
	if r.cfg.Throttle > 0 {
		time.Sleep(r.cfg.Throttle)
	}
}

// finish logs the run outcome and publishes the completion event
func (r *Runner) finish(ctx context.Context, s *Summary) {
	log.Printf("Job %s completed: %d succeeded, %d failed, %d processed",
		s.Job, s.SuccessCount, s.ErrorCount, s.TotalProcessed)

	if r.events == nil {
		return
	}
	if err := r.events.PublishJobCompleted(ctx, s.Job, s.SuccessCount, s.ErrorCount); err != nil {
		log.Printf("Failed to publish completion event for %s: %v", s.Job, err)
	}
}

func skipped(job, reason string) *Summary {
	log.Printf("Job %s skipped: %s", job, reason)
	return &Summary{Job: job, Skipped: true, SkipReason: reason}
}

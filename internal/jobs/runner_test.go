package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/calendar"
	"github.com/stanhq/svcmarket/internal/config"
	"github.com/stanhq/svcmarket/internal/database"
	"github.com/stanhq/svcmarket/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dailyUpsert struct {
	stockID int
	symbol  string
	date    time.Time
	fields  *models.DailyFields
}

type tick struct {
	dailyID int
	stockID int
	symbol  string
	price   decimal.Decimal
}

// mockStore is a scriptable Store. Per-symbol errors let tests verify that
// one bad symbol never aborts a run.
type mockStore struct {
	pingErr      error
	stocks       []models.StockRef
	listErr      error
	refUpserts   []*models.ReferenceData
	refErrs      map[string]error
	dailyUpserts []dailyUpsert
	dailyErrs    map[string]error
	dailyIDs     map[int]int
	dailyIDErrs  map[int]error
	ticks        []tick
	tickErr      error
}

func (m *mockStore) Ping() error { return m.pingErr }

func (m *mockStore) ListStocks() ([]models.StockRef, error) {
	return m.stocks, m.listErr
}

func (m *mockStore) UpsertReference(ref *models.ReferenceData) (int, error) {
	if err := m.refErrs[ref.Symbol]; err != nil {
		return 0, err
	}
	m.refUpserts = append(m.refUpserts, ref)
	return len(m.refUpserts), nil
}

func (m *mockStore) UpsertDailyFields(stockID int, symbol string, date time.Time, fields *models.DailyFields) (int, error) {
	if err := m.dailyErrs[symbol]; err != nil {
		return 0, err
	}
	m.dailyUpserts = append(m.dailyUpserts, dailyUpsert{stockID, symbol, date, fields})
	return len(m.dailyUpserts), nil
}

func (m *mockStore) GetDailyID(stockID int, date time.Time) (int, error) {
	if err := m.dailyIDErrs[stockID]; err != nil {
		return 0, err
	}
	id, ok := m.dailyIDs[stockID]
	if !ok {
		return 0, database.ErrNoDaily
	}
	return id, nil
}

func (m *mockStore) AppendTick(dailyID, stockID int, symbol string, timestamp time.Time, price decimal.Decimal) error {
	if m.tickErr != nil {
		return m.tickErr
	}
	m.ticks = append(m.ticks, tick{dailyID, stockID, symbol, price})
	return nil
}

// mockFetcher returns canned observations with optional per-symbol failures
type mockFetcher struct {
	refs     map[string]*models.ReferenceData
	refErrs  map[string]error
	opening  decimal.Decimal
	openErrs map[string]error
	snapshot *models.SessionSnapshot
	snapErrs map[string]error
	price    decimal.Decimal
	prcErrs  map[string]error
}

func (m *mockFetcher) ReferenceProfile(ctx context.Context, symbol string) (*models.ReferenceData, error) {
	if err := m.refErrs[symbol]; err != nil {
		return nil, err
	}
	if ref, ok := m.refs[symbol]; ok {
		return ref, nil
	}
	return &models.ReferenceData{Symbol: symbol}, nil
}

func (m *mockFetcher) OpeningPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := m.openErrs[symbol]; err != nil {
		return decimal.Zero, err
	}
	return m.opening, nil
}

func (m *mockFetcher) ClosingSnapshot(ctx context.Context, symbol string) (*models.SessionSnapshot, error) {
	if err := m.snapErrs[symbol]; err != nil {
		return nil, err
	}
	return m.snapshot, nil
}

func (m *mockFetcher) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := m.prcErrs[symbol]; err != nil {
		return decimal.Zero, err
	}
	return m.price, nil
}

// mockPublisher records published events
type mockPublisher struct {
	ticks     []string
	completed []string
}

func (m *mockPublisher) PublishTickRecorded(ctx context.Context, symbol string, price decimal.Decimal) error {
	m.ticks = append(m.ticks, symbol)
	return nil
}

func (m *mockPublisher) PublishJobCompleted(ctx context.Context, job string, successCount, errorCount int) error {
	m.completed = append(m.completed, job)
	return nil
}

func testMarketConfig() config.MarketConfig {
	return config.MarketConfig{
		Timezone:           "America/New_York",
		ReferenceRefreshAt: "09:00",
		OpeningWindowStart: "09:35",
		OpeningWindowEnd:   "10:00",
		ClosingWindowStart: "16:05",
		ClosingWindowEnd:   "18:00",
		SessionOpen:        "09:30",
		SessionClose:       "16:00",
		TrackingInterval:   15,
		TrackedSymbols:     []string{"AAPL", "MSFT"},
	}
}

func newTestRunner(t *testing.T, store *mockStore, fetcher *mockFetcher, events EventPublisher, at time.Time) *Runner {
	t.Helper()
	cal, err := calendar.NewForZone("America/New_York")
	require.NoError(t, err)

	r := NewRunner(store, fetcher, cal, events, testMarketConfig())
	r.now = func() time.Time { return at }
	return r
}

// tradingDayAt returns a Tuesday trading day at the given New York time
func tradingDayAt(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, time.August, 25, hour, min, 0, 0, loc)
}

// saturdayAt returns a Saturday at the given New York time
func saturdayAt(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2026, time.August, 29, hour, min, 0, 0, loc)
}

func TestRunReferenceRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes every configured symbol", func(t *testing.T) {
		store := &mockStore{}
		fetcher := &mockFetcher{}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 9, 0))

		summary, err := r.RunReferenceRefresh(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.SuccessCount)
		assert.Equal(t, 0, summary.ErrorCount)
		assert.Equal(t, 2, summary.TotalProcessed)
		require.Len(t, store.refUpserts, 2)
		assert.Equal(t, "AAPL", store.refUpserts[0].Symbol)
		assert.Equal(t, "MSFT", store.refUpserts[1].Symbol)
	})

	t.Run("skips on a non-trading day", func(t *testing.T) {
		store := &mockStore{}
		r := newTestRunner(t, store, &mockFetcher{}, nil, saturdayAt(t, 9, 0))

		summary, err := r.RunReferenceRefresh(ctx, false)
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
		assert.Empty(t, store.refUpserts)
	})

	t.Run("force bypasses the trading day gate", func(t *testing.T) {
		store := &mockStore{}
		r := newTestRunner(t, store, &mockFetcher{}, nil, saturdayAt(t, 9, 0))

		summary, err := r.RunReferenceRefresh(ctx, true)
		require.NoError(t, err)
		assert.False(t, summary.Skipped)
		assert.Equal(t, 2, summary.SuccessCount)
	})

	t.Run("one bad symbol does not abort the run", func(t *testing.T) {
		store := &mockStore{}
		fetcher := &mockFetcher{refErrs: map[string]error{"AAPL": errors.New("provider down")}}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 9, 0))

		summary, err := r.RunReferenceRefresh(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, 1, summary.ErrorCount)
		require.Len(t, store.refUpserts, 1)
		assert.Equal(t, "MSFT", store.refUpserts[0].Symbol)
	})

	t.Run("fails when the database is unreachable", func(t *testing.T) {
		store := &mockStore{pingErr: errors.New("connection refused")}
		r := newTestRunner(t, store, &mockFetcher{}, nil, tradingDayAt(t, 9, 0))

		_, err := r.RunReferenceRefresh(ctx, false)
		require.Error(t, err)
	})

	t.Run("fails with no configured symbols", func(t *testing.T) {
		store := &mockStore{}
		cal, err := calendar.NewForZone("America/New_York")
		require.NoError(t, err)
		cfg := testMarketConfig()
		cfg.TrackedSymbols = nil
		r := NewRunner(store, &mockFetcher{}, cal, nil, cfg)
		at := tradingDayAt(t, 9, 0)
		r.now = func() time.Time { return at }

		_, err = r.RunReferenceRefresh(ctx, false)
		assert.ErrorIs(t, err, errNoSymbols)
	})
}

func TestRunOpeningCapture(t *testing.T) {
	ctx := context.Background()

	registry := []models.StockRef{{ID: 1, Symbol: "AAPL"}, {ID: 2, Symbol: "MSFT"}}

	t.Run("records opening in registry and daily row", func(t *testing.T) {
		store := &mockStore{stocks: registry}
		fetcher := &mockFetcher{opening: decimal.RequireFromString("175.00")}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 9, 40))

		summary, err := r.RunOpeningCapture(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.SuccessCount)

		require.Len(t, store.refUpserts, 2)
		assert.True(t, store.refUpserts[0].PreviousDayOpeningPrice.Equal(decimal.RequireFromString("175.00")))
		assert.Nil(t, store.refUpserts[0].PreviousDayClosingPrice)

		require.Len(t, store.dailyUpserts, 2)
		assert.Equal(t, 1, store.dailyUpserts[0].stockID)
		assert.True(t, store.dailyUpserts[0].fields.OpeningPrice.Equal(decimal.RequireFromString("175.00")))
		assert.Nil(t, store.dailyUpserts[0].fields.ClosingPrice)
	})

	t.Run("skips outside the opening window", func(t *testing.T) {
		store := &mockStore{stocks: registry}
		r := newTestRunner(t, store, &mockFetcher{}, nil, tradingDayAt(t, 10, 1))

		summary, err := r.RunOpeningCapture(ctx, false)
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
		assert.Empty(t, store.dailyUpserts)
	})

	t.Run("runs at the window bounds", func(t *testing.T) {
		for _, at := range []time.Time{tradingDayAt(t, 9, 35), tradingDayAt(t, 10, 0)} {
			store := &mockStore{stocks: registry}
			fetcher := &mockFetcher{opening: decimal.RequireFromString("175.00")}
			r := newTestRunner(t, store, fetcher, nil, at)

			summary, err := r.RunOpeningCapture(ctx, false)
			require.NoError(t, err)
			assert.False(t, summary.Skipped)
		}
	})

	t.Run("fails with an empty registry", func(t *testing.T) {
		store := &mockStore{}
		r := newTestRunner(t, store, &mockFetcher{}, nil, tradingDayAt(t, 9, 40))

		_, err := r.RunOpeningCapture(ctx, false)
		require.Error(t, err)
	})

	t.Run("fetch failure counts the symbol as an error", func(t *testing.T) {
		store := &mockStore{stocks: registry}
		fetcher := &mockFetcher{
			opening:  decimal.RequireFromString("175.00"),
			openErrs: map[string]error{"AAPL": errors.New("provider down")},
		}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 9, 40))

		summary, err := r.RunOpeningCapture(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, 1, summary.ErrorCount)
		require.Len(t, store.dailyUpserts, 1)
		assert.Equal(t, "MSFT", store.dailyUpserts[0].symbol)
	})
}

func TestRunClosingCapture(t *testing.T) {
	ctx := context.Background()

	registry := []models.StockRef{{ID: 1, Symbol: "AAPL"}}
	snapshot := &models.SessionSnapshot{
		ClosingPrice: decimal.RequireFromString("177.50"),
		MaxPrice:     decimal.RequireFromString("178.10"),
		MinPrice:     decimal.RequireFromString("174.20"),
		Volume:       48000000,
	}

	t.Run("records the full session snapshot", func(t *testing.T) {
		store := &mockStore{stocks: registry}
		fetcher := &mockFetcher{snapshot: snapshot}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 16, 10))

		summary, err := r.RunClosingCapture(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)

		require.Len(t, store.refUpserts, 1)
		assert.True(t, store.refUpserts[0].PreviousDayClosingPrice.Equal(decimal.RequireFromString("177.50")))
		assert.Nil(t, store.refUpserts[0].PreviousDayOpeningPrice)

		require.Len(t, store.dailyUpserts, 1)
		fields := store.dailyUpserts[0].fields
		assert.True(t, fields.ClosingPrice.Equal(decimal.RequireFromString("177.50")))
		assert.True(t, fields.MaxPrice.Equal(decimal.RequireFromString("178.10")))
		assert.True(t, fields.MinPrice.Equal(decimal.RequireFromString("174.20")))
		assert.Equal(t, int64(48000000), *fields.Volume)
		assert.Nil(t, fields.OpeningPrice)
	})

	t.Run("skips before the closing window", func(t *testing.T) {
		store := &mockStore{stocks: registry}
		r := newTestRunner(t, store, &mockFetcher{snapshot: snapshot}, nil, tradingDayAt(t, 16, 4))

		summary, err := r.RunClosingCapture(ctx, false)
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
	})

	t.Run("force bypasses the window", func(t *testing.T) {
		store := &mockStore{stocks: registry}
		r := newTestRunner(t, store, &mockFetcher{snapshot: snapshot}, nil, tradingDayAt(t, 12, 0))

		summary, err := r.RunClosingCapture(ctx, true)
		require.NoError(t, err)
		assert.False(t, summary.Skipped)
		assert.Equal(t, 1, summary.SuccessCount)
	})
}

func TestRunIntradayCapture(t *testing.T) {
	ctx := context.Background()

	registry := []models.StockRef{{ID: 1, Symbol: "AAPL"}, {ID: 2, Symbol: "MSFT"}}

	t.Run("appends ticks for stocks with a daily row", func(t *testing.T) {
		store := &mockStore{stocks: registry, dailyIDs: map[int]int{1: 11, 2: 22}}
		fetcher := &mockFetcher{price: decimal.RequireFromString("175.20")}
		events := &mockPublisher{}
		r := newTestRunner(t, store, fetcher, events, tradingDayAt(t, 10, 15))

		summary, err := r.RunIntradayCapture(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.SuccessCount)

		require.Len(t, store.ticks, 2)
		assert.Equal(t, 11, store.ticks[0].dailyID)
		assert.Equal(t, "AAPL", store.ticks[0].symbol)
		assert.True(t, store.ticks[0].price.Equal(decimal.RequireFromString("175.20")))

		assert.Equal(t, []string{"AAPL", "MSFT"}, events.ticks)
		assert.Equal(t, []string{JobNameIntraday}, events.completed)
	})

	t.Run("silently skips a stock without a daily row", func(t *testing.T) {
		store := &mockStore{stocks: registry, dailyIDs: map[int]int{2: 22}}
		fetcher := &mockFetcher{price: decimal.RequireFromString("175.20")}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 10, 15))

		summary, err := r.RunIntradayCapture(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, 0, summary.ErrorCount)
		require.Len(t, store.ticks, 1)
		assert.Equal(t, "MSFT", store.ticks[0].symbol)
	})

	t.Run("skips off the tracking interval", func(t *testing.T) {
		store := &mockStore{stocks: registry, dailyIDs: map[int]int{1: 11}}
		r := newTestRunner(t, store, &mockFetcher{}, nil, tradingDayAt(t, 10, 7))

		summary, err := r.RunIntradayCapture(ctx, false)
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
		assert.Equal(t, "not on tracking interval", summary.SkipReason)
	})

	t.Run("skips outside the session", func(t *testing.T) {
		store := &mockStore{stocks: registry, dailyIDs: map[int]int{1: 11}}
		r := newTestRunner(t, store, &mockFetcher{}, nil, tradingDayAt(t, 16, 0))

		summary, err := r.RunIntradayCapture(ctx, false)
		require.NoError(t, err)
		assert.True(t, summary.Skipped)
		assert.Equal(t, "market is closed", summary.SkipReason)
	})

	t.Run("force bypasses the gate but not the daily row precondition", func(t *testing.T) {
		store := &mockStore{stocks: registry, dailyIDs: map[int]int{}}
		fetcher := &mockFetcher{price: decimal.RequireFromString("175.20")}
		r := newTestRunner(t, store, fetcher, nil, saturdayAt(t, 12, 3))

		summary, err := r.RunIntradayCapture(ctx, true)
		require.NoError(t, err)
		assert.False(t, summary.Skipped)
		assert.Equal(t, 0, summary.SuccessCount)
		assert.Empty(t, store.ticks)
	})

	t.Run("lookup failure counts as an error", func(t *testing.T) {
		store := &mockStore{
			stocks:      registry,
			dailyIDs:    map[int]int{2: 22},
			dailyIDErrs: map[int]error{1: errors.New("connection reset")},
		}
		fetcher := &mockFetcher{price: decimal.RequireFromString("175.20")}
		r := newTestRunner(t, store, fetcher, nil, tradingDayAt(t, 10, 15))

		summary, err := r.RunIntradayCapture(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.SuccessCount)
		assert.Equal(t, 1, summary.ErrorCount)
	})
}

func TestRunJob(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches by number", func(t *testing.T) {
		store := &mockStore{}
		r := newTestRunner(t, store, &mockFetcher{}, nil, tradingDayAt(t, 9, 0))

		summary, err := r.RunJob(ctx, JobReferenceRefresh, false)
		require.NoError(t, err)
		assert.Equal(t, JobNameReference, summary.Job)
	})

	t.Run("rejects unknown numbers", func(t *testing.T) {
		r := newTestRunner(t, &mockStore{}, &mockFetcher{}, nil, tradingDayAt(t, 9, 0))

		_, err := r.RunJob(ctx, 9, false)
		require.Error(t, err)
	})
}

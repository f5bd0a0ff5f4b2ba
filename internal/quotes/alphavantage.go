package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

// tradingDaysPerYear bounds the daily history used for reference averages.
const tradingDaysPerYear = 252

// AlphaVantageSource fetches quotes from the Alpha Vantage REST API. It
// requires an API key and serves as the fallback source.
type AlphaVantageSource struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

// NewAlphaVantageSource creates an Alpha Vantage source
func NewAlphaVantageSource(apiKey string, timeout time.Duration) *AlphaVantageSource {
	return &AlphaVantageSource{
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: alphaVantageBaseURL,
	}
}

// Name returns the source name
func (s *AlphaVantageSource) Name() string {
	return "alphavantage"
}

// IntradaySeries returns today's one-minute bars
func (s *AlphaVantageSource) IntradaySeries(ctx context.Context, symbol string) ([]models.Bar, error) {
	url := fmt.Sprintf("%s/query?function=TIME_SERIES_INTRADAY&symbol=%s&interval=1min&outputsize=full&apikey=%s",
		s.baseURL, symbol, s.apiKey)

	series, err := s.fetchSeries(ctx, url, "Time Series (1min)", "2006-01-02 15:04:05")
	if err != nil {
		return nil, err
	}

	// The intraday endpoint spans several sessions; keep only today's.
	today := time.Now().Format("2006-01-02")
	bars := series[:0]
	for _, b := range series {
		if b.Timestamp.Format("2006-01-02") == today {
			bars = append(bars, b)
		}
	}
	return bars, nil
}

// DailyBars returns the most recent daily bars
func (s *AlphaVantageSource) DailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	url := fmt.Sprintf("%s/query?function=TIME_SERIES_DAILY&symbol=%s&outputsize=compact&apikey=%s",
		s.baseURL, symbol, s.apiKey)

	bars, err := s.fetchSeries(ctx, url, "Time Series (Daily)", "2006-01-02")
	if err != nil {
		return nil, err
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars, nil
}

// CurrentPrice returns the latest quote from the GLOBAL_QUOTE endpoint
func (s *AlphaVantageSource) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", s.baseURL, symbol, s.apiKey)

	body, err := s.get(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}

	var resp struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad quote response for %s: %v", ErrNotAvailable, symbol, err)
	}

	raw, ok := resp.GlobalQuote["05. price"]
	if !ok || raw == "" {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", ErrNotAvailable, symbol)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q for %s", ErrNotAvailable, raw, symbol)
	}
	return price.Round(2), nil
}

// ReferenceProfile derives the reference fields from up to a year of daily
// bars plus the company OVERVIEW endpoint.
func (s *AlphaVantageSource) ReferenceProfile(ctx context.Context, symbol string) (*models.ReferenceData, error) {
	url := fmt.Sprintf("%s/query?function=TIME_SERIES_DAILY&symbol=%s&outputsize=full&apikey=%s",
		s.baseURL, symbol, s.apiKey)

	bars, err := s.fetchSeries(ctx, url, "Time Series (Daily)", "2006-01-02")
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", ErrNotAvailable, symbol)
	}
	if len(bars) > tradingDaysPerYear {
		bars = bars[len(bars)-tradingDaysPerYear:]
	}

	ref := &models.ReferenceData{Symbol: symbol}

	var volSum, count int64
	lowSum, highSum := decimal.Zero, decimal.Zero
	for _, b := range bars {
		volSum += b.Volume
		lowSum = lowSum.Add(b.Low)
		highSum = highSum.Add(b.High)
		count++
	}
	avgVolume := volSum / count
	avgLow := lowSum.Div(decimal.NewFromInt(count)).Round(2)
	avgHigh := highSum.Div(decimal.NewFromInt(count)).Round(2)
	ref.AvgDailyVolume = &avgVolume
	ref.AvgDailyMinPrice = &avgLow
	ref.AvgDailyMaxPrice = &avgHigh

	year := time.Now().Year()
	for _, b := range bars {
		if b.Timestamp.Year() == year {
			yearStart := b.Close.Round(2)
			ref.BeginningOfYearPrice = &yearStart
			break
		}
	}

	prev := bars[len(bars)-1]
	if len(bars) >= 2 {
		prev = bars[len(bars)-2]
	}
	prevOpen := prev.Open.Round(2)
	prevClose := prev.Close.Round(2)
	ref.PreviousDayOpeningPrice = &prevOpen
	ref.PreviousDayClosingPrice = &prevClose

	s.applyOverview(ctx, symbol, ref)

	return ref, nil
}

// applyOverview fills exchange, cap category and security type from the
// OVERVIEW endpoint. Overview failures leave those fields unset; the price
// history alone is still a usable profile.
func (s *AlphaVantageSource) applyOverview(ctx context.Context, symbol string, ref *models.ReferenceData) {
	url := fmt.Sprintf("%s/query?function=OVERVIEW&symbol=%s&apikey=%s", s.baseURL, symbol, s.apiKey)

	body, err := s.get(ctx, url)
	if err != nil {
		return
	}

	var overview struct {
		Exchange             string `json:"Exchange"`
		AssetType            string `json:"AssetType"`
		MarketCapitalization string `json:"MarketCapitalization"`
	}
	if err := json.Unmarshal(body, &overview); err != nil {
		return
	}

	if overview.Exchange != "" {
		exchange := overview.Exchange
		ref.Exchange = &exchange
	}
	if t := NormalizeSecurityType(overview.AssetType); t != "" {
		stockType := t
		ref.StockType = &stockType
	}
	if cap, err := strconv.ParseFloat(overview.MarketCapitalization, 64); err == nil {
		if category := CapCategory(cap); category != "" {
			ref.StockCap = &category
		}
	}
}

// fetchSeries parses an Alpha Vantage time series object into bars sorted
// oldest first.
func (s *AlphaVantageSource) fetchSeries(ctx context.Context, url, seriesKey, layout string) ([]models.Bar, error) {
	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrNotAvailable, err)
	}

	if msg, ok := resp["Error Message"]; ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, string(msg))
	}
	if msg, ok := resp["Note"]; ok {
		// Rate limited
		return nil, fmt.Errorf("%w: %s", ErrNotAvailable, string(msg))
	}

	raw, ok := resp[seriesKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrNotAvailable, seriesKey)
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("%w: bad series: %v", ErrNotAvailable, err)
	}

	bars := make([]models.Bar, 0, len(series))
	for dateStr, values := range series {
		ts, err := time.Parse(layout, dateStr)
		if err != nil {
			continue
		}
		bar, err := parseAVBar(ts, values)
		if err != nil {
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

func parseAVBar(ts time.Time, values map[string]string) (models.Bar, error) {
	open, err := decimal.NewFromString(values["1. open"])
	if err != nil {
		return models.Bar{}, err
	}
	high, err := decimal.NewFromString(values["2. high"])
	if err != nil {
		return models.Bar{}, err
	}
	low, err := decimal.NewFromString(values["3. low"])
	if err != nil {
		return models.Bar{}, err
	}
	closePrice, err := decimal.NewFromString(values["4. close"])
	if err != nil {
		return models.Bar{}, err
	}
	volume, err := strconv.ParseInt(values["5. volume"], 10, 64)
	if err != nil {
		volume = 0
	}

	return models.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}, nil
}

func (s *AlphaVantageSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrNotAvailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNotAvailable, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource fetches quotes from the Yahoo Finance chart and quoteSummary
// APIs. It needs no API key and serves as the primary source.
type YahooSource struct {
	client  *http.Client
	baseURL string
}

// NewYahooSource creates a Yahoo Finance source with the given request timeout
func NewYahooSource(timeout time.Duration) *YahooSource {
	return &YahooSource{
		client:  &http.Client{Timeout: timeout},
		baseURL: yahooBaseURL,
	}
}

// Name returns the source name
func (s *YahooSource) Name() string {
	return "yahoo"
}

// yahooChartResponse covers the fields of the v8 chart API this service
// reads. Series values are pointers because Yahoo reports halted minutes as
// nulls.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ExchangeName       string  `json:"exchangeName"`
				InstrumentType     string  `json:"instrumentType"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooSummaryResponse covers the price module of the v10 quoteSummary API
type yahooSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				MarketCap struct {
					Raw float64 `json:"raw"`
				} `json:"marketCap"`
			} `json:"price"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// IntradaySeries returns today's one-minute bars
func (s *YahooSource) IntradaySeries(ctx context.Context, symbol string) ([]models.Bar, error) {
	resp, err := s.fetchChart(ctx, symbol, "1d", "1m")
	if err != nil {
		return nil, err
	}
	return chartBars(resp)
}

// DailyBars returns the most recent daily bars
func (s *YahooSource) DailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error) {
	resp, err := s.fetchChart(ctx, symbol, fmt.Sprintf("%dd", days), "1d")
	if err != nil {
		return nil, err
	}
	return chartBars(resp)
}

// CurrentPrice returns the latest intraday close, falling back to the chart
// metadata's regular market price when the series is empty.
func (s *YahooSource) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := s.fetchChart(ctx, symbol, "1d", "1m")
	if err != nil {
		return decimal.Zero, err
	}

	bars, err := chartBars(resp)
	if err == nil && len(bars) > 0 {
		return bars[len(bars)-1].Close.Round(2), nil
	}

	if price := resp.Chart.Result[0].Meta.RegularMarketPrice; price > 0 {
		return decimal.NewFromFloat(price).Round(2), nil
	}

	return decimal.Zero, fmt.Errorf("%w: no price for %s", ErrNotAvailable, symbol)
}

// ReferenceProfile derives the reference fields from one year of daily bars
// plus the quoteSummary price module. A missing market cap leaves the cap
// category unknown rather than failing the whole profile.
func (s *YahooSource) ReferenceProfile(ctx context.Context, symbol string) (*models.ReferenceData, error) {
	resp, err := s.fetchChart(ctx, symbol, "1y", "1d")
	if err != nil {
		return nil, err
	}

	bars, err := chartBars(resp)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", ErrNotAvailable, symbol)
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

	meta := resp.Chart.Result[0].Meta
	if meta.ExchangeName != "" {
		exchange := meta.ExchangeName
		ref.Exchange = &exchange
	}
	if t := NormalizeSecurityType(meta.InstrumentType); t != "" {
		stockType := t
		ref.StockType = &stockType
	}

	if cap, err := s.fetchMarketCap(ctx, symbol); err == nil {
		if category := CapCategory(cap); category != "" {
			ref.StockCap = &category
		}
	}

	return ref, nil
}

func (s *YahooSource) fetchChart(ctx context.Context, symbol, rangeStr, interval string) (*yahooChartResponse, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s&includePrePost=false",
		s.baseURL, symbol, rangeStr, interval)

	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var resp yahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad chart response for %s: %v", ErrNotAvailable, symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotAvailable, resp.Chart.Error.Description, resp.Chart.Error.Code)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: empty chart result for %s", ErrNotAvailable, symbol)
	}

	return &resp, nil
}

func (s *YahooSource) fetchMarketCap(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price", s.baseURL, symbol)

	body, err := s.get(ctx, url)
	if err != nil {
		return 0, err
	}

	var resp yahooSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("%w: bad summary response for %s: %v", ErrNotAvailable, symbol, err)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return 0, fmt.Errorf("%w: no summary for %s", ErrNotAvailable, symbol)
	}

	return resp.QuoteSummary.Result[0].Price.MarketCap.Raw, nil
}

func (s *YahooSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "svcmarket/1.0")

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

// chartBars flattens a chart response into bars, skipping minutes Yahoo
// reports as null.
func chartBars(resp *yahooChartResponse) ([]models.Bar, error) {
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no quote series", ErrNotAvailable)
	}
	quote := result.Indicators.Quote[0]

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		bar := models.Bar{
			Timestamp: time.Unix(ts, 0),
			Open:      decimal.NewFromFloat(*quote.Open[i]),
			High:      decimal.NewFromFloat(*quote.High[i]),
			Low:       decimal.NewFromFloat(*quote.Low[i]),
			Close:     decimal.NewFromFloat(*quote.Close[i]),
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

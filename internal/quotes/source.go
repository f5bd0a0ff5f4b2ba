package quotes

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

// ErrNotAvailable indicates an upstream source had no usable data for a
// symbol. It is the ordinary outcome for delisted or unknown symbols and for
// transient provider failures; callers skip the symbol and continue the batch.
var ErrNotAvailable = errors.New("quote data not available")

// Source is a single upstream market data provider. Every call is
// independently fallible and returns ErrNotAvailable for ordinary data
// absence rather than surfacing provider-specific errors.
type Source interface {
	Name() string

	// IntradaySeries returns today's one-minute bars, oldest first.
	IntradaySeries(ctx context.Context, symbol string) ([]models.Bar, error)

	// DailyBars returns the most recent daily bars, oldest first.
	DailyBars(ctx context.Context, symbol string, days int) ([]models.Bar, error)

	// CurrentPrice returns the most recent traded price.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// ReferenceProfile returns the slow-changing descriptive and statistical
	// fields for a symbol.
	ReferenceProfile(ctx context.Context, symbol string) (*models.ReferenceData, error)
}

// Market cap category thresholds, in USD.
const (
	megaCapFloor  = 200e9
	largeCapFloor = 10e9
	midCapFloor   = 2e9
	smallCapFloor = 0.3e9
	microCapFloor = 0.05e9
)

// CapCategory buckets a market capitalization into its category name.
// A zero or negative cap means the provider did not report one; the category
// is unknown and left empty.
func CapCategory(marketCap float64) string {
	switch {
	case marketCap <= 0:
		return ""
	case marketCap >= megaCapFloor:
		return "Mega-Cap"
	case marketCap >= largeCapFloor:
		return "Large-Cap"
	case marketCap >= midCapFloor:
		return "Mid-Cap"
	case marketCap >= smallCapFloor:
		return "Small-Cap"
	case marketCap >= microCapFloor:
		return "Micro-Cap"
	default:
		return "Nano-Cap"
	}
}

// NormalizeSecurityType maps provider-specific security type codes onto the
// fixed vocabulary. Unrecognized non-empty codes pass through unchanged.
func NormalizeSecurityType(code string) string {
	switch code {
	case "":
		return ""
	case "EQUITY", "Common Stock":
		return "Common Stock"
	case "ETF":
		return "ETF"
	case "MUTUALFUND", "Mutual Fund":
		return "Mutual Fund"
	default:
		return code
	}
}

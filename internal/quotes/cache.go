package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PriceCache is a short-TTL Redis cache for current prices. The intraday job
// polls every tracked symbol each interval; caching keeps a forced re-run or
// an API-triggered run from hammering the upstream provider. A nil cache is
// valid and disables caching.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPriceCache creates a price cache backed by the given Redis client
func NewPriceCache(client *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, ttl: ttl}
}

// Get returns the cached price for a symbol and whether it was present
func (c *PriceCache) Get(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	if c == nil || c.client == nil {
		return decimal.Zero, false
	}

	key := priceKey(symbol)
	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return decimal.Zero, false
	}
	if err != nil {
		return decimal.Zero, false
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// Set caches the price for a symbol with the configured TTL
func (c *PriceCache) Set(ctx context.Context, symbol string, price decimal.Decimal) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, priceKey(symbol), price.String(), c.ttl).Err()
}

func priceKey(symbol string) string {
	return fmt.Sprintf("quote:%s:price", symbol)
}

package vat

import (
	"sync"

	"github.com/shopspring/decimal"
)

// RateCache is a thread-safe in-memory cache of the home jurisdiction's
// current VAT rates, keyed by rate type. It is loaded at startup from the
// vat_rates table and can be reloaded when rates change at the data level.
// Uses sync.RWMutex to allow concurrent reads while serializing reloads.
type RateCache struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal // rate_type -> fraction (e.g. "standard" -> 0.21)
}

// NewRateCache creates a RateCache pre-seeded with fallback rates, so VAT
// classification keeps working before the first database load.
func NewRateCache(standard, reduced decimal.Decimal) *RateCache {
	return &RateCache{
		rates: map[string]decimal.Decimal{
			RateTypeStandard: standard,
			RateTypeReduced:  reduced,
		},
	}
}

// Get retrieves the current rate for a rate type.
// Returns the rate and true if present, or zero and false if not.
func (c *RateCache) Get(rateType string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate, ok := c.rates[rateType]
	if !ok {
		return decimal.Zero, false
	}
	return rate, true
}

// Load replaces the cache with the currently effective rates from rows.
// Rows with EffectiveTo set are historical and skipped. Rate types absent
// from rows keep their previous value, so a partial table never erases a
// working rate.
func (c *RateCache) Load(rows []Rate) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	loaded := 0
	for _, r := range rows {
		if r.EffectiveTo != nil {
			continue
		}
		c.rates[r.RateType] = r.Rate
		loaded++
	}
	return loaded
}

// All returns a copy of the cached rates, for API responses.
func (c *RateCache) All() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(c.rates))
	for k, v := range c.rates {
		out[k] = v
	}
	return out
}

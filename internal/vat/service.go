package vat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/country"
)

// Service couples the pure Engine to the vat_rates table. It loads the
// currently effective home-country rates into the shared RateCache at
// startup and on a reload interval, and exposes the engine to handlers.
type Service struct {
	pool     *pgxpool.Pool
	cache    *RateCache
	engine   *Engine
	registry *country.Registry
	logger   *slog.Logger
}

// NewService creates a rate-backed VAT service.
func NewService(pool *pgxpool.Pool, registry *country.Registry, cache *RateCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:     pool,
		cache:    cache,
		engine:   NewEngine(registry, cache, logger),
		registry: registry,
		logger:   logger,
	}
}

// Engine returns the underlying pure engine.
func (s *Service) Engine() *Engine { return s.engine }

// Classify delegates to the pure engine. Present on the service so callers
// holding a Service never reach into internals.
func (s *Service) Classify(input ClassificationInput) Classification {
	return s.engine.Classify(input)
}

// LoadRates reads the currently effective rates for the home country from
// vat_rates into the cache. Missing rows are not an error: the cache keeps
// its previous (or seeded fallback) values.
func (s *Service) LoadRates(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, country_code, rate_type, rate, COALESCE(description, ''), effective_from, effective_to
		FROM vat_rates
		WHERE country_code = $1 AND effective_to IS NULL
		ORDER BY rate_type
	`, s.registry.HomeCountry())
	if err != nil {
		return fmt.Errorf("querying current VAT rates: %w", err)
	}
	defer rows.Close()

	var rates []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.ID, &r.CountryCode, &r.RateType, &r.Rate, &r.Description, &r.EffectiveFrom, &r.EffectiveTo); err != nil {
			return fmt.Errorf("scanning VAT rate row: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading VAT rate rows: %w", err)
	}

	loaded := s.cache.Load(rates)
	s.logger.Info("VAT rates loaded",
		"country", s.registry.HomeCountry(),
		"rates", loaded,
	)
	return nil
}

// StartReloader refreshes the rate cache periodically until ctx is done.
// Rate changes apply to new classifications only; persisted decisions are
// never recomputed.
func (s *Service) StartReloader(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.LoadRates(ctx); err != nil {
					s.logger.Warn("VAT rate reload failed, keeping cached rates", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RuleDescription is one entry of the published calculation rule table.
type RuleDescription struct {
	VATType     string          `json:"vat_type"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description"`
}

// Rules returns the calculation rule table for the rates currently in
// effect, keyed the way the compliance UI presents them.
func (s *Service) Rules() map[string]RuleDescription {
	standard, _ := s.cache.Get(RateTypeStandard)
	reduced, _ := s.cache.Get(RateTypeReduced)

	return map[string]RuleDescription{
		"domestic": {
			VATType:     TypeStandard,
			Rate:        standard,
			Description: "Standard Dutch VAT for domestic sales",
		},
		"domestic_reduced": {
			VATType:     TypeReduced,
			Rate:        reduced,
			Description: "Reduced Dutch VAT for qualifying categories",
		},
		"eu_b2b_with_vat": {
			VATType:     TypeReverseCharge,
			Rate:        decimal.Zero,
			Description: "Reverse charge (BTW verlegd) for EU B2B with VAT number",
		},
		"eu_b2c_or_no_vat": {
			VATType:     TypeStandard,
			Rate:        standard,
			Description: "Dutch VAT for EU B2C or B2B without VAT number",
		},
		"non_eu_export": {
			VATType:     TypeExempt,
			Rate:        decimal.Zero,
			Description: "Export outside EU - VAT exempt",
		},
	}
}

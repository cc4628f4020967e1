package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// TTLConfig sets per-method cache lifetimes.
type TTLConfig struct {
	Candles      time.Duration
	Prices       time.Duration
	Indicators   time.Duration
	OptionsChain time.Duration
	GEX          time.Duration
}

// DefaultTTLConfig matches the durations the multiplex is specified to use.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Candles:      60 * time.Second,
		Prices:       30 * time.Second,
		Indicators:   60 * time.Second,
		OptionsChain: 60 * time.Second,
		GEX:          300 * time.Second,
	}
}

// BreakerConfig configures every provider's circuit breaker identically.
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// DefaultBreakerConfig matches the specified thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, ResetTimeout: 60 * time.Second}
}

type providerGuard struct {
	provider Provider
	breaker  *circuitBreaker
	limiter  *rate.Limiter
}

// Multiplex fans requests out to a priority-ordered list of providers, each
// shielded by its own circuit breaker and rate limiter, with shared caching
// and per-symbol request coalescing.
type Multiplex struct {
	logger     *zap.Logger
	guards     []*providerGuard
	cache      *ttlCache
	sf         *singleflight.Group
	ttls       TTLConfig
	indicators *IndicatorEngine
}

// ProviderSpec pairs a Provider with its rate limit (requests/sec, burst).
type ProviderSpec struct {
	Provider Provider
	RPS      float64
	Burst    int
}

// New builds a Multiplex. Providers are tried in the order given.
func New(logger *zap.Logger, specs []ProviderSpec, breakerCfg BreakerConfig, ttls TTLConfig) *Multiplex {
	guards := make([]*providerGuard, 0, len(specs))
	for _, s := range specs {
		guards = append(guards, &providerGuard{
			provider: s.Provider,
			breaker:  newCircuitBreaker(breakerCfg.MaxFailures, breakerCfg.ResetTimeout),
			limiter:  rate.NewLimiter(rate.Limit(s.RPS), s.Burst),
		})
	}
	return &Multiplex{
		logger:     logger.Named("marketdata"),
		guards:     guards,
		cache:      newTTLCache(),
		sf:         &singleflight.Group{},
		ttls:       ttls,
		indicators: NewIndicatorEngine(),
	}
}

// StaleResult wraps a value with whether it was served from an expired
// cache entry after every provider failed (cascaded failure fallback).
type StaleResult[T any] struct {
	Value T
	Stale bool
}

// Candles fetches candles for (symbol, timeframe), trying providers in
// priority order and falling back to stale cache on total failure.
func (m *Multiplex) Candles(ctx context.Context, symbol string, tf types.Timeframe) (StaleResult[[]types.OHLCV], error) {
	key := fmt.Sprintf("candles:%s:%s", symbol, tf)
	v, stale, err := m.fetch(ctx, key, m.ttls.Candles, func(ctx context.Context, p Provider) (any, error) {
		return p.Candles(ctx, symbol, tf)
	})
	if err != nil {
		return StaleResult[[]types.OHLCV]{}, err
	}
	return StaleResult[[]types.OHLCV]{Value: v.([]types.OHLCV), Stale: stale}, nil
}

// Price fetches a current quote for symbol.
func (m *Multiplex) Price(ctx context.Context, symbol string) (StaleResult[types.Quote], error) {
	key := "price:" + symbol
	v, stale, err := m.fetch(ctx, key, m.ttls.Prices, func(ctx context.Context, p Provider) (any, error) {
		return p.Price(ctx, symbol)
	})
	if err != nil {
		return StaleResult[types.Quote]{}, err
	}
	return StaleResult[types.Quote]{Value: v.(types.Quote), Stale: stale}, nil
}

// OptionPrice fetches the current price of a specific option contract.
func (m *Multiplex) OptionPrice(ctx context.Context, optionSymbol string) (StaleResult[decimal.Decimal], error) {
	key := "optprice:" + optionSymbol
	v, stale, err := m.fetch(ctx, key, m.ttls.Prices, func(ctx context.Context, p Provider) (any, error) {
		return p.OptionPrice(ctx, optionSymbol)
	})
	if err != nil {
		return StaleResult[decimal.Decimal]{}, err
	}
	return StaleResult[decimal.Decimal]{Value: v.(decimal.Decimal), Stale: stale}, nil
}

// OptionsChain fetches the options chain for an underlying symbol.
func (m *Multiplex) OptionsChain(ctx context.Context, symbol string) (StaleResult[OptionsChain], error) {
	key := "chain:" + symbol
	v, stale, err := m.fetch(ctx, key, m.ttls.OptionsChain, func(ctx context.Context, p Provider) (any, error) {
		return p.OptionsChain(ctx, symbol)
	})
	if err != nil {
		return StaleResult[OptionsChain]{}, err
	}
	return StaleResult[OptionsChain]{Value: v.(OptionsChain), Stale: stale}, nil
}

// GEX fetches the gamma exposure metric for symbol.
func (m *Multiplex) GEX(ctx context.Context, symbol string) (StaleResult[decimal.Decimal], error) {
	key := "gex:" + symbol
	v, stale, err := m.fetch(ctx, key, m.ttls.GEX, func(ctx context.Context, p Provider) (any, error) {
		return p.GEX(ctx, symbol)
	})
	if err != nil {
		return StaleResult[decimal.Decimal]{}, err
	}
	return StaleResult[decimal.Decimal]{Value: v.(decimal.Decimal), Stale: stale}, nil
}

// Indicators derives indicators from cached/fetched candles in-process,
// with no additional provider call.
func (m *Multiplex) Indicators(ctx context.Context, symbol string, tf types.Timeframe) (StaleResult[map[string]float64], error) {
	key := fmt.Sprintf("indicators:%s:%s", symbol, tf)
	if cached, ok := m.cache.Get(key); ok {
		return StaleResult[map[string]float64]{Value: cached.(map[string]float64)}, nil
	}
	candles, err := m.Candles(ctx, symbol, tf)
	if err != nil {
		return StaleResult[map[string]float64]{}, err
	}
	ind := m.indicators.Derive(candles.Value)
	m.cache.Set(key, ind, m.ttls.Indicators)
	return StaleResult[map[string]float64]{Value: ind, Stale: candles.Stale}, nil
}

// fetch runs the cache -> coalesce -> provider-priority-walk -> stale
// fallback pipeline shared by every public method above. The returned
// bool reports whether the value came from an expired cache entry.
func (m *Multiplex) fetch(ctx context.Context, key string, ttl time.Duration, call func(context.Context, Provider) (any, error)) (any, bool, error) {
	if cached, ok := m.cache.Get(key); ok {
		return cached, false, nil
	}

	type outcome struct {
		value any
		stale bool
	}

	res, err, _ := m.sf.Do(key, func() (any, error) {
		for _, g := range m.guards {
			if !g.breaker.Allow() {
				continue
			}
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			v, err := call(ctx, g.provider)
			if err != nil {
				g.breaker.RecordFailure()
				m.logger.Warn("provider call failed",
					zap.String("provider", string(g.provider.Name())),
					zap.String("key", key),
					zap.Error(err))
				continue
			}
			g.breaker.RecordSuccess()
			m.cache.Set(key, v, ttl)
			return outcome{value: v}, nil
		}

		if stale, ok, wasStale := m.cache.GetStale(key); ok {
			return outcome{value: stale, stale: wasStale}, nil
		}
		return nil, fmt.Errorf("marketdata: all providers failed for %s", key)
	})
	if err != nil {
		return nil, false, err
	}
	o := res.(outcome)
	return o.value, o.stale, nil
}

// Package marketdata presents one interface for candles, prices, options
// chains, and derived indicators, backed by a priority-ordered list of
// upstream providers, each guarded by a circuit breaker, a rate limiter,
// and a short-TTL cache, with per-symbol request coalescing.
package marketdata

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// ProviderName identifies one upstream market-data vendor.
type ProviderName string

const (
	ProviderAlpaca       ProviderName = "alpaca"
	ProviderPolygon      ProviderName = "polygon"
	ProviderMarketDataApp ProviderName = "marketdata"
	ProviderTwelveData   ProviderName = "twelvedata"
	ProviderUnusualWhales ProviderName = "unusualwhales"
)

// OptionContract is one leg of an options chain snapshot.
type OptionContract struct {
	Symbol     string
	Strike     decimal.Decimal
	Expiration string
	Type       string // "call" or "put"
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	Last       decimal.Decimal
	OpenInterest int64
}

// OptionsChain is a snapshot of available contracts for an underlying.
type OptionsChain struct {
	Symbol    string
	Contracts []OptionContract
}

// Provider is the contract every upstream market-data vendor implements.
// Not every provider needs to implement every method meaningfully; ones
// that don't support a method return ErrUnsupported.
type Provider interface {
	Name() ProviderName
	Candles(ctx context.Context, symbol string, tf types.Timeframe) ([]types.OHLCV, error)
	Price(ctx context.Context, symbol string) (types.Quote, error)
	OptionPrice(ctx context.Context, optionSymbol string) (decimal.Decimal, error)
	OptionsChain(ctx context.Context, symbol string) (OptionsChain, error)
	GEX(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ErrUnsupported is returned by a provider for a method it does not serve.
type ErrUnsupported struct {
	Provider ProviderName
	Method   string
}

func (e *ErrUnsupported) Error() string {
	return string(e.Provider) + " does not support " + e.Method
}

package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// restProvider is the shared HTTP plumbing every REST-backed provider
// implementation embeds: a base URL, an API key, and a client with a
// bounded per-call timeout.
type restProvider struct {
	name       ProviderName
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newRESTProvider(name ProviderName, baseURL, apiKey string) restProvider {
	return restProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *restProvider) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", p.name, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AlpacaProvider implements Provider against Alpaca's market-data API.
type AlpacaProvider struct {
	rest restProvider
}

// NewAlpacaProvider creates an AlpacaProvider.
func NewAlpacaProvider(baseURL, apiKey string) *AlpacaProvider {
	return &AlpacaProvider{rest: newRESTProvider(ProviderAlpaca, baseURL, apiKey)}
}

func (p *AlpacaProvider) Name() ProviderName { return ProviderAlpaca }

type alpacaBar struct {
	Timestamp time.Time       `json:"t"`
	Open      decimal.Decimal `json:"o"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Close     decimal.Decimal `json:"c"`
	Volume    decimal.Decimal `json:"v"`
}

type alpacaBarsResponse struct {
	Bars []alpacaBar `json:"bars"`
}

func (p *AlpacaProvider) Candles(ctx context.Context, symbol string, tf types.Timeframe) ([]types.OHLCV, error) {
	var resp alpacaBarsResponse
	q := url.Values{"timeframe": {alpacaTimeframe(tf)}, "limit": {"200"}}
	if err := p.rest.getJSON(ctx, "/v2/stocks/"+symbol+"/bars", q, &resp); err != nil {
		return nil, err
	}
	out := make([]types.OHLCV, len(resp.Bars))
	for i, b := range resp.Bars {
		out[i] = types.OHLCV{Timestamp: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	return out, nil
}

type alpacaQuoteResponse struct {
	Quote struct {
		BidPrice  decimal.Decimal `json:"bp"`
		AskPrice  decimal.Decimal `json:"ap"`
		Timestamp time.Time       `json:"t"`
	} `json:"quote"`
	Trade struct {
		Price  decimal.Decimal `json:"p"`
		Size   decimal.Decimal `json:"s"`
	} `json:"trade"`
}

func (p *AlpacaProvider) Price(ctx context.Context, symbol string) (types.Quote, error) {
	var resp alpacaQuoteResponse
	if err := p.rest.getJSON(ctx, "/v2/stocks/"+symbol+"/quotes/latest", nil, &resp); err != nil {
		return types.Quote{}, err
	}
	return types.Quote{
		Symbol:    symbol,
		Bid:       resp.Quote.BidPrice,
		Ask:       resp.Quote.AskPrice,
		Last:      resp.Trade.Price,
		Volume:    resp.Trade.Size,
		Timestamp: resp.Quote.Timestamp,
	}, nil
}

func (p *AlpacaProvider) OptionPrice(ctx context.Context, optionSymbol string) (decimal.Decimal, error) {
	var resp struct {
		Quote struct {
			AskPrice decimal.Decimal `json:"ap"`
			BidPrice decimal.Decimal `json:"bp"`
		} `json:"quote"`
	}
	if err := p.rest.getJSON(ctx, "/v1beta1/options/quotes/latest", url.Values{"symbols": {optionSymbol}}, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Quote.BidPrice.Add(resp.Quote.AskPrice).Div(decimal.NewFromInt(2)), nil
}

func (p *AlpacaProvider) OptionsChain(ctx context.Context, symbol string) (OptionsChain, error) {
	return OptionsChain{}, &ErrUnsupported{Provider: ProviderAlpaca, Method: "OptionsChain"}
}

func (p *AlpacaProvider) GEX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, &ErrUnsupported{Provider: ProviderAlpaca, Method: "GEX"}
}

func alpacaTimeframe(tf types.Timeframe) string {
	switch tf {
	case types.Timeframe1m:
		return "1Min"
	case types.Timeframe5m:
		return "5Min"
	case types.Timeframe15m:
		return "15Min"
	case types.Timeframe1h:
		return "1Hour"
	case types.Timeframe4h:
		return "4Hour"
	case types.Timeframe1d:
		return "1Day"
	default:
		return "1Min"
	}
}

// PolygonProvider implements Provider against Polygon.io's aggregates API.
type PolygonProvider struct {
	rest restProvider
}

// NewPolygonProvider creates a PolygonProvider.
func NewPolygonProvider(baseURL, apiKey string) *PolygonProvider {
	return &PolygonProvider{rest: newRESTProvider(ProviderPolygon, baseURL, apiKey)}
}

func (p *PolygonProvider) Name() ProviderName { return ProviderPolygon }

type polygonAggsResponse struct {
	Results []struct {
		Timestamp int64           `json:"t"`
		Open      decimal.Decimal `json:"o"`
		High      decimal.Decimal `json:"h"`
		Low       decimal.Decimal `json:"l"`
		Close     decimal.Decimal `json:"c"`
		Volume    decimal.Decimal `json:"v"`
	} `json:"results"`
}

func (p *PolygonProvider) Candles(ctx context.Context, symbol string, tf types.Timeframe) ([]types.OHLCV, error) {
	var resp polygonAggsResponse
	mult, span := polygonSpan(tf)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/2020-01-01/2099-01-01", symbol, mult, span)
	if err := p.rest.getJSON(ctx, path, url.Values{"limit": {"200"}}, &resp); err != nil {
		return nil, err
	}
	out := make([]types.OHLCV, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = types.OHLCV{
			Timestamp: time.UnixMilli(r.Timestamp),
			Open:      r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		}
	}
	return out, nil
}

func polygonSpan(tf types.Timeframe) (int, string) {
	switch tf {
	case types.Timeframe1m:
		return 1, "minute"
	case types.Timeframe5m:
		return 5, "minute"
	case types.Timeframe15m:
		return 15, "minute"
	case types.Timeframe1h:
		return 1, "hour"
	case types.Timeframe4h:
		return 4, "hour"
	case types.Timeframe1d:
		return 1, "day"
	default:
		return 1, "minute"
	}
}

func (p *PolygonProvider) Price(ctx context.Context, symbol string) (types.Quote, error) {
	var resp struct {
		Results struct {
			P decimal.Decimal `json:"p"`
		} `json:"results"`
	}
	if err := p.rest.getJSON(ctx, "/v2/last/trade/"+symbol, nil, &resp); err != nil {
		return types.Quote{}, err
	}
	return types.Quote{Symbol: symbol, Last: resp.Results.P, Timestamp: time.Now()}, nil
}

func (p *PolygonProvider) OptionPrice(ctx context.Context, optionSymbol string) (decimal.Decimal, error) {
	var resp struct {
		Results struct {
			P decimal.Decimal `json:"p"`
		} `json:"results"`
	}
	if err := p.rest.getJSON(ctx, "/v2/last/trade/"+optionSymbol, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Results.P, nil
}

func (p *PolygonProvider) OptionsChain(ctx context.Context, symbol string) (OptionsChain, error) {
	var resp struct {
		Results []struct {
			Details struct {
				Strike         decimal.Decimal `json:"strike_price"`
				ExpirationDate string          `json:"expiration_date"`
				ContractType   string          `json:"contract_type"`
				Ticker         string          `json:"ticker"`
			} `json:"details"`
			LastQuote struct {
				Bid decimal.Decimal `json:"bid"`
				Ask decimal.Decimal `json:"ask"`
			} `json:"last_quote"`
			OpenInterest int64 `json:"open_interest"`
		} `json:"results"`
	}
	if err := p.rest.getJSON(ctx, "/v3/snapshot/options/"+symbol, nil, &resp); err != nil {
		return OptionsChain{}, err
	}
	chain := OptionsChain{Symbol: symbol}
	for _, r := range resp.Results {
		chain.Contracts = append(chain.Contracts, OptionContract{
			Symbol:       r.Details.Ticker,
			Strike:       r.Details.Strike,
			Expiration:   r.Details.ExpirationDate,
			Type:         r.Details.ContractType,
			Bid:          r.LastQuote.Bid,
			Ask:          r.LastQuote.Ask,
			OpenInterest: r.OpenInterest,
		})
	}
	return chain, nil
}

func (p *PolygonProvider) GEX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, &ErrUnsupported{Provider: ProviderPolygon, Method: "GEX"}
}

// MarketDataAppProvider implements Provider against MarketData.app.
type MarketDataAppProvider struct {
	rest restProvider
}

// NewMarketDataAppProvider creates a MarketDataAppProvider.
func NewMarketDataAppProvider(baseURL, apiKey string) *MarketDataAppProvider {
	return &MarketDataAppProvider{rest: newRESTProvider(ProviderMarketDataApp, baseURL, apiKey)}
}

func (p *MarketDataAppProvider) Name() ProviderName { return ProviderMarketDataApp }

func (p *MarketDataAppProvider) Candles(ctx context.Context, symbol string, tf types.Timeframe) ([]types.OHLCV, error) {
	var resp struct {
		T []int64           `json:"t"`
		O []decimal.Decimal `json:"o"`
		H []decimal.Decimal `json:"h"`
		L []decimal.Decimal `json:"l"`
		C []decimal.Decimal `json:"c"`
		V []decimal.Decimal `json:"v"`
	}
	if err := p.rest.getJSON(ctx, "/v1/stocks/candles/"+marketDataResolution(tf)+"/"+symbol, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]types.OHLCV, len(resp.T))
	for i := range resp.T {
		out[i] = types.OHLCV{
			Timestamp: time.Unix(resp.T[i], 0),
			Open:      resp.O[i], High: resp.H[i], Low: resp.L[i], Close: resp.C[i], Volume: resp.V[i],
		}
	}
	return out, nil
}

func marketDataResolution(tf types.Timeframe) string {
	switch tf {
	case types.Timeframe1m:
		return "1"
	case types.Timeframe5m:
		return "5"
	case types.Timeframe15m:
		return "15"
	case types.Timeframe1h:
		return "60"
	case types.Timeframe4h:
		return "240"
	case types.Timeframe1d:
		return "D"
	default:
		return "1"
	}
}

func (p *MarketDataAppProvider) Price(ctx context.Context, symbol string) (types.Quote, error) {
	var resp struct {
		Last   []decimal.Decimal `json:"last"`
		Bid    []decimal.Decimal `json:"bid"`
		Ask    []decimal.Decimal `json:"ask"`
		Volume []decimal.Decimal `json:"volume"`
	}
	if err := p.rest.getJSON(ctx, "/v1/stocks/quotes/"+symbol, nil, &resp); err != nil {
		return types.Quote{}, err
	}
	q := types.Quote{Symbol: symbol, Timestamp: time.Now()}
	if len(resp.Last) > 0 {
		q.Last = resp.Last[0]
	}
	if len(resp.Bid) > 0 {
		q.Bid = resp.Bid[0]
	}
	if len(resp.Ask) > 0 {
		q.Ask = resp.Ask[0]
	}
	if len(resp.Volume) > 0 {
		q.Volume = resp.Volume[0]
	}
	return q, nil
}

func (p *MarketDataAppProvider) OptionPrice(ctx context.Context, optionSymbol string) (decimal.Decimal, error) {
	var resp struct {
		Mid []decimal.Decimal `json:"mid"`
	}
	if err := p.rest.getJSON(ctx, "/v1/options/quotes/"+optionSymbol, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if len(resp.Mid) == 0 {
		return decimal.Zero, fmt.Errorf("marketdata.app: no quote for %s", optionSymbol)
	}
	return resp.Mid[0], nil
}

func (p *MarketDataAppProvider) OptionsChain(ctx context.Context, symbol string) (OptionsChain, error) {
	return OptionsChain{}, &ErrUnsupported{Provider: ProviderMarketDataApp, Method: "OptionsChain"}
}

func (p *MarketDataAppProvider) GEX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, &ErrUnsupported{Provider: ProviderMarketDataApp, Method: "GEX"}
}

// TwelveDataProvider implements Provider against the TwelveData API.
type TwelveDataProvider struct {
	rest restProvider
}

// NewTwelveDataProvider creates a TwelveDataProvider.
func NewTwelveDataProvider(baseURL, apiKey string) *TwelveDataProvider {
	return &TwelveDataProvider{rest: newRESTProvider(ProviderTwelveData, baseURL, apiKey)}
}

func (p *TwelveDataProvider) Name() ProviderName { return ProviderTwelveData }

func (p *TwelveDataProvider) Candles(ctx context.Context, symbol string, tf types.Timeframe) ([]types.OHLCV, error) {
	var resp struct {
		Values []struct {
			Datetime string          `json:"datetime"`
			Open     decimal.Decimal `json:"open"`
			High     decimal.Decimal `json:"high"`
			Low      decimal.Decimal `json:"low"`
			Close    decimal.Decimal `json:"close"`
			Volume   decimal.Decimal `json:"volume"`
		} `json:"values"`
	}
	q := url.Values{"symbol": {symbol}, "interval": {twelveDataInterval(tf)}, "outputsize": {"200"}}
	if err := p.rest.getJSON(ctx, "/time_series", q, &resp); err != nil {
		return nil, err
	}
	out := make([]types.OHLCV, 0, len(resp.Values))
	for i := len(resp.Values) - 1; i >= 0; i-- {
		v := resp.Values[i]
		ts, _ := time.Parse("2006-01-02 15:04:05", v.Datetime)
		out = append(out, types.OHLCV{Timestamp: ts, Open: v.Open, High: v.High, Low: v.Low, Close: v.Close, Volume: v.Volume})
	}
	return out, nil
}

func twelveDataInterval(tf types.Timeframe) string {
	switch tf {
	case types.Timeframe1m:
		return "1min"
	case types.Timeframe5m:
		return "5min"
	case types.Timeframe15m:
		return "15min"
	case types.Timeframe1h:
		return "1h"
	case types.Timeframe4h:
		return "4h"
	case types.Timeframe1d:
		return "1day"
	default:
		return "1min"
	}
}

func (p *TwelveDataProvider) Price(ctx context.Context, symbol string) (types.Quote, error) {
	var resp struct {
		Close  decimal.Decimal `json:"close"`
		Bid    decimal.Decimal `json:"bid"`
		Ask    decimal.Decimal `json:"ask"`
		Volume decimal.Decimal `json:"volume"`
	}
	if err := p.rest.getJSON(ctx, "/quote", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return types.Quote{}, err
	}
	return types.Quote{Symbol: symbol, Last: resp.Close, Bid: resp.Bid, Ask: resp.Ask, Volume: resp.Volume, Timestamp: time.Now()}, nil
}

func (p *TwelveDataProvider) OptionPrice(ctx context.Context, optionSymbol string) (decimal.Decimal, error) {
	return decimal.Zero, &ErrUnsupported{Provider: ProviderTwelveData, Method: "OptionPrice"}
}

func (p *TwelveDataProvider) OptionsChain(ctx context.Context, symbol string) (OptionsChain, error) {
	return OptionsChain{}, &ErrUnsupported{Provider: ProviderTwelveData, Method: "OptionsChain"}
}

func (p *TwelveDataProvider) GEX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, &ErrUnsupported{Provider: ProviderTwelveData, Method: "GEX"}
}

// UnusualWhalesProvider implements Provider against Unusual Whales' options
// flow API; it is the only provider that serves GEX, and it serves options
// chains alongside Polygon. Candles, Price and OptionPrice are unsupported.
type UnusualWhalesProvider struct {
	rest restProvider
}

// NewUnusualWhalesProvider creates an UnusualWhalesProvider.
func NewUnusualWhalesProvider(baseURL, apiKey string) *UnusualWhalesProvider {
	return &UnusualWhalesProvider{rest: newRESTProvider(ProviderUnusualWhales, baseURL, apiKey)}
}

func (p *UnusualWhalesProvider) Name() ProviderName { return ProviderUnusualWhales }

func (p *UnusualWhalesProvider) Candles(ctx context.Context, symbol string, tf types.Timeframe) ([]types.OHLCV, error) {
	return nil, &ErrUnsupported{Provider: ProviderUnusualWhales, Method: "Candles"}
}

func (p *UnusualWhalesProvider) Price(ctx context.Context, symbol string) (types.Quote, error) {
	return types.Quote{}, &ErrUnsupported{Provider: ProviderUnusualWhales, Method: "Price"}
}

func (p *UnusualWhalesProvider) OptionPrice(ctx context.Context, optionSymbol string) (decimal.Decimal, error) {
	return decimal.Zero, &ErrUnsupported{Provider: ProviderUnusualWhales, Method: "OptionPrice"}
}

func (p *UnusualWhalesProvider) OptionsChain(ctx context.Context, symbol string) (OptionsChain, error) {
	var resp struct {
		Data []struct {
			OptionSymbol string          `json:"option_symbol"`
			Strike       decimal.Decimal `json:"strike"`
			Expiry       string          `json:"expiry"`
			Type         string          `json:"option_type"`
			Bid          decimal.Decimal `json:"bid"`
			Ask          decimal.Decimal `json:"ask"`
			OpenInterest int64           `json:"open_interest"`
		} `json:"data"`
	}
	if err := p.rest.getJSON(ctx, "/api/stock/"+symbol+"/option-chains", nil, &resp); err != nil {
		return OptionsChain{}, err
	}
	chain := OptionsChain{Symbol: symbol}
	for _, r := range resp.Data {
		chain.Contracts = append(chain.Contracts, OptionContract{
			Symbol: r.OptionSymbol, Strike: r.Strike, Expiration: r.Expiry,
			Type: r.Type, Bid: r.Bid, Ask: r.Ask, OpenInterest: r.OpenInterest,
		})
	}
	return chain, nil
}

func (p *UnusualWhalesProvider) GEX(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var resp struct {
		Data struct {
			GammaExposure decimal.Decimal `json:"gamma_exposure"`
		} `json:"data"`
	}
	if err := p.rest.getJSON(ctx, "/api/stock/"+symbol+"/greek-exposure", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Data.GammaExposure, nil
}

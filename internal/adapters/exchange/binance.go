package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"marketcache/internal/domain"
)

const defaultBinanceBaseURL = "https://api.binance.com"

// Binance error codes we care about. -1121 is "Invalid symbol",
// -1100 "Illegal characters found in a parameter".
const (
	codeInvalidSymbol    = -1121
	codeIllegalParameter = -1100
)

var binanceTimeframes = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// BinanceSource fetches tickers and klines from the Binance spot REST API.
// A client-side limiter queues bursts locally instead of letting them hit
// upstream HTTP 429s.
type BinanceSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewBinanceSource creates a BinanceSource. baseURL may be empty for the
// production endpoint; rps bounds outgoing requests per second.
func NewBinanceSource(baseURL string, rps float64) *BinanceSource {
	if baseURL == "" {
		baseURL = defaultBinanceBaseURL
	}
	if rps <= 0 {
		rps = 10
	}
	return &BinanceSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Timeframes() []string {
	return binanceTimeframes
}

// marketSymbol converts a display symbol like "BTC/USDT" to the exchange
// form "BTCUSDT".
func marketSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

func (b *BinanceSource) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", marketSymbol(symbol))

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := b.getJSON(ctx, "ticker", "/api/v3/ticker/price", params, symbol, &payload); err != nil {
		return domain.Ticker{}, err
	}

	price, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return domain.Ticker{}, &domain.UpstreamError{Op: "ticker", Err: fmt.Errorf("parse price %q: %w", payload.Price, err)}
	}

	return domain.Ticker{
		Symbol:    strings.ToUpper(symbol),
		Price:     price,
		Timestamp: time.Now().UnixMilli(),
		Exchange:  b.Name(),
	}, nil
}

func (b *BinanceSource) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("symbol", marketSymbol(symbol))
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	// kline rows are heterogeneous arrays: numbers for times, strings for
	// prices and volume
	var rows [][]json.RawMessage
	if err := b.getJSON(ctx, "ohlcv", "/api/v3/klines", params, symbol, &rows); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := decodeKline(row)
		if err != nil {
			return nil, &domain.UpstreamError{Op: "ohlcv", Err: err}
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func decodeKline(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("short kline row: %d fields", len(row))
	}
	var c domain.Candle
	if err := json.Unmarshal(row[0], &c.OpenTime); err != nil {
		return domain.Candle{}, fmt.Errorf("kline open time: %w", err)
	}
	fields := []struct {
		name string
		dst  *float64
		raw  json.RawMessage
	}{
		{"open", &c.Open, row[1]},
		{"high", &c.High, row[2]},
		{"low", &c.Low, row[3]},
		{"close", &c.Close, row[4]},
		{"volume", &c.Volume, row[5]},
	}
	for _, f := range fields {
		v, err := rawFloat(f.raw)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("kline %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return c, nil
}

func (b *BinanceSource) Health(ctx context.Context) error {
	var payload struct {
		ServerTime int64 `json:"serverTime"`
	}
	return b.getJSON(ctx, "health", "/api/v3/time", nil, "", &payload)
}

// rawFloat parses a kline field that Binance encodes as a quoted decimal
// string.
func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// some fields arrive as bare numbers
		var f float64
		if err2 := json.Unmarshal(raw, &f); err2 == nil {
			return f, nil
		}
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

// getJSON performs a rate-limited GET and decodes the response, translating
// upstream failures into the domain error taxonomy.
func (b *BinanceSource) getJSON(ctx context.Context, op, path string, params url.Values, symbol string, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &domain.UpstreamError{Op: op, Err: err}
	}

	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &domain.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return b.classifyError(op, symbol, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classifyError maps an upstream error response onto the domain taxonomy:
// unknown symbols become ErrSymbolNotFound, 429/418 become rate-limit
// rejections, everything else is a generic upstream failure.
func (b *BinanceSource) classifyError(op, symbol string, status int, body []byte) error {
	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case status == http.StatusNotFound,
		apiErr.Code == codeInvalidSymbol,
		apiErr.Code == codeIllegalParameter:
		return domain.NotFound(symbol)
	case status == http.StatusTooManyRequests, status == 418:
		return &domain.UpstreamError{
			Op:          op,
			RateLimited: true,
			Err:         fmt.Errorf("status %d: %s", status, apiErr.Msg),
		}
	default:
		return &domain.UpstreamError{
			Op:  op,
			Err: fmt.Errorf("status %d: %s", status, strings.TrimSpace(apiErr.Msg)),
		}
	}
}

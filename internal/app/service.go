package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketcache/internal/domain"
	"marketcache/internal/ports"
)

const maxCandleLimit = 1000

// Service composes the cacher with the upstream source: it derives cache
// keys, applies per-path TTLs, validates requests before any cache or
// upstream interaction and (de)serializes payloads through the byte-oriented
// cache.
type Service struct {
	logger *slog.Logger
	cacher *Cacher
	source ports.MarketSource

	tickerTTL time.Duration
	candleTTL time.Duration

	timeframes map[string]struct{}
	started    time.Time
}

func NewService(logger *slog.Logger, cacher *Cacher, source ports.MarketSource, tickerTTL, candleTTL time.Duration) *Service {
	tfs := make(map[string]struct{})
	for _, tf := range source.Timeframes() {
		tfs[tf] = struct{}{}
	}
	return &Service{
		logger:     logger,
		cacher:     cacher,
		source:     source,
		tickerTTL:  tickerTTL,
		candleTTL:  candleTTL,
		timeframes: tfs,
		started:    time.Now(),
	}
}

// GetTicker returns the latest price for symbol, cached for the ticker TTL.
func (s *Service) GetTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return domain.Ticker{}, err
	}

	key := "realtime:" + symbol
	entry, err := s.cacher.GetOrFetch(ctx, key, s.tickerTTL, func(ctx context.Context) ([]byte, error) {
		tick, err := s.source.FetchTicker(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return json.Marshal(tick)
	})
	if err != nil {
		return domain.Ticker{}, err
	}

	var tick domain.Ticker
	if err := json.Unmarshal(entry.Value, &tick); err != nil {
		return domain.Ticker{}, fmt.Errorf("decode cached ticker %q: %w", key, err)
	}
	return tick, nil
}

// GetCandles returns up to limit OHLCV candles for symbol at the given
// timeframe, cached for the candle TTL. Closed candles do not change, so
// the candle TTL is typically much longer than the ticker TTL.
func (s *Service) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (domain.CandleSeries, error) {
	symbol, err := normalizeSymbol(symbol)
	if err != nil {
		return domain.CandleSeries{}, err
	}
	if limit <= 0 || limit > maxCandleLimit {
		return domain.CandleSeries{}, &domain.ValidationError{
			Field:  "limit",
			Reason: fmt.Sprintf("must be between 1 and %d", maxCandleLimit),
		}
	}
	if _, ok := s.timeframes[timeframe]; !ok {
		return domain.CandleSeries{}, &domain.ValidationError{
			Field:  "timeframe",
			Reason: fmt.Sprintf("%q is not supported; supported: %s", timeframe, strings.Join(s.source.Timeframes(), ", ")),
		}
	}

	key := fmt.Sprintf("historical:%s:%s:%d", symbol, timeframe, limit)
	entry, err := s.cacher.GetOrFetch(ctx, key, s.candleTTL, func(ctx context.Context) ([]byte, error) {
		candles, err := s.source.FetchOHLCV(ctx, symbol, timeframe, limit)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, domain.NotFound(symbol)
		}
		return json.Marshal(domain.CandleSeries{
			Symbol:    symbol,
			Timeframe: timeframe,
			Candles:   candles,
			Exchange:  s.source.Name(),
		})
	})
	if err != nil {
		return domain.CandleSeries{}, err
	}

	var series domain.CandleSeries
	if err := json.Unmarshal(entry.Value, &series); err != nil {
		return domain.CandleSeries{}, fmt.Errorf("decode cached candles %q: %w", key, err)
	}
	return series, nil
}

// Status is the health-check report.
type Status struct {
	Status           string  `json:"status"`
	ServerTimeMs     int64   `json:"server_time_ms"`
	Exchange         string  `json:"exchange_id"`
	ExchangeStatus   string  `json:"exchange_status"`
	CacheStatus      string  `json:"cache_status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TickerTTLSeconds float64 `json:"ticker_ttl_seconds"`
	CandleTTLSeconds float64 `json:"candle_ttl_seconds"`
}

// GetStatus reports upstream and cache reachability. The returned error is
// non-nil when the exchange is unreachable; the Status is populated either
// way so handlers can serve a body alongside a 503.
func (s *Service) GetStatus(ctx context.Context) (Status, error) {
	st := Status{
		Status:           "online",
		ServerTimeMs:     time.Now().UnixMilli(),
		Exchange:         s.source.Name(),
		ExchangeStatus:   "connected",
		CacheStatus:      "ok",
		UptimeSeconds:    time.Since(s.started).Seconds(),
		TickerTTLSeconds: s.tickerTTL.Seconds(),
		CandleTTLSeconds: s.candleTTL.Seconds(),
	}

	if err := s.cacher.Health(ctx); err != nil {
		s.logger.Warn("cache health check failed", "err", err)
		st.CacheStatus = "unreachable"
	}

	if err := s.source.Health(ctx); err != nil {
		st.Status = "degraded"
		st.ExchangeStatus = "unreachable"
		return st, fmt.Errorf("exchange connection failed: %w", err)
	}
	return st, nil
}

func normalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", &domain.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	return symbol, nil
}

package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketcache/internal/adapters/cache"
	"marketcache/internal/domain"
)

type stubSource struct {
	tickerCalls atomic.Int64
	ohlcvCalls  atomic.Int64

	tickerFn  func(symbol string) (domain.Ticker, error)
	ohlcvFn   func(symbol, timeframe string, limit int) ([]domain.Candle, error)
	healthErr error
}

func (s *stubSource) Name() string                     { return "stub" }
func (s *stubSource) Timeframes() []string             { return []string{"1m", "1h", "4h", "1d"} }
func (s *stubSource) Health(ctx context.Context) error { return s.healthErr }

func (s *stubSource) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	s.tickerCalls.Add(1)
	if s.tickerFn != nil {
		return s.tickerFn(symbol)
	}
	return domain.Ticker{Symbol: symbol, Price: 65000.5, Timestamp: time.Now().UnixMilli(), Exchange: "stub"}, nil
}

func (s *stubSource) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	s.ohlcvCalls.Add(1)
	if s.ohlcvFn != nil {
		return s.ohlcvFn(symbol, timeframe, limit)
	}
	candles := make([]domain.Candle, limit)
	for i := range candles {
		candles[i] = domain.Candle{OpenTime: int64(i) * 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	}
	return candles, nil
}

func newTestService(src *stubSource, tickerTTL, candleTTL time.Duration) *Service {
	cacher := NewCacher(testLogger(), cache.NewMemoryCache())
	return NewService(testLogger(), cacher, src, tickerTTL, candleTTL)
}

func TestGetTickerUsesCacheWithinTTL(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	svc := newTestService(src, 5*time.Second, time.Hour)

	first, err := svc.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)
	second, err := svc.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, int64(1), src.tickerCalls.Load(), "second call within TTL must be served from cache")
	assert.Equal(t, first, second)
	assert.Equal(t, "BTC/USDT", first.Symbol)
}

func TestGetTickerRefetchesAfterTTL(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	svc := newTestService(src, 30*time.Millisecond, time.Hour)

	_, err := svc.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = svc.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.tickerCalls.Load())
}

func TestGetTickerNormalizesSymbolCase(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	svc := newTestService(src, time.Minute, time.Hour)

	_, err := svc.GetTicker(ctx, "btc/usdt")
	require.NoError(t, err)
	tick, err := svc.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)

	assert.Equal(t, int64(1), src.tickerCalls.Load(), "case variants must share one cache entry")
	assert.Equal(t, "BTC/USDT", tick.Symbol)
}

func TestGetTickerEmptySymbol(t *testing.T) {
	src := &stubSource{}
	svc := newTestService(src, time.Minute, time.Hour)

	_, err := svc.GetTicker(context.Background(), "  ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, src.tickerCalls.Load(), "validation failures must not reach upstream")
}

func TestGetTickerUnknownSymbolNotCached(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{
		tickerFn: func(symbol string) (domain.Ticker, error) {
			return domain.Ticker{}, domain.NotFound(symbol)
		},
	}
	svc := newTestService(src, time.Minute, time.Hour)

	_, err := svc.GetTicker(ctx, "NONEXISTENT/PAIR")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.GetTicker(ctx, "NONEXISTENT/PAIR")
	require.Error(t, err)
	assert.Equal(t, int64(2), src.tickerCalls.Load(), "a not-found result must not be cached")
}

func TestGetTickerIsolatesSymbols(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{
		tickerFn: func(symbol string) (domain.Ticker, error) {
			price := 100.0
			if symbol == "ETH/USDT" {
				price = 200.0
			}
			return domain.Ticker{Symbol: symbol, Price: price, Exchange: "stub"}, nil
		},
	}
	svc := newTestService(src, time.Minute, time.Hour)

	btc, err := svc.GetTicker(ctx, "BTC/USDT")
	require.NoError(t, err)
	eth, err := svc.GetTicker(ctx, "ETH/USDT")
	require.NoError(t, err)

	assert.Equal(t, int64(2), src.tickerCalls.Load())
	assert.Equal(t, 100.0, btc.Price)
	assert.Equal(t, 200.0, eth.Price)
}

func TestGetCandlesReturnsOrderedSeries(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	svc := newTestService(src, time.Minute, time.Hour)

	series, err := svc.GetCandles(ctx, "SOL/USDT", "4h", 5)
	require.NoError(t, err)

	assert.Equal(t, "SOL/USDT", series.Symbol)
	assert.Equal(t, "4h", series.Timeframe)
	require.Len(t, series.Candles, 5)
	for i := 1; i < len(series.Candles); i++ {
		assert.Less(t, series.Candles[i-1].OpenTime, series.Candles[i].OpenTime)
	}
}

func TestGetCandlesCachedPerQuery(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{}
	svc := newTestService(src, time.Minute, time.Hour)

	_, err := svc.GetCandles(ctx, "SOL/USDT", "4h", 5)
	require.NoError(t, err)
	_, err = svc.GetCandles(ctx, "SOL/USDT", "4h", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.ohlcvCalls.Load(), "identical historical queries share one entry")

	// a different limit is a different cache key
	_, err = svc.GetCandles(ctx, "SOL/USDT", "4h", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.ohlcvCalls.Load())
}

func TestGetCandlesValidation(t *testing.T) {
	src := &stubSource{}
	svc := newTestService(src, time.Minute, time.Hour)
	ctx := context.Background()

	cases := []struct {
		name      string
		symbol    string
		timeframe string
		limit     int
	}{
		{"zero limit", "BTC/USDT", "1h", 0},
		{"negative limit", "BTC/USDT", "1h", -3},
		{"oversized limit", "BTC/USDT", "1h", 5000},
		{"unsupported timeframe", "BTC/USDT", "7h", 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetCandles(ctx, tc.symbol, tc.timeframe, tc.limit)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
	assert.Zero(t, src.ohlcvCalls.Load(), "validation failures must not reach upstream")
}

func TestGetCandlesEmptyResultIsNotFound(t *testing.T) {
	src := &stubSource{
		ohlcvFn: func(symbol, timeframe string, limit int) ([]domain.Candle, error) {
			return nil, nil
		},
	}
	svc := newTestService(src, time.Minute, time.Hour)

	_, err := svc.GetCandles(context.Background(), "BTC/USDT", "1h", 10)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestGetStatus(t *testing.T) {
	src := &stubSource{}
	svc := newTestService(src, 5*time.Second, time.Hour)

	st, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", st.Status)
	assert.Equal(t, "connected", st.ExchangeStatus)
	assert.Equal(t, "ok", st.CacheStatus)
	assert.Equal(t, 5.0, st.TickerTTLSeconds)
}

func TestGetStatusExchangeDown(t *testing.T) {
	src := &stubSource{healthErr: assert.AnError}
	svc := newTestService(src, time.Second, time.Hour)

	st, err := svc.GetStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, "degraded", st.Status)
	assert.Equal(t, "unreachable", st.ExchangeStatus)
}

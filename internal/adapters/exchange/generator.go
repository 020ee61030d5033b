package exchange

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"marketcache/internal/domain"
)

// GeneratorSource produces synthetic market data for a fixed symbol set.
// Prices follow a random walk per symbol; candles are fabricated backwards
// from now, aligned to the timeframe. Symbols outside the set return
// ErrSymbolNotFound so the full error path works without a network.
type GeneratorSource struct {
	name string

	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

var generatorTimeframes = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

// NewGeneratorSource seeds a starting price per symbol.
func NewGeneratorSource(name string, symbols []string) *GeneratorSource {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	prices := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(s)
		switch {
		case strings.HasPrefix(s, "BTC"):
			prices[s] = 50000 + rng.Float64()*1000
		case strings.HasPrefix(s, "ETH"):
			prices[s] = 3000 + rng.Float64()*100
		default:
			prices[s] = 1 + rng.Float64()*10
		}
	}
	return &GeneratorSource{
		name:   name,
		prices: prices,
		rng:    rng,
	}
}

func (g *GeneratorSource) Name() string { return g.name }

func (g *GeneratorSource) Timeframes() []string {
	return generatorTimeframes
}

func (g *GeneratorSource) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	symbol = strings.ToUpper(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.prices[symbol]
	if !ok {
		return domain.Ticker{}, domain.NotFound(symbol)
	}

	// random walk step
	p += (g.rng.Float64() - 0.5) * 0.02 * p
	if p <= 0 {
		p = g.rng.Float64() * 10
	}
	g.prices[symbol] = p

	return domain.Ticker{
		Symbol:    symbol,
		Price:     p,
		Timestamp: time.Now().UnixMilli(),
		Exchange:  g.name,
	}, nil
}

func (g *GeneratorSource) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	symbol = strings.ToUpper(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.prices[symbol]
	if !ok {
		return nil, domain.NotFound(symbol)
	}

	step := timeframeDuration(timeframe)
	end := time.Now().Truncate(step)
	candles := make([]domain.Candle, limit)
	for i := limit - 1; i >= 0; i-- {
		open := p
		high := open * (1 + g.rng.Float64()*0.01)
		low := open * (1 - g.rng.Float64()*0.01)
		closep := low + g.rng.Float64()*(high-low)
		candles[i] = domain.Candle{
			OpenTime: end.Add(-time.Duration(limit-i) * step).UnixMilli(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closep,
			Volume:   g.rng.Float64() * 100,
		}
		p = closep
	}
	return candles, nil
}

func (g *GeneratorSource) Health(ctx context.Context) error {
	return nil
}

func timeframeDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

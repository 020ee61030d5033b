package ports

import (
	"context"

	"marketcache/internal/domain"
)

// MarketSource is the upstream exchange adapter. FetchTicker and FetchOHLCV
// return domain.ErrSymbolNotFound (wrapped) for unknown symbols and
// *domain.UpstreamError for transport or rate-limit failures.
type MarketSource interface {
	Name() string
	FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
	Timeframes() []string
	Health(ctx context.Context) error
}

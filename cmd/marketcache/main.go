package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketcache/internal/adapters/cache"
	"marketcache/internal/adapters/exchange"
	"marketcache/internal/app"
	"marketcache/internal/config"
	"marketcache/internal/http"
	"marketcache/internal/logging"
	"marketcache/internal/ports"
)

const usageText = `Usage:
  marketcache [--port <N>]
  marketcache --help

Options:
  --port N     Port number (overrides env SERVER_PORT)
`

func main() {
	portFlag := flag.Int("port", 0, "Port number (overrides env SERVER_PORT)")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Print(usageText)
		return
	}

	cfg := config.Load()
	if *portFlag != 0 {
		cfg.HTTPPort = *portFlag
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	// Graceful context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("marketcache starting")

	// --- Cache ---
	var c ports.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis not available, using in-memory cache", "err", err)
			c = cache.NewMemoryCache()
		} else {
			logger.Info("redis cache connected", "addr", cfg.RedisAddr)
			c = redisCache
		}
	} else {
		c = cache.NewMemoryCache()
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("error closing cache", "err", err)
		}
	}()

	// --- Upstream source ---
	var src ports.MarketSource
	switch cfg.Exchange {
	case "generator":
		src = exchange.NewGeneratorSource("generator", cfg.GeneratorSymbols)
		logger.Info("using synthetic market data source")
	default:
		src = exchange.NewBinanceSource(cfg.BinanceBaseURL, cfg.UpstreamRateLimit)
	}

	// --- Service ---
	cacher := app.NewCacher(logger, c)
	svc := app.NewService(logger, cacher, src, cfg.TickerTTL, cfg.CandleTTL)

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := http.NewServer(addr, svc, logger)

	if err := httpSrv.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("http server failed", "err", err)
		stop()
		os.Exit(1)
	}

	logger.Info("marketcache stopped")
}

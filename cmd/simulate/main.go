// Command simulate runs every strategy in the closed set against the
// current live BTC 15-minute market without submitting real orders, then
// prints a sorted comparison table — the multi-strategy simulator's CLI
// entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"btcupdown/internal/config"
	"btcupdown/internal/discovery"
	"btcupdown/internal/feed"
	"btcupdown/internal/journal"
	"btcupdown/internal/orderbook"
	"btcupdown/internal/simulator"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BTCUPDOWN_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disc := discovery.New(*cfg, logger)
	market, err := disc.Find(ctx)
	if err != nil {
		logger.Error("market discovery failed", "error", err)
		os.Exit(1)
	}
	logger.Info("simulating against market", "market", market.EventSlug, "end_time", market.EndTime)

	priceFeed := feed.NewState()
	primary := feed.NewWorker(feed.Source{
		URL:   "wss://stream.binance.com:9443/ws/btcusdt@ticker",
		Parse: feed.ParseBinanceTicker,
	}, priceFeed, true, logger)
	go func() {
		if err := primary.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("price feed exited", "error", err)
		}
	}()

	books := orderbook.NewManager()
	subscriber := orderbook.NewSubscriber(cfg.API.WSMarketURL, []string{market.UpTokenID, market.DownTokenID}, books, logger)
	go func() {
		if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("orderbook subscriber exited", "error", err)
		}
	}()

	trades, err := journal.OpenTrades(cfg.Store.TradeDBPath)
	if err != nil {
		logger.Error("failed to open trade journal", "error", err)
		os.Exit(1)
	}
	defer trades.Close()

	sim := simulator.New(*market, cfg.Strategy, cfg.Risk, priceFeed, books, trades, logger)
	results, err := sim.Run(ctx, 500*time.Millisecond, time.Now().UTC())
	if err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(simulator.FormatTable(results))
}

// Command bot is the BTC 15-minute up/down trader.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires every component, runs the discover/trade loop
//	internal/discovery        — polls the Gamma API for the current tradable 15-minute BTC market
//	internal/feed              — primary/fallback BTC reference-price WebSocket workers
//	internal/orderbook         — local order book mirror fed by the CLOB market-data WebSocket
//	internal/signer/presign    — EIP-712 order signing, pre-signed at every tick/size bucket
//	internal/exchange          — REST client for the Polymarket CLOB (place/cancel orders, fetch book)
//	internal/strategy          — the closed strategy set; the session runner drives Directional
//	internal/session           — per-market state machine: DISCOVERED -> ... -> RESOLVED
//	internal/journal           — per-session JSON-lines event log + embedded SQLite trade journal
//	internal/alert             — fire-and-forget Discord notifications
//	internal/store             — relational persistence for the order-flow reputation pipeline
//	internal/onchain           — on-chain CTF exchange event listener feeding the reputation pipeline
//	internal/reputation        — wallet scoring, signal generation, and risk-gated signal execution
//
// The BTC session loop and the order-flow reputation pipeline are
// independent: the former trades the current 15-minute market directly,
// the latter watches every wallet's on-chain fills across all markets and
// follows/fades them on its own schedule. Both share the same signer and
// exchange client; the reputation pipeline only starts if orderflow.database_url
// is configured.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"btcupdown/internal/alert"
	"btcupdown/internal/config"
	"btcupdown/internal/discovery"
	"btcupdown/internal/exchange"
	"btcupdown/internal/feed"
	"btcupdown/internal/journal"
	"btcupdown/internal/onchain"
	"btcupdown/internal/orderbook"
	"btcupdown/internal/presign"
	"btcupdown/internal/reputation"
	"btcupdown/internal/session"
	"btcupdown/internal/signer"
	"btcupdown/internal/store"
	"btcupdown/internal/strategy"
	"btcupdown/pkg/types"
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
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Level)
	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sgn, err := signer.New(cfg.Wallet.PrivateKey, cfg.Wallet.FunderAddress)
	if err != nil {
		logger.Error("failed to build signer", "error", err)
		os.Exit(1)
	}

	auth, err := exchange.NewAuth(*cfg)
	if err != nil {
		logger.Error("failed to build auth", "error", err)
		os.Exit(1)
	}
	client := exchange.NewClient(*cfg, auth, logger)

	if !auth.HasL2Credentials() {
		if creds, err := client.DeriveAPIKey(ctx); err != nil {
			logger.Warn("derive API key failed, continuing with configured credentials", "error", err)
		} else {
			auth.SetCredentials(*creds)
			logger.Info("derived L2 API credentials")
		}
	}

	priceFeed := feed.NewState()
	primary := feed.NewWorker(feed.Source{
		URL:   "wss://stream.binance.com:9443/ws/btcusdt@ticker",
		Parse: feed.ParseBinanceTicker,
	}, priceFeed, true, logger)
	fallback := feed.NewWorker(feed.Source{
		URL:   "wss://ws-feed.exchange.coinbase.com",
		Parse: feed.ParseCoinbase24hrTicker,
		SubscribeMsg: []byte(`{"type":"subscribe","channels":[{"name":"ticker","product_ids":["BTC-USD"]}]}`),
	}, priceFeed, false, logger)

	var wg sync.WaitGroup
	runWorker := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("background worker exited", "worker", name, "error", err)
			}
		}()
	}
	runWorker("price_feed_primary", primary.Run)
	runWorker("price_feed_fallback", fallback.Run)

	books := orderbook.NewManager()
	presignCache := presign.New(sgn)
	notifier := alert.New(cfg.Submit.DiscordWebhook, logger)
	disc := discovery.New(*cfg, logger)

	var userFeed *exchange.UserFeed
	if auth.HasL2Credentials() && cfg.API.WSUserURL != "" {
		userFeed = exchange.NewUserFeed(cfg.API.WSUserURL, client.Auth(), logger)
		runWorker("user_feed", userFeed.Run)
	}

	trades, err := journal.OpenTrades(cfg.Store.TradeDBPath)
	if err != nil {
		logger.Error("failed to open trade journal", "error", err)
		os.Exit(1)
	}
	defer trades.Close()

	if cfg.OrderFlow.DatabaseURL != "" {
		runWorker("order_flow_pipeline", func(ctx context.Context) error {
			return runOrderFlowPipeline(ctx, cfg, client, sgn, disc, logger)
		})
	} else {
		logger.Info("order-flow reputation pipeline disabled (orderflow.database_url not set)")
	}

	for ctx.Err() == nil {
		market, err := disc.Find(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("market discovery failed", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		runMarketSession(ctx, cfg, market, client, sgn, presignCache, books, priceFeed, trades, notifier, userFeed, logger)
	}

	logger.Info("waiting for background workers to exit")
	wg.Wait()
	logger.Info("shutdown complete")
}

// runMarketSession subscribes the orderbook mirror to one market's tokens,
// drives its session runner to resolution, and logs the outcome. Any error
// is logged and swallowed so the outer discovery loop moves on to the next
// market rather than exiting the process.
func runMarketSession(
	ctx context.Context,
	cfg *config.Config,
	market *types.Market,
	client *exchange.Client,
	sgn *signer.Signer,
	presignCache *presign.Cache,
	books *orderbook.Manager,
	priceFeed *feed.State,
	trades *journal.Trades,
	notifier *alert.Notifier,
	userFeed *exchange.UserFeed,
	logger *slog.Logger,
) {
	sessionLogger := logger.With("market", market.EventSlug)
	sessionLogger.Info("discovered tradable market", "condition_id", market.ConditionID, "end_time", market.EndTime)

	events, err := journal.OpenEventLog("logs", config.SessionLogFilename(time.Now()))
	if err != nil {
		sessionLogger.Error("failed to open session event log", "error", err)
		return
	}
	defer events.Close()

	strat, err := strategy.New(strategy.NameDirectional, cfg.Strategy, cfg.Risk)
	if err != nil {
		sessionLogger.Error("failed to build strategy", "error", err)
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	subscriber := orderbook.NewSubscriber(cfg.API.WSMarketURL, []string{market.UpTokenID, market.DownTokenID}, books, sessionLogger)
	go func() {
		if err := subscriber.Run(subCtx); err != nil && subCtx.Err() == nil {
			sessionLogger.Warn("orderbook subscriber exited", "error", err)
		}
	}()

	if err := presignCache.Populate(ctx, market.UpTokenID, market.DownTokenID, market.TickSize, market.NegRisk); err != nil {
		sessionLogger.Warn("pre-sign cache population failed", "error", err)
	}

	runner := session.New(*market, *cfg, client, sgn, presignCache, books, priceFeed, strat, events, trades, notifier, userFeed, sessionLogger)
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		sessionLogger.Error("session runner exited with error", "error", err)
	}
}

// runOrderFlowPipeline opens the reputation store and runs the on-chain
// listener, calculator, signal generator, and executor as one group until
// ctx is cancelled. A failure to open the store is fatal to the pipeline
// only — the BTC session loop keeps running.
func runOrderFlowPipeline(
	ctx context.Context,
	cfg *config.Config,
	client *exchange.Client,
	sgn *signer.Signer,
	disc *discovery.Discoverer,
	logger *slog.Logger,
) error {
	st, err := store.Open(cfg.OrderFlow.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open reputation store: %w", err)
	}
	defer st.Close()

	listener, err := onchain.New(ctx, cfg.OrderFlow.PolygonRPCURL, st, logger)
	if err != nil {
		return fmt.Errorf("start on-chain listener: %w", err)
	}
	listener.SetMarketResolver(newTokenMarketCache(disc, logger).resolve)

	calc := reputation.NewCalculatorRunner(st, time.Duration(cfg.OrderFlow.CalculationIntervalSeconds)*time.Second, logger)
	gen := reputation.NewGenerator(st, cfg.OrderFlow, disc, logger)
	gate := reputation.NewGate(cfg.Risk, logger)
	submitter := reputation.NewExchangeSubmitter(client, sgn, disc)
	exec := reputation.NewExecutor(st, gate, submitter, cfg.OrderFlow, cfg.Risk.KellyFraction, cfg.Strategy.MaxPositionUSD, logger)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("order-flow component exited", "component", name, "error", err)
			}
		}()
	}
	run("onchain_listener", listener.Run)
	run("reputation_calculator", calc.Run)
	run("signal_generator", gen.Run)
	run("signal_executor", exec.Run)

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// tokenMarketCache maps on-chain token IDs to condition IDs for the
// listener. It holds a discovery handle but does not query it: the map
// starts empty and nothing in this file adds entries to it.
type tokenMarketCache struct {
	mu     sync.Mutex
	known  map[string]string
	disc   *discovery.Discoverer
	logger *slog.Logger
}

func newTokenMarketCache(disc *discovery.Discoverer, logger *slog.Logger) *tokenMarketCache {
	return &tokenMarketCache{known: make(map[string]string), disc: disc, logger: logger}
}

// resolve looks up the condition ID a token belongs to in the cache
// (discovery's toMarket/ByCondition are keyed the other way round); absent
// a hit, which with an empty cache is every lookup, it returns the raw
// token ID so the caller still gets a stable key to group trades by.
func (c *tokenMarketCache) resolve(tokenID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if marketID, ok := c.known[tokenID]; ok {
		return marketID
	}
	return tokenID
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

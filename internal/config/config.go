// Package config defines all configuration for the trader and the
// order-flow pipeline. Config is loaded from a YAML file (default:
// configs/config.yaml); the fields listed in envBindings below can also be
// overridden by flat environment variables. Fields not listed there (for
// example wallet.chain_id or the api URLs) come from the file only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure; the leaves listed in envBindings also bind to one flat
// environment variable each.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	API       APIConfig       `mapstructure:"api"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Submit    SubmitConfig    `mapstructure:"submit"`
	OrderFlow OrderFlowConfig `mapstructure:"orderflow"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`     // PRIVATE_KEY
	Address       string `mapstructure:"address"`         // POLY_ADDRESS
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds Polymarket API endpoints and L2 credentials.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
	WSUserURL    string `mapstructure:"ws_user_url"`
	ApiKey       string `mapstructure:"api_key"`    // POLY_API_KEY
	Secret       string `mapstructure:"secret"`     // POLY_API_SECRET
	Passphrase   string `mapstructure:"passphrase"` // POLY_API_PASSPHRASE
}

// StrategyConfig tunes the session runner's Directional entry ladder.
type StrategyConfig struct {
	MaxPositionUSD      float64 `mapstructure:"max_position_usd"`       // MAX_POSITION_USD
	AccountBalance      float64 `mapstructure:"account_balance"`        // ACCOUNT_BALANCE
	TargetSpreadPercent float64 `mapstructure:"target_spread_percent"`  // TARGET_SPREAD_PERCENT
	MinSpreadPercent    float64 `mapstructure:"min_spread_percent"`     // MIN_SPREAD_PERCENT
	LadderLevels        int     `mapstructure:"ladder_levels"`          // LADDER_LEVELS
	OrderSizePerLevel   float64 `mapstructure:"order_size_per_level"`   // ORDER_SIZE_PER_LEVEL
	EntryMinuteMin      float64 `mapstructure:"entry_minute_min"`
	EntryMinuteMax      float64 `mapstructure:"entry_minute_max"`
	MaxEntryPrice       float64 `mapstructure:"max_entry_price"`
	LimitOffset         float64 `mapstructure:"limit_offset"`
	LadderSpacing       float64 `mapstructure:"ladder_spacing"`

	// Avellaneda-Stoikov tuning for the Market Maker strategy.
	Gamma            float64       `mapstructure:"gamma"`              // GAMMA, risk aversion
	Sigma            float64       `mapstructure:"sigma"`              // SIGMA, volatility estimate
	K                float64       `mapstructure:"k"`                  // K, order arrival intensity
	T                float64       `mapstructure:"t"`                  // T, time horizon
	DefaultSpreadBps int           `mapstructure:"default_spread_bps"` // DEFAULT_SPREAD_BPS
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`   // REFRESH_INTERVAL

	// Scalper exit thresholds, expressed as a price delta from entry.
	TakeProfitPrice float64 `mapstructure:"take_profit_price"` // TAKE_PROFIT_PRICE
	StopLossPrice   float64 `mapstructure:"stop_loss_price"`   // STOP_LOSS_PRICE
}

// RiskConfig sets hard limits on the reputation pipeline's executor.
type RiskConfig struct {
	MaxOpenPositions int     `mapstructure:"max_open_positions"` // MAX_OPEN_POSITIONS
	MaxDailyLoss     float64 `mapstructure:"max_daily_loss"`     // MAX_DAILY_LOSS
	KellyFraction    float64 `mapstructure:"kelly_fraction"`     // KELLY_FRACTION
}

// SubmitConfig configures the CLOB client's multi-path submission fallthrough.
type SubmitConfig struct {
	LambdaProxyURL  string `mapstructure:"lambda_proxy_url"`  // LAMBDA_PROXY_URL
	ProxyURL        string `mapstructure:"proxy_url"`         // PROXY_URL
	ScrapelessToken string `mapstructure:"scrapeless_token"`  // SCRAPELESS_TOKEN
	DiscordWebhook  string `mapstructure:"discord_webhook"`   // DISCORD_WEBHOOK
}

// OrderFlowConfig configures the reputation calculator, signal generator,
// and executor.
type OrderFlowConfig struct {
	DatabaseURL                string  `mapstructure:"database_url"`                  // DATABASE_URL
	PolygonRPCURL              string  `mapstructure:"polygon_rpc_url"`               // POLYGON_RPC_URL
	MinSignalConfidence        float64 `mapstructure:"min_signal_confidence"`         // MIN_SIGNAL_CONFIDENCE
	MinWhaleScore              float64 `mapstructure:"min_whale_score"`               // MIN_WHALE_SCORE
	MaxFadeScore                float64 `mapstructure:"max_fade_score"`                // MAX_FADE_SCORE
	CalculationIntervalSeconds int     `mapstructure:"calculation_interval_seconds"`  // CALCULATION_INTERVAL_SECONDS
	EnablePaperTrading         bool    `mapstructure:"enable_paper_trading"`          // ENABLE_PAPER_TRADING
	EnableWhaleFollowing       bool    `mapstructure:"enable_whale_following"`        // ENABLE_WHALE_FOLLOWING
	EnableDegenFading          bool    `mapstructure:"enable_degen_fading"`           // ENABLE_DEGEN_FADING
}

// StoreConfig sets where the local trade journal is persisted.
type StoreConfig struct {
	TradeDBPath string `mapstructure:"trade_db_path"` // TRADE_DB_PATH
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level string `mapstructure:"level"` // LOG_LEVEL
}

// envBindings lists every (viper key, env var) pair named in the external
// interfaces. Using explicit binds rather than a prefix+replacer because the
// names are flat and historical (PRIVATE_KEY, not WALLET_PRIVATE_KEY).
var envBindings = map[string]string{
	"wallet.private_key":               "PRIVATE_KEY",
	"wallet.address":                   "POLY_ADDRESS",
	"api.api_key":                      "POLY_API_KEY",
	"api.secret":                       "POLY_API_SECRET",
	"api.passphrase":                   "POLY_API_PASSPHRASE",
	"strategy.max_position_usd":        "MAX_POSITION_USD",
	"strategy.account_balance":         "ACCOUNT_BALANCE",
	"strategy.target_spread_percent":   "TARGET_SPREAD_PERCENT",
	"strategy.min_spread_percent":      "MIN_SPREAD_PERCENT",
	"strategy.ladder_levels":           "LADDER_LEVELS",
	"strategy.order_size_per_level":    "ORDER_SIZE_PER_LEVEL",
	"strategy.gamma":                   "GAMMA",
	"strategy.sigma":                   "SIGMA",
	"strategy.k":                       "K",
	"strategy.t":                       "T",
	"strategy.default_spread_bps":      "DEFAULT_SPREAD_BPS",
	"strategy.refresh_interval":        "REFRESH_INTERVAL",
	"strategy.take_profit_price":       "TAKE_PROFIT_PRICE",
	"strategy.stop_loss_price":         "STOP_LOSS_PRICE",
	"dry_run":                          "DRY_RUN",
	"logging.level":                    "LOG_LEVEL",
	"submit.discord_webhook":           "DISCORD_WEBHOOK",
	"submit.lambda_proxy_url":          "LAMBDA_PROXY_URL",
	"submit.proxy_url":                 "PROXY_URL",
	"submit.scrapeless_token":          "SCRAPELESS_TOKEN",
	"orderflow.database_url":           "DATABASE_URL",
	"orderflow.polygon_rpc_url":        "POLYGON_RPC_URL",
	"orderflow.min_signal_confidence":  "MIN_SIGNAL_CONFIDENCE",
	"orderflow.min_whale_score":        "MIN_WHALE_SCORE",
	"orderflow.max_fade_score":         "MAX_FADE_SCORE",
	"orderflow.calculation_interval_seconds": "CALCULATION_INTERVAL_SECONDS",
	"orderflow.enable_paper_trading":   "ENABLE_PAPER_TRADING",
	"orderflow.enable_whale_following": "ENABLE_WHALE_FOLLOWING",
	"orderflow.enable_degen_fading":    "ENABLE_DEGEN_FADING",
	"risk.max_open_positions":          "MAX_OPEN_POSITIONS",
	"risk.max_daily_loss":              "MAX_DAILY_LOSS",
	"risk.kelly_fraction":              "KELLY_FRACTION",
	"store.trade_db_path":              "TRADE_DB_PATH",
}

// Load reads config from a YAML file with the enumerated env var overrides.
// Missing config files are tolerated; env vars and defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if os.IsNotExist(err) {
				// fall through to env-only config
			} else {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Strategy.MaxPositionUSD <= 0 {
		return fmt.Errorf("strategy.max_position_usd must be > 0")
	}
	if c.Strategy.LadderLevels <= 0 {
		return fmt.Errorf("strategy.ladder_levels must be > 0")
	}
	return nil
}

// SessionLogFilename is the per-process session log name, keyed by the
// process start's UTC timestamp per the session logger's contract.
func SessionLogFilename(start time.Time) string {
	return fmt.Sprintf("session_%s.jsonl", start.UTC().Format("20060102_150405"))
}

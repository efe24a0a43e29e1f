// Package store is the reputation pipeline's relational persistence layer:
// the six orderflow_* tables consumed by the on-chain listener, the
// reputation calculator, the signal generator, and the risk-gated executor.
// Generalized from the teacher's MySQLRecorder pattern
// (struct tags, TableName(), db.Create/db.Where query shape) to the wider
// table set this pipeline needs.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"btcupdown/pkg/types"
)

// TradeRecord is the database model for orderflow_trades.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	TxHash     string    `gorm:"uniqueIndex;size:80;not null"`
	WalletAddr string    `gorm:"index;size:42;not null"`
	MarketID   string    `gorm:"index;size:80;not null"`
	TokenID    string    `gorm:"size:100;not null"`
	Side       string    `gorm:"size:4;not null"`
	Price      string    `gorm:"size:40;not null"` // decimal string
	Size       string    `gorm:"size:40;not null"` // decimal string
	BlockTime  time.Time `gorm:"index;not null"`
	IsMaker    bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (TradeRecord) TableName() string { return "orderflow_trades" }

// WalletStatsRecord is the database model for orderflow_wallet_stats.
type WalletStatsRecord struct {
	WalletAddress    string    `gorm:"primaryKey;size:42"`
	ReputationScore  float64   `gorm:"not null"`
	ConfidenceLevel  float64   `gorm:"not null"`
	TraderTier       string    `gorm:"size:10;not null"`
	LastCalculatedAt time.Time `gorm:"not null"`
}

func (WalletStatsRecord) TableName() string { return "orderflow_wallet_stats" }

// ReputationHistoryRecord is one append-only row logged every calculator
// pass, the database model for orderflow_reputation_history.
type ReputationHistoryRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	WalletAddress   string    `gorm:"index;size:42;not null"`
	ReputationScore float64   `gorm:"not null"`
	TraderTier      string    `gorm:"size:10;not null"`
	TradeCount      int       `gorm:"not null"`
	CalculatedAt    time.Time `gorm:"index;not null"`
}

func (ReputationHistoryRecord) TableName() string { return "orderflow_reputation_history" }

// SignalRecord is the database model for orderflow_signals.
type SignalRecord struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"`
	SignalType         string    `gorm:"size:16;not null"`
	Action             string    `gorm:"size:4;not null"`
	MarketID           string    `gorm:"index;size:80;not null"`
	Outcome            string    `gorm:"size:4;not null"`
	Confidence         float64   `gorm:"not null"`
	RecommendedSizeUSD string    `gorm:"size:40"`
	MaxPrice           string    `gorm:"size:40"`
	TriggerWallet      string    `gorm:"size:42"`
	TriggerTxHash      string    `gorm:"uniqueIndex;size:80"`
	WalletScore        float64   `gorm:"not null"`
	TraderTier         string    `gorm:"size:10"`
	Status             string    `gorm:"index;size:10;not null"`
	CreatedAt          time.Time `gorm:"index;not null"`
	ExpiresAt          time.Time `gorm:"index;not null"`
}

func (SignalRecord) TableName() string { return "orderflow_signals" }

// PositionRecord is the database model for orderflow_positions: one routed
// signal's resulting paper or live position.
type PositionRecord struct {
	ID           uint       `gorm:"primaryKey;autoIncrement"`
	SignalID     uint       `gorm:"index;not null"`
	MarketID     string     `gorm:"index;size:80;not null"`
	Outcome      string     `gorm:"size:4;not null"`
	EntryPrice   string     `gorm:"size:40;not null"`
	SizeUSD      string     `gorm:"size:40;not null"`
	OpenedAt     time.Time  `gorm:"not null"`
	ClosedAt     *time.Time
	RealizedPnL  string     `gorm:"size:40"`
}

func (PositionRecord) TableName() string { return "orderflow_positions" }

// MarketOutcomeRecord is the database model for orderflow_market_outcomes.
type MarketOutcomeRecord struct {
	MarketID     string    `gorm:"primaryKey;size:80"`
	WinningToken string    `gorm:"size:100;not null"`
	ResolvedAt   time.Time `gorm:"not null"`
}

func (MarketOutcomeRecord) TableName() string { return "orderflow_market_outcomes" }

// Store wraps the gorm handle shared by the calculator, generator, executor,
// and on-chain listener.
type Store struct {
	db *gorm.DB
}

// Open connects to the MySQL-compatible database at dsn and migrates the
// six orderflow_* tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect reputation store: %w", err)
	}
	if err := db.AutoMigrate(
		&TradeRecord{},
		&WalletStatsRecord{},
		&ReputationHistoryRecord{},
		&SignalRecord{},
		&PositionRecord{},
		&MarketOutcomeRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate reputation store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("underlying db: %w", err)
	}
	return sqlDB.Close()
}

// InsertTrade inserts one synthesized trade row, treating a duplicate
// tx_hash as a silent no-op per spec §4.10 (ON CONFLICT DO NOTHING) rather
// than an error — idempotent re-ingestion of the same on-chain event is
// expected, not exceptional.
func (s *Store) InsertTrade(t types.Trade) error {
	rec := TradeRecord{
		TxHash:     t.TxHash,
		WalletAddr: t.WalletAddr,
		MarketID:   t.MarketID,
		TokenID:    t.TokenID,
		Side:       string(t.Side),
		Price:      t.Price,
		Size:       t.Size,
		BlockTime:  t.BlockTime,
		IsMaker:    t.IsMaker,
	}
	result := s.db.Clauses(onConflictDoNothing()).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("insert trade %s: %w", t.TxHash, result.Error)
	}
	return nil
}

// WalletTrade is a trade row joined with the wallet's current reputation
// score and tier, the shape the whale-follow scan needs to size its
// signal's confidence and recorded WalletScore/TraderTier.
type WalletTrade struct {
	TradeRecord
	ReputationScore float64
	TraderTier      string
}

// RecentBuys returns BUY trades by wallets with reputation_score >=
// minScore, placed within the window ending at now, for the whale-follow
// signal generator's scan.
func (s *Store) RecentBuys(minScore float64, since, now time.Time) ([]WalletTrade, error) {
	var rows []WalletTrade
	err := s.db.Table("orderflow_trades AS t").
		Select("t.*, w.reputation_score, w.trader_tier").
		Joins("JOIN orderflow_wallet_stats AS w ON w.wallet_address = t.wallet_addr").
		Where("t.side = ? AND w.reputation_score >= ? AND t.block_time BETWEEN ? AND ?", "BUY", minScore, since, now).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent whale buys: %w", err)
	}
	return rows, nil
}

// RecentLowScoreSells returns SELL trades in [since, now], both ends
// inclusive, by wallets scoring at most maxScore, for the fade-degen cluster
// detector.
func (s *Store) RecentLowScoreSells(maxScore float64, since, now time.Time) ([]types.Trade, error) {
	var rows []TradeRecord
	err := s.db.Table("orderflow_trades AS t").
		Joins("JOIN orderflow_wallet_stats AS w ON w.wallet_address = t.wallet_addr").
		Where("t.side = ? AND w.reputation_score <= ? AND t.block_time BETWEEN ? AND ?", "SELL", maxScore, since, now).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent low-score sells: %w", err)
	}
	return toTrades(rows), nil
}

func toTrades(rows []TradeRecord) []types.Trade {
	out := make([]types.Trade, len(rows))
	for i, r := range rows {
		out[i] = types.Trade{
			TxHash:     r.TxHash,
			WalletAddr: r.WalletAddr,
			MarketID:   r.MarketID,
			TokenID:    r.TokenID,
			Side:       types.Side(r.Side),
			Price:      r.Price,
			Size:       r.Size,
			BlockTime:  r.BlockTime,
			IsMaker:    r.IsMaker,
		}
	}
	return out
}

// SignalExists reports whether a signal has already been generated for this
// trigger transaction hash, the anti-duplicate check before inserting a new
// FOLLOW_WHALE signal (spec §4.11).
func (s *Store) SignalExists(triggerTxHash string) (bool, error) {
	var count int64
	err := s.db.Model(&SignalRecord{}).Where("trigger_tx_hash = ?", triggerTxHash).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check signal exists: %w", err)
	}
	return count > 0, nil
}

// InsertSignal persists a newly generated signal.
func (s *Store) InsertSignal(sig types.OrderFlowSignal) error {
	rec := SignalRecord{
		SignalType:         string(sig.SignalType),
		Action:             string(sig.Action),
		MarketID:           sig.MarketID,
		Outcome:            string(sig.Outcome),
		Confidence:         sig.Confidence,
		RecommendedSizeUSD: sig.RecommendedSizeUSD,
		MaxPrice:           sig.MaxPrice,
		TriggerWallet:      sig.TriggerWallet,
		TriggerTxHash:      sig.TriggerTxHash,
		WalletScore:        sig.WalletScore,
		TraderTier:         string(sig.TraderTier),
		Status:             string(sig.Status),
		CreatedAt:          sig.CreatedAt,
		ExpiresAt:          sig.ExpiresAt,
	}
	if result := s.db.Create(&rec); result.Error != nil {
		return fmt.Errorf("insert signal: %w", result.Error)
	}
	return nil
}

// DrainPending returns up to limit PENDING signals with confidence >=
// minConfidence created at or after since, ordered confidence desc then
// age asc, for the executor's per-tick drain per spec §4.11.
func (s *Store) DrainPending(minConfidence float64, since time.Time, limit int) ([]types.OrderFlowSignal, error) {
	var rows []SignalRecord
	err := s.db.Where("status = ? AND confidence >= ? AND created_at >= ?", "PENDING", minConfidence, since).
		Order("confidence DESC, created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("drain pending signals: %w", err)
	}
	out := make([]types.OrderFlowSignal, len(rows))
	for i, r := range rows {
		out[i] = types.OrderFlowSignal{
			ID:                 int64(r.ID),
			SignalType:         types.SignalType(r.SignalType),
			Action:             types.Side(r.Action),
			MarketID:           r.MarketID,
			Outcome:            types.Outcome(r.Outcome),
			Confidence:         r.Confidence,
			RecommendedSizeUSD: r.RecommendedSizeUSD,
			MaxPrice:           r.MaxPrice,
			TriggerWallet:      r.TriggerWallet,
			TriggerTxHash:      r.TriggerTxHash,
			WalletScore:        r.WalletScore,
			TraderTier:         types.TraderTier(r.TraderTier),
			Status:             types.SignalStatus(r.Status),
			CreatedAt:          r.CreatedAt,
			ExpiresAt:          r.ExpiresAt,
		}
	}
	return out, nil
}

// TransitionSignal moves a signal to its terminal status exactly once
// (EXECUTED or SKIPPED), per spec §3's signal lifecycle.
func (s *Store) TransitionSignal(id int64, status types.SignalStatus) error {
	result := s.db.Model(&SignalRecord{}).
		Where("id = ? AND status = ?", id, "PENDING").
		Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("transition signal %d: %w", id, result.Error)
	}
	return nil
}

// UpsertWalletStats writes the calculator's latest score for a wallet and
// appends one reputation_history row.
func (s *Store) UpsertWalletStats(ws types.WalletStats, tradeCount int, calculatedAt time.Time) error {
	rec := WalletStatsRecord{
		WalletAddress:    ws.WalletAddress,
		ReputationScore:  ws.ReputationScore,
		ConfidenceLevel:  ws.ConfidenceLevel,
		TraderTier:       string(ws.TraderTier),
		LastCalculatedAt: ws.LastCalculatedAt,
	}
	err := s.db.Save(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert wallet stats %s: %w", ws.WalletAddress, err)
	}
	hist := ReputationHistoryRecord{
		WalletAddress:   ws.WalletAddress,
		ReputationScore: ws.ReputationScore,
		TraderTier:      string(ws.TraderTier),
		TradeCount:      tradeCount,
		CalculatedAt:    calculatedAt,
	}
	if err := s.db.Create(&hist).Error; err != nil {
		return fmt.Errorf("append reputation history %s: %w", ws.WalletAddress, err)
	}
	return nil
}

// ActiveWallets returns distinct wallet addresses with at least one trade
// since `since`, the calculator's per-pass iteration set (spec §4.11:
// "wallets active in the last 30 days").
func (s *Store) ActiveWallets(since time.Time) ([]string, error) {
	var addrs []string
	err := s.db.Model(&TradeRecord{}).
		Where("block_time >= ?", since).
		Distinct().
		Pluck("wallet_addr", &addrs).Error
	if err != nil {
		return nil, fmt.Errorf("active wallets: %w", err)
	}
	return addrs, nil
}

// ClosedPairsForWallet pairs the latest unpaired BUY with the next SELL on
// the same market+token for a wallet, the calculator's closed-position view
// (spec §4.11). A BUY followed by another BUY before any SELL is not paired;
// results are ordered by market, token, then time.
func (s *Store) ClosedPairsForWallet(wallet string) ([]ClosedTradePair, error) {
	var rows []TradeRecord
	err := s.db.Where("wallet_addr = ?", wallet).
		Order("market_id, token_id, block_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("wallet trades %s: %w", wallet, err)
	}

	var pairs []ClosedTradePair
	open := map[string]TradeRecord{} // market+token -> open BUY
	for _, r := range rows {
		key := r.MarketID + "|" + r.TokenID
		switch r.Side {
		case "BUY":
			open[key] = r
		case "SELL":
			buy, ok := open[key]
			if !ok {
				continue
			}
			delete(open, key)
			pairs = append(pairs, ClosedTradePair{Buy: buy, Sell: r})
		}
	}
	return pairs, nil
}

// ClosedTradePair is one matched BUY->SELL pair on the same market+token.
type ClosedTradePair struct {
	Buy  TradeRecord
	Sell TradeRecord
}

// ResolveMarket records a market's winning token once, on resolution.
func (s *Store) ResolveMarket(marketID, winningToken string, resolvedAt time.Time) error {
	rec := MarketOutcomeRecord{MarketID: marketID, WinningToken: winningToken, ResolvedAt: resolvedAt}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("resolve market %s: %w", marketID, err)
	}
	return nil
}

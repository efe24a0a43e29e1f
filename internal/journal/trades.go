// Package journal provides local persistence for one trading process: a
// per-session JSON-lines event log and an embedded SQLite trade journal.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TradeOutcome is the settlement state of one journaled trade.
type TradeOutcome string

const (
	TradePending TradeOutcome = "PENDING"
	TradeWin     TradeOutcome = "WIN"
	TradeLoss    TradeOutcome = "LOSS"
)

// TradeRecord is one row of the trades table.
type TradeRecord struct {
	ID         int64
	MarketID   string
	Strategy   string
	Outcome    string // UP or DOWN
	Side       string // BUY or SELL
	Price      float64
	Size       float64
	OpenedAt   time.Time
	ClosedAt   *time.Time
	RealizedPnL float64
	Result     TradeOutcome
}

// Trades wraps the embedded SQLite trade journal. Modeled on the
// migration-by-version pattern of a single-file embedded store: open once,
// run idempotent DDL, keep the handle for the life of the process.
type Trades struct {
	db *sql.DB
}

// OpenTrades opens (or creates) the SQLite database at path and ensures the
// trades table exists.
func OpenTrades(path string) (*Trades, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open trade journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping trade journal: %w", err)
	}
	t := &Trades{db: db}
	if err := t.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate trade journal: %w", err)
	}
	return t, nil
}

// Close closes the underlying database handle.
func (t *Trades) Close() error {
	return t.db.Close()
}

func (t *Trades) migrate() error {
	_, err := t.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			market_id     TEXT NOT NULL,
			strategy      TEXT NOT NULL,
			outcome       TEXT NOT NULL,
			side          TEXT NOT NULL,
			price         REAL NOT NULL,
			size          REAL NOT NULL,
			opened_at     TEXT NOT NULL,
			closed_at     TEXT,
			realized_pnl  REAL NOT NULL DEFAULT 0,
			result        TEXT NOT NULL DEFAULT 'PENDING'
		);
		CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market_id);
		CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy, opened_at);
	`)
	return err
}

// RecordOpen inserts a new pending trade and returns its row id.
func (t *Trades) RecordOpen(marketID, strategy, outcome, side string, price, size float64, openedAt time.Time) (int64, error) {
	res, err := t.db.Exec(
		`INSERT INTO trades (market_id, strategy, outcome, side, price, size, opened_at, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 'PENDING')`,
		marketID, strategy, outcome, side, price, size, openedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("record open trade: %w", err)
	}
	return res.LastInsertId()
}

// RecordClose settles a previously opened trade with its realized P&L and
// win/loss result.
func (t *Trades) RecordClose(id int64, realizedPnL float64, result TradeOutcome, closedAt time.Time) error {
	_, err := t.db.Exec(
		`UPDATE trades SET closed_at = ?, realized_pnl = ?, result = ? WHERE id = ?`,
		closedAt.Format(time.RFC3339), realizedPnL, string(result), id,
	)
	if err != nil {
		return fmt.Errorf("record close trade: %w", err)
	}
	return nil
}

// ClosedSince returns every settled (non-PENDING) trade for strategy closed
// at or after since, ordered oldest first.
func (t *Trades) ClosedSince(strategy string, since time.Time) ([]TradeRecord, error) {
	rows, err := t.db.Query(
		`SELECT id, market_id, strategy, outcome, side, price, size, opened_at, closed_at, realized_pnl, result
		   FROM trades
		  WHERE strategy = ? AND result != 'PENDING' AND closed_at >= ?
		  ORDER BY closed_at ASC`,
		strategy, since.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var r TradeRecord
		var openedAt string
		var closedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.MarketID, &r.Strategy, &r.Outcome, &r.Side, &r.Price, &r.Size, &openedAt, &closedAt, &r.RealizedPnL, &r.Result); err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		r.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		if closedAt.Valid {
			ct, _ := time.Parse(time.RFC3339, closedAt.String)
			r.ClosedAt = &ct
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

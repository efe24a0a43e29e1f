// Package strategy implements the closed set of trading strategies run by
// the session runner and the multi-strategy simulator: Directional (core),
// Pure Arbitrage, Scalper, Market Maker (the teacher's Avellaneda-Stoikov
// quoting, generalized to a virtual position), Momentum, and Hybrid.
//
// Every strategy is a pure function of (market, market state, virtual
// position) via its callbacks; none call the CLOB directly. The runner or
// simulator interprets the returned StrategySignal.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"btcupdown/internal/feed"
	"btcupdown/internal/orderbook"
	"btcupdown/pkg/types"
)

// SignalAction names the action a strategy callback asks the caller to take.
type SignalAction string

const (
	ActionHold         SignalAction = "hold"
	ActionPlaceOrders  SignalAction = "place_orders"
	ActionCancelAll    SignalAction = "cancel_all"
	ActionExitPosition SignalAction = "exit_position"
)

// StrategySignal is the return value of every strategy callback.
type StrategySignal struct {
	Action SignalAction
	Orders []types.OrderIntent
	Reason string
}

func Hold(reason string) StrategySignal {
	return StrategySignal{Action: ActionHold, Reason: reason}
}

func PlaceOrders(orders []types.OrderIntent, reason string) StrategySignal {
	return StrategySignal{Action: ActionPlaceOrders, Orders: orders, Reason: reason}
}

func CancelAll(reason string) StrategySignal {
	return StrategySignal{Action: ActionCancelAll, Reason: reason}
}

func ExitPosition(reason string) StrategySignal {
	return StrategySignal{Action: ActionExitPosition, Reason: reason}
}

// MarketState is the read-only snapshot of external state a strategy
// consults: the price feed, the orderbook mirror, the current time, and the
// minutes elapsed in the session.
type MarketState struct {
	Market       types.Market
	PriceFeed    *feed.State
	Books        *orderbook.Manager
	Now          time.Time
	MinutesIntoSession float64
}

// Metrics is a strategy's self-reported performance snapshot, read by the
// simulator's comparison table.
type Metrics struct {
	Name          string
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	TradeCount    int
	WinCount      int
}

// Strategy is the closed-set interface every strategy implements.
type Strategy interface {
	Name() string
	OnMarketStart(state MarketState) StrategySignal
	OnOrderbookUpdate(state MarketState, position types.PositionState) StrategySignal
	OnFill(state MarketState, fill types.WSTradeEvent, position types.PositionState) StrategySignal
	OnTick(state MarketState, position types.PositionState) StrategySignal
	OnPreResolution(state MarketState, position types.PositionState) StrategySignal
	RecordSessionResult(finalPosition types.PositionState, resolvedOutcome types.Outcome)
	Metrics() Metrics
}

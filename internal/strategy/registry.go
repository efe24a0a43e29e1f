package strategy

import (
	"fmt"

	"btcupdown/internal/config"
)

// Names of the closed strategy set, used by the session runner's config and
// the simulator's comparison table.
const (
	NameDirectional    = "directional"
	NamePureArbitrage  = "pure_arbitrage"
	NameScalper        = "scalper"
	NameMarketMaker    = "market_maker"
	NameMomentum       = "momentum"
	NameHybrid         = "hybrid"
)

// All lists every strategy in the closed set, in the order the simulator
// constructs and runs them.
var All = []string{
	NameDirectional,
	NamePureArbitrage,
	NameScalper,
	NameMarketMaker,
	NameMomentum,
	NameHybrid,
}

// New constructs one strategy by name.
func New(name string, cfg config.StrategyConfig, riskCfg config.RiskConfig) (Strategy, error) {
	switch name {
	case NameDirectional:
		return NewDirectional(cfg, riskCfg), nil
	case NamePureArbitrage:
		return NewPureArbitrage(cfg), nil
	case NameScalper:
		return NewScalper(cfg), nil
	case NameMarketMaker:
		return NewMarketMaker(cfg), nil
	case NameMomentum:
		return NewMomentum(cfg), nil
	case NameHybrid:
		return NewHybrid(cfg, riskCfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// NewAll constructs one instance of every strategy in the closed set, for
// the multi-strategy simulator.
func NewAll(cfg config.StrategyConfig, riskCfg config.RiskConfig) []Strategy {
	strategies := make([]Strategy, 0, len(All))
	for _, name := range All {
		s, err := New(name, cfg, riskCfg)
		if err != nil {
			continue // unreachable: All only lists names New recognizes
		}
		strategies = append(strategies, s)
	}
	return strategies
}

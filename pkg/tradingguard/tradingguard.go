// Package tradingguard implements the pure predicates the Trading FSM
// evaluates against a StateSnapshot, grounded on original_source's
// src/guards/trading_guard.py.
package tradingguard

import (
	"math"

	"github.com/bifrosttrader/hedge-daemon/pkg/snapshot"
	"github.com/bifrosttrader/hedge-daemon/pkg/stateenum"
)

// Config bundles every gate threshold TradingGuard reads, per spec.md §6.2.
type Config struct {
	EpsilonBand        float64
	HedgeThreshold     float64
	ExtremeSpreadPct   float64
	WideSpreadPct      float64
	MaxSpreadPct       float64 // 0 means "not configured"
	MinPriceMovePct    float64 // 0 means "no min-move check"
	DataLagThresholdMs float64
	MaxDailyHedgeCount int
	StrategyEnabled    bool
}

// Guard evaluates pure predicates over one StateSnapshot and Config. It
// holds no mutable state of its own — the daily hedge count it needs for
// IsRetryAllowed is passed in explicitly rather than read from a stateful
// collaborator, keeping this package dependency-free of execguard.
type Guard struct {
	Snapshot        snapshot.StateSnapshot
	Config          Config
	DailyHedgeCount int
}

func New(s snapshot.StateSnapshot, cfg Config, dailyHedgeCount int) Guard {
	return Guard{Snapshot: s, Config: cfg, DailyHedgeCount: dailyHedgeCount}
}

func (g Guard) IsDataOK() bool {
	s := g.Snapshot
	return s.EventLagMs <= g.Config.DataLagThresholdMs && s.Spot > 0 && s.L != stateenum.LNoQuote
}

func (g Guard) IsDataStale() bool { return !g.IsDataOK() }

func (g Guard) IsGreeksOK() bool {
	gk := g.Snapshot.Greeks
	if gk == nil || !gk.Valid || !gk.IsFinite() {
		return false
	}
	return math.Abs(gk.Delta) <= 1e6 && math.Abs(gk.Gamma) <= 1e6
}

func (g Guard) IsGreeksBad() bool { return !g.IsGreeksOK() }

func (g Guard) IsBrokerDown() bool {
	e := g.Snapshot.E
	return e == stateenum.EDisconnected || e == stateenum.EBrokerError
}

func (g Guard) IsBrokerUp() bool { return !g.IsBrokerDown() }

func (g Guard) IsOptionPosition() bool {
	o := g.Snapshot.O
	return o == stateenum.OLongGamma || o == stateenum.OShortGamma
}

func (g Guard) IsNoOptionPosition() bool { return !g.IsOptionPosition() }

func (g Guard) IsDeltaBandReady() bool {
	return g.IsGreeksOK() && g.Config.EpsilonBand > 0 && g.Config.HedgeThreshold >= g.Config.EpsilonBand
}

func (g Guard) IsInNoTradeBand() bool {
	return math.Abs(g.Snapshot.NetDelta) <= g.Config.EpsilonBand
}

func (g Guard) IsOutOfBand() bool { return !g.IsInNoTradeBand() }

func (g Guard) IsCostOK() bool {
	s := g.Snapshot
	if s.SpreadPct >= g.Config.ExtremeSpreadPct {
		return false
	}
	if s.LastHedgePrice != 0 && s.Spot != 0 && g.Config.MinPriceMovePct > 0 {
		movePct := 100 * math.Abs(s.Spot-s.LastHedgePrice) / s.LastHedgePrice
		if movePct < g.Config.MinPriceMovePct {
			return false
		}
	}
	return true
}

func (g Guard) IsLiquidityOK() bool {
	l := g.Snapshot.L
	if l == stateenum.LNoQuote || l == stateenum.LExtremeWide {
		return false
	}
	if g.Config.MaxSpreadPct > 0 && g.Snapshot.SpreadPct > g.Config.MaxSpreadPct {
		return false
	}
	return true
}

func (g Guard) IsRetryAllowed() bool {
	return g.DailyHedgeCount < g.Config.MaxDailyHedgeCount
}

func (g Guard) IsExecFault() bool { return g.IsBrokerDown() }

func (g Guard) IsPositionsOK() bool {
	return g.IsDataOK() && g.Snapshot.S != stateenum.SRiskHalt
}

func (g Guard) IsStrategyEnabled() bool { return g.Config.StrategyEnabled }

// EvalAll returns every named predicate the Trading FSM consumes, the Go
// analogue of original_source's TradingGuard.eval_all().
func (g Guard) EvalAll() map[string]bool {
	return map[string]bool{
		"data_ok":             g.IsDataOK(),
		"data_stale":          g.IsDataStale(),
		"greeks_ok":           g.IsGreeksOK(),
		"greeks_bad":          g.IsGreeksBad(),
		"broker_down":         g.IsBrokerDown(),
		"broker_up":           g.IsBrokerUp(),
		"option_position":     g.IsOptionPosition(),
		"no_option_position":  g.IsNoOptionPosition(),
		"delta_band_ready":    g.IsDeltaBandReady(),
		"in_no_trade_band":    g.IsInNoTradeBand(),
		"out_of_band":         g.IsOutOfBand(),
		"cost_ok":             g.IsCostOK(),
		"liquidity_ok":        g.IsLiquidityOK(),
		"retry_allowed":       g.IsRetryAllowed(),
		"exec_fault":          g.IsExecFault(),
		"positions_ok":        g.IsPositionsOK(),
		"strategy_enabled":    g.IsStrategyEnabled(),
	}
}

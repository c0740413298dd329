// Package gammascalper implements the target-position delta-hedging
// strategy (target delta 0), grounded on original_source's
// src/strategy/gamma_scalper.py and src/strategy/hedge_gate.py.
package gammascalper

import (
	"math"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/execguard"
	"github.com/bifrosttrader/hedge-daemon/pkg/snapshot"
	"github.com/bifrosttrader/hedge-daemon/pkg/stateenum"
)

// HedgeOrder is a proposed hedge: side and quantity in shares.
type HedgeOrder struct {
	Side     string // BUY or SELL
	Quantity float64
}

// ComputeTargetAndNeed applies the target-position framing: target delta 0.
//
//	opt_delta_shares = portfolio_delta - stock_shares
//	target_shares    = -opt_delta_shares
//	need             = target_shares - stock_shares = -portfolio_delta
func ComputeTargetAndNeed(portfolioDelta, stockShares float64) (targetShares, need float64) {
	optDeltaShares := portfolioDelta - stockShares
	targetShares = -optDeltaShares
	need = targetShares - stockShares
	return targetShares, need
}

// GammaScalperHedge proposes a hedge order when |need| exceeds the delta
// threshold, clamped to maxHedgeSharesPerOrder. Returns nil when no hedge
// is needed.
func GammaScalperHedge(portfolioDelta, stockShares, deltaThresholdShares, maxHedgeSharesPerOrder float64) *HedgeOrder {
	_, need := ComputeTargetAndNeed(portfolioDelta, stockShares)
	switch {
	case need > deltaThresholdShares:
		qty := math.Min(math.Round(need), maxHedgeSharesPerOrder)
		if qty <= 0 {
			return nil
		}
		return &HedgeOrder{Side: "BUY", Quantity: qty}
	case need < -deltaThresholdShares:
		qty := math.Min(math.Round(-need), maxHedgeSharesPerOrder)
		if qty <= 0 {
			return nil
		}
		return &HedgeOrder{Side: "SELL", Quantity: qty}
	default:
		return nil
	}
}

// HedgeIntent carries a proposed hedge order plus whether it bypasses the
// cooldown gate (D3/FORCE_HEDGE).
type HedgeIntent struct {
	Side       string
	Quantity   float64
	ForceHedge bool
}

// ShouldOutputTarget reports whether the composite state allows emitting a
// new TargetPosition: (O1 or O2) and (D2 or D3) and (L0 or L1) and E0 and
// S0. Any of L2/L3, S1-S3, E3/E4 forces false (safe mode, no new hedge).
func ShouldOutputTarget(cs snapshot.CompositeState) bool {
	if cs.L == stateenum.LExtremeWide || cs.L == stateenum.LNoQuote {
		return false
	}
	if cs.S != stateenum.SOk {
		return false
	}
	if cs.E != stateenum.EIdle {
		return false
	}
	if cs.O != stateenum.OLongGamma && cs.O != stateenum.OShortGamma {
		return false
	}
	if cs.D != stateenum.DHedgeNeeded && cs.D != stateenum.DForceHedge {
		return false
	}
	return true
}

// ApplyHedgeGates runs the minimum-size check then the stateful
// ExecutionGuard gate order before a HedgeIntent may reach the execution
// FSM. D3 (FORCE_HEDGE) sets HedgeIntent.ForceHedge, which this function
// passes straight to AllowHedge's force parameter so the cooldown gate is
// bypassed (spec.md §4.2.2 scenario S3); every other gate, including
// max_position, still applies even when forced.
func ApplyHedgeGates(intent HedgeIntent, cs snapshot.CompositeState, guard *execguard.Guard, now time.Time, spot, lastHedgePrice, minHedgeShares float64) (*HedgeIntent, string) {
	if intent.Quantity < minHedgeShares {
		return nil, "below_min_hedge_shares"
	}
	signedQty := intent.Quantity
	if intent.Side == "SELL" {
		signedQty = -intent.Quantity
	}
	netDeltaAfter := cs.NetDelta + signedQty
	allowed, reason := guard.AllowHedge(now, intent.ForceHedge, signedQty, cs.StockPos, netDeltaAfter, spot, lastHedgePrice, cs.Spread)
	if !allowed {
		return nil, reason
	}
	return &intent, ""
}

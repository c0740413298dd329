package snapshot

import "github.com/bifrosttrader/hedge-daemon/pkg/stateenum"

// CostParams and RiskLimits are opaque pass-through blobs the pipeline
// attaches to a snapshot for guards that want extra context; neither the
// classifier nor the guards interpret their internals beyond nil-checks.
type CostParams struct {
	MinPriceMovePct float64
}

type RiskLimits struct {
	MaxNetDeltaShares float64
}

// StateSnapshot is the immutable world view passed to guards and FSMs.
// Every field-changing operation returns a new value; nothing here is ever
// mutated in place.
type StateSnapshot struct {
	O stateenum.OptionPositionState
	D stateenum.DeltaDeviationState
	M stateenum.MarketRegimeState
	L stateenum.LiquidityState
	E stateenum.ExecutionState
	S stateenum.SystemHealthState

	NetDelta    float64
	OptionDelta float64
	StockPos    float64

	Spot        float64
	SpreadPct   float64
	EventLagMs  float64

	Greeks *GreeksSnapshot

	OptionLegsCount int

	LastHedgeTS    float64
	LastHedgePrice float64

	CostParams *CostParams
	RiskLimits *RiskLimits

	TS float64
}

// DefaultSnapshot returns safe defaults: no option position, in-band delta,
// normal market, no quote yet, idle execution, healthy system.
func DefaultSnapshot() StateSnapshot {
	return StateSnapshot{
		O: stateenum.ONone,
		D: stateenum.DInBand,
		M: stateenum.MNormal,
		L: stateenum.LNoQuote,
		E: stateenum.EIdle,
		S: stateenum.SOk,
	}
}

// Spread is an alias for SpreadPct, per spec.md §3.3.
func (s StateSnapshot) Spread() float64 { return s.SpreadPct }

// DataLagMs is an alias for EventLagMs, per spec.md §3.3.
func (s StateSnapshot) DataLagMs() float64 { return s.EventLagMs }

// GreeksValid reports whether Greeks is present and marked valid.
func (s StateSnapshot) GreeksValid() bool {
	return s.Greeks != nil && s.Greeks.Valid
}

// FromComposite builds a StateSnapshot view of a CompositeState.
func FromComposite(cs CompositeState) StateSnapshot {
	var greeks *GreeksSnapshot
	if cs.GreeksValid {
		g := GreeksSnapshot{Delta: cs.OptionDelta, Valid: true}
		greeks = &g
	}
	return StateSnapshot{
		O: cs.O, D: cs.D, M: cs.M, L: cs.L, E: cs.E, S: cs.S,
		NetDelta:        cs.NetDelta,
		OptionDelta:     cs.OptionDelta,
		StockPos:        cs.StockPos,
		SpreadPct:       cs.Spread,
		EventLagMs:      cs.DataLagMs,
		Greeks:          greeks,
		LastHedgeTS:     cs.LastHedgeTS,
		LastHedgePrice:  cs.LastHedgePrice,
		TS:              cs.TS,
	}
}

// Update returns a new snapshot with the named fields overridden; unknown
// keys are ignored. This is the Go analogue of the Python "return a new
// snapshot with overridden fields" pattern from spec.md §3.3/§9 — it never
// mutates the receiver.
func (s StateSnapshot) Update(event map[string]interface{}) StateSnapshot {
	next := s
	for k, v := range event {
		switch k {
		case "O":
			next.O = v.(stateenum.OptionPositionState)
		case "D":
			next.D = v.(stateenum.DeltaDeviationState)
		case "M":
			next.M = v.(stateenum.MarketRegimeState)
		case "L":
			next.L = v.(stateenum.LiquidityState)
		case "E":
			next.E = v.(stateenum.ExecutionState)
		case "S":
			next.S = v.(stateenum.SystemHealthState)
		case "net_delta":
			next.NetDelta = v.(float64)
		case "option_delta":
			next.OptionDelta = v.(float64)
		case "stock_pos":
			next.StockPos = v.(float64)
		case "spot":
			next.Spot = v.(float64)
		case "spread_pct":
			next.SpreadPct = v.(float64)
		case "event_lag_ms":
			next.EventLagMs = v.(float64)
		case "greeks":
			next.Greeks = v.(*GreeksSnapshot)
		case "option_legs_count":
			next.OptionLegsCount = v.(int)
		case "last_hedge_ts":
			next.LastHedgeTS = v.(float64)
		case "last_hedge_price":
			next.LastHedgePrice = v.(float64)
		case "ts":
			next.TS = v.(float64)
		}
	}
	return next
}

package snapshot

import "github.com/bifrosttrader/hedge-daemon/pkg/stateenum"

// CompositeState is the immutable classifier output: the six state letters
// plus the numeric readings that produced them. It is the persisted,
// loggable counterpart to StateSnapshot.
type CompositeState struct {
	O stateenum.OptionPositionState
	D stateenum.DeltaDeviationState
	M stateenum.MarketRegimeState
	L stateenum.LiquidityState
	E stateenum.ExecutionState
	S stateenum.SystemHealthState

	NetDelta    float64
	OptionDelta float64
	StockPos    float64

	LastHedgePrice float64
	LastHedgeTS    float64

	Spread     float64
	DataLagMs  float64
	GreeksValid bool

	TS float64
}

// Update returns a new CompositeState with the named fields overridden.
func (cs CompositeState) Update(event map[string]interface{}) CompositeState {
	next := cs
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
		case "last_hedge_price":
			next.LastHedgePrice = v.(float64)
		case "last_hedge_ts":
			next.LastHedgeTS = v.(float64)
		case "spread":
			next.Spread = v.(float64)
		case "data_lag_ms":
			next.DataLagMs = v.(float64)
		case "greeks_valid":
			next.GreeksValid = v.(bool)
		case "ts":
			next.TS = v.(float64)
		}
	}
	return next
}

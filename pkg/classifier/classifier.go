// Package classifier implements the pure function that maps raw runtime
// inputs into the six discrete state letters, grounded on
// original_source/src/core/state/classifier.py.
package classifier

import (
	"math"

	"github.com/bifrosttrader/hedge-daemon/pkg/snapshot"
	"github.com/bifrosttrader/hedge-daemon/pkg/stateenum"
	"github.com/bifrosttrader/hedge-daemon/pkg/stats"
)

// Thresholds bundles every configuration input StateClassifier reads, per
// spec.md §6.2 gates.state.*.
type Thresholds struct {
	EpsilonBand        float64
	HedgeThreshold     float64
	MaxDeltaLimit      float64
	StaleTsThresholdMs float64
	WideSpreadPct      float64
	ExtremeSpreadPct   float64
	DataLagThresholdMs float64
}

// Inputs bundles the raw runtime reading the classifier turns into a
// CompositeState.
type Inputs struct {
	Gamma        float64
	HasOptionLeg bool

	NetDelta float64

	SpreadPct *float64 // nil means "no quote"

	LastTickAgeMs float64 // now - last_ts, in ms
	PriceHistory  []float64

	GreeksValid bool

	ExecState stateenum.ExecutionState

	DataLagMs float64
	RiskHalt  bool

	StockPos       float64
	OptionDelta    float64
	LastHedgeTS    float64
	LastHedgePrice float64
	TS             float64
}

// Classify is the total, side-effect-free mapping from Inputs to a
// CompositeState.
func Classify(in Inputs, th Thresholds) snapshot.CompositeState {
	return snapshot.CompositeState{
		O:              classifyO(in),
		D:              classifyD(in, th),
		M:              classifyM(in, th),
		L:              classifyL(in, th),
		E:              in.ExecState,
		S:              classifyS(in, th),
		NetDelta:       in.NetDelta,
		OptionDelta:    in.OptionDelta,
		StockPos:       in.StockPos,
		LastHedgeTS:    in.LastHedgeTS,
		LastHedgePrice: in.LastHedgePrice,
		Spread:         spreadOrZero(in.SpreadPct),
		DataLagMs:      in.DataLagMs,
		GreeksValid:    in.GreeksValid,
		TS:             in.TS,
	}
}

func spreadOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func classifyO(in Inputs) stateenum.OptionPositionState {
	if !in.GreeksValid || !in.HasOptionLeg {
		return stateenum.ONone
	}
	switch {
	case in.Gamma > 0:
		return stateenum.OLongGamma
	case in.Gamma < 0:
		return stateenum.OShortGamma
	default:
		return stateenum.ONone
	}
}

func classifyD(in Inputs, th Thresholds) stateenum.DeltaDeviationState {
	if !in.GreeksValid {
		return stateenum.DInvalid
	}
	x := math.Abs(in.NetDelta)
	switch {
	case x <= th.EpsilonBand:
		return stateenum.DInBand
	case x >= th.MaxDeltaLimit:
		return stateenum.DForceHedge
	case x >= th.HedgeThreshold:
		return stateenum.DHedgeNeeded
	default:
		return stateenum.DMinor
	}
}

// classifyM applies original_source's "stale check first, then a simple
// variance/slope heuristic, default NORMAL with no history" rule. The
// variance/slope heuristic is intentionally a refinable default per
// spec.md §9 open questions.
func classifyM(in Inputs, th Thresholds) stateenum.MarketRegimeState {
	if in.LastTickAgeMs > th.StaleTsThresholdMs {
		return stateenum.MStale
	}
	if len(in.PriceHistory) < 2 {
		return stateenum.MNormal
	}

	rs := stats.CalculateRollingStats(in.PriceHistory, len(in.PriceHistory))
	if rs.Mean == 0 {
		return stateenum.MNormal
	}
	normalizedVar := rs.Variance / (rs.Mean * rs.Mean)

	xs := make([]float64, len(in.PriceHistory))
	for i := range xs {
		xs[i] = float64(i)
	}
	slope, _ := stats.LinearRegression(xs, in.PriceHistory)
	normalizedSlope := slope / rs.Mean

	const choppyVarFloor = 1e-4
	const trendSlopeFloor = 1e-3
	const quietVarCeiling = 1e-6

	switch {
	case normalizedVar >= choppyVarFloor:
		return stateenum.MChoppyHighVol
	case math.Abs(normalizedSlope) >= trendSlopeFloor:
		return stateenum.MTrend
	case normalizedVar <= quietVarCeiling:
		return stateenum.MQuiet
	default:
		return stateenum.MNormal
	}
}

func classifyL(in Inputs, th Thresholds) stateenum.LiquidityState {
	if in.SpreadPct == nil {
		return stateenum.LNoQuote
	}
	sp := *in.SpreadPct
	switch {
	case sp >= th.ExtremeSpreadPct:
		return stateenum.LExtremeWide
	case sp >= th.WideSpreadPct:
		return stateenum.LWide
	default:
		return stateenum.LNormal
	}
}

func classifyS(in Inputs, th Thresholds) stateenum.SystemHealthState {
	switch {
	case in.RiskHalt:
		return stateenum.SRiskHalt
	case !in.GreeksValid:
		return stateenum.SGreeksBad
	case in.DataLagMs > th.DataLagThresholdMs:
		return stateenum.SDataLag
	default:
		return stateenum.SOk
	}
}

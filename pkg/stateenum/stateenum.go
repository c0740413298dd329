// Package stateenum defines the six discrete state letters that the
// StateClassifier assigns and the Trading FSM guards consume. Each variant
// carries a stable short string tag (e.g. "O0", "D3") that is written
// verbatim to status output (e.g. execution_state in /status) and logs; the
// tags must never be renumbered or renamed once shipped.
package stateenum

// OptionPositionState (O) describes the net gamma sign of the option book.
type OptionPositionState string

const (
	ONone       OptionPositionState = "O0" // NONE
	OLongGamma  OptionPositionState = "O1" // LONG_GAMMA
	OShortGamma OptionPositionState = "O2" // SHORT_GAMMA
)

// DeltaDeviationState (D) buckets |net_delta| against configured bands.
type DeltaDeviationState string

const (
	DInBand     DeltaDeviationState = "D0" // IN_BAND
	DMinor      DeltaDeviationState = "D1" // MINOR
	DHedgeNeeded DeltaDeviationState = "D2" // HEDGE_NEEDED
	DForceHedge DeltaDeviationState = "D3" // FORCE_HEDGE
	DInvalid    DeltaDeviationState = "D4" // INVALID
)

// MarketRegimeState (M) is a coarse read on recent price behavior.
type MarketRegimeState string

const (
	MQuiet         MarketRegimeState = "M0" // QUIET
	MNormal        MarketRegimeState = "M1" // NORMAL
	MTrend         MarketRegimeState = "M2" // TREND
	MChoppyHighVol MarketRegimeState = "M3" // CHOPPY_HIGHVOL
	MGap           MarketRegimeState = "M4" // GAP
	MStale         MarketRegimeState = "M5" // STALE
)

// LiquidityState (L) reads the quoted spread.
type LiquidityState string

const (
	LNormal      LiquidityState = "L0" // NORMAL
	LWide        LiquidityState = "L1" // WIDE
	LExtremeWide LiquidityState = "L2" // EXTREME_WIDE
	LNoQuote     LiquidityState = "L3" // NO_QUOTE
)

// ExecutionState (E) is the composite projection of the Hedge Execution FSM.
type ExecutionState string

const (
	EIdle         ExecutionState = "E0" // IDLE
	EOrderWorking ExecutionState = "E1" // ORDER_WORKING
	EPartialFill  ExecutionState = "E2" // PARTIAL_FILL
	EDisconnected ExecutionState = "E3" // DISCONNECTED
	EBrokerError  ExecutionState = "E4" // BROKER_ERROR
)

// SystemHealthState (S) is the overall go/no-go health read.
type SystemHealthState string

const (
	SOk         SystemHealthState = "S0" // OK
	SGreeksBad  SystemHealthState = "S1" // GREEKS_BAD
	SDataLag    SystemHealthState = "S2" // DATA_LAG
	SRiskHalt   SystemHealthState = "S3" // RISK_HALT
)

// Package tradingfsm implements the Trading FSM (the macro FSM), grounded
// on original_source's src/fsm/trading_fsm.py.
package tradingfsm

import "log"

// State is one node of the trading FSM.
type State string

const (
	Boot       State = "BOOT"
	Sync       State = "SYNC"
	Idle       State = "IDLE"
	Armed      State = "ARMED"
	Monitor    State = "MONITOR"
	NoTrade    State = "NO_TRADE"
	NeedHedge  State = "NEED_HEDGE"
	PauseCost  State = "PAUSE_COST"
	PauseLiq   State = "PAUSE_LIQ"
	Hedging    State = "HEDGING"
	Safe       State = "SAFE"
)

// Event is one transition trigger.
type Event string

const (
	Start         Event = "START"
	Synced        Event = "SYNCED"
	Quote         Event = "QUOTE"
	Tick          Event = "TICK"
	GreeksUpdate  Event = "GREEKS_UPDATE"
	TargetEmitted Event = "TARGET_EMITTED"
	HedgeDone     Event = "HEDGE_DONE"
	HedgeFailed   Event = "HEDGE_FAILED"
	ManualResume  Event = "MANUAL_RESUME"
	BrokerUp      Event = "BROKER_UP"
	Shutdown      Event = "SHUTDOWN"
)

// OnTransition is invoked after every successful transition, guards is the
// full predicate map evaluated for this call.
type OnTransition func(from, to State, event Event, guards map[string]bool)

// FSM is the top-level trading FSM. Its transition function takes the
// evaluated guard map directly rather than re-deriving it, so the caller
// (the daemon orchestrator) owns building a tradingguard.Guard from the
// current snapshot and config.
type FSM struct {
	state        State
	onTransition OnTransition
}

func New(onTransition OnTransition) *FSM {
	return &FSM{state: Boot, onTransition: onTransition}
}

func (f *FSM) State() State { return f.state }

func (f *FSM) fire(from, to State, event Event, g map[string]bool) {
	active := make(map[string]bool, len(g))
	for k, v := range g {
		if v {
			active[k] = v
		}
	}
	log.Printf("[TradingFSM] %s -> %s on %s guards=%v", from, to, event, active)
	if f.onTransition != nil {
		f.onTransition(from, to, event, g)
	}
}

// Transition computes the next state from the current state, event, and
// guards without mutating the FSM. Returns ("", false) when no transition
// applies.
func (f *FSM) Transition(event Event, g map[string]bool) (State, bool) {
	s := f.state

	if g["broker_down"] || g["data_stale"] || g["greeks_bad"] || g["exec_fault"] {
		if s != Safe {
			f.fire(s, Safe, event, g)
			return Safe, true
		}
		return "", false
	}

	if event == Shutdown {
		return "", false
	}

	if event == Start && s == Boot {
		f.fire(s, Sync, event, g)
		return Sync, true
	}

	switch event {
	case Synced, Quote, Tick, GreeksUpdate:
		switch s {
		case Sync:
			return f.handleSync(event, g)
		case Idle:
			return f.handleIdle(event, g)
		case Armed:
			return f.handleArmed(event, g)
		case Monitor:
			return f.handleMonitor(event, g)
		case NoTrade:
			return f.handleNoTrade(event, g)
		case PauseCost, PauseLiq:
			return f.handlePause(event, g)
		}
	}

	if event == TargetEmitted && s == NeedHedge {
		f.fire(s, Hedging, event, g)
		return Hedging, true
	}

	if event == HedgeDone && s == Hedging {
		f.fire(s, Monitor, event, g)
		return Monitor, true
	}

	if event == HedgeFailed && s == Hedging {
		if g["retry_allowed"] {
			f.fire(s, NeedHedge, event, g)
			return NeedHedge, true
		}
		f.fire(s, Safe, event, g)
		return Safe, true
	}

	if event == ManualResume && s == Safe {
		if g["broker_up"] && g["data_ok"] {
			f.fire(s, Sync, event, g)
			return Sync, true
		}
	}

	if event == BrokerUp && s == Safe {
		if g["data_ok"] {
			f.fire(s, Sync, event, g)
			return Sync, true
		}
	}

	return "", false
}

// ApplyTransition computes and, if valid, commits the next state.
func (f *FSM) ApplyTransition(event Event, g map[string]bool) bool {
	next, ok := f.Transition(event, g)
	if !ok {
		return false
	}
	f.state = next
	return true
}

func (f *FSM) handleSync(event Event, g map[string]bool) (State, bool) {
	s := f.state
	if g["positions_ok"] && g["data_ok"] {
		f.fire(s, Idle, event, g)
		return Idle, true
	}
	if !g["data_ok"] || g["broker_down"] {
		f.fire(s, Safe, event, g)
		return Safe, true
	}
	return "", false
}

func (f *FSM) handleIdle(event Event, g map[string]bool) (State, bool) {
	s := f.state
	if g["data_stale"] || g["greeks_bad"] || g["broker_down"] {
		f.fire(s, Safe, event, g)
		return Safe, true
	}
	if g["option_position"] && g["strategy_enabled"] {
		f.fire(s, Armed, event, g)
		return Armed, true
	}
	return "", false
}

func (f *FSM) handleArmed(event Event, g map[string]bool) (State, bool) {
	s := f.state
	if g["delta_band_ready"] {
		f.fire(s, Monitor, event, g)
		return Monitor, true
	}
	return "", false
}

func (f *FSM) handleMonitor(event Event, g map[string]bool) (State, bool) {
	s := f.state
	switch {
	case g["in_no_trade_band"]:
		f.fire(s, NoTrade, event, g)
		return NoTrade, true
	case g["out_of_band"] && g["cost_ok"] && g["liquidity_ok"]:
		f.fire(s, NeedHedge, event, g)
		return NeedHedge, true
	case g["out_of_band"] && !g["cost_ok"]:
		f.fire(s, PauseCost, event, g)
		return PauseCost, true
	case g["out_of_band"] && !g["liquidity_ok"]:
		f.fire(s, PauseLiq, event, g)
		return PauseLiq, true
	}
	return "", false
}

func (f *FSM) handleNoTrade(event Event, g map[string]bool) (State, bool) {
	s := f.state
	switch {
	case g["out_of_band"] && g["cost_ok"] && g["liquidity_ok"]:
		f.fire(s, NeedHedge, event, g)
		return NeedHedge, true
	case g["out_of_band"] && !g["cost_ok"]:
		f.fire(s, PauseCost, event, g)
		return PauseCost, true
	case g["out_of_band"] && !g["liquidity_ok"]:
		f.fire(s, PauseLiq, event, g)
		return PauseLiq, true
	}
	return "", false
}

func (f *FSM) handlePause(event Event, g map[string]bool) (State, bool) {
	s := f.state
	switch {
	case g["in_no_trade_band"]:
		f.fire(s, NoTrade, event, g)
		return NoTrade, true
	case g["out_of_band"] && g["cost_ok"] && g["liquidity_ok"]:
		f.fire(s, NeedHedge, event, g)
		return NeedHedge, true
	}
	return "", false
}

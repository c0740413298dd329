// Package hedgefsm implements the Hedge Execution FSM (the micro FSM),
// grounded on original_source's src/fsm/hedge_execution_fsm.py.
package hedgefsm

import (
	"log"

	"github.com/bifrosttrader/hedge-daemon/pkg/stateenum"
)

// State is one node of the hedge execution FSM.
type State string

const (
	ExecIdle   State = "EXEC_IDLE"
	Plan       State = "PLAN"
	Send       State = "SEND"
	WaitAck    State = "WAIT_ACK"
	Working    State = "WORKING"
	Filled     State = "FILLED"
	Partial    State = "PARTIAL"
	Reprice    State = "REPRICE"
	Cancel     State = "CANCEL"
	Recover    State = "RECOVER"
	Fail       State = "FAIL"
)

// Event is one transition trigger.
type Event string

const (
	RecvTarget       Event = "RECV_TARGET"
	PlanSkip         Event = "PLAN_SKIP"
	PlanSend         Event = "PLAN_SEND"
	PlaceOrder       Event = "PLACE_ORDER"
	AckOK            Event = "ACK_OK"
	AckReject        Event = "ACK_REJECT"
	TimeoutAck       Event = "TIMEOUT_ACK"
	BrokerDown       Event = "BROKER_DOWN"
	PartialFill      Event = "PARTIAL_FILL"
	FullFill         Event = "FULL_FILL"
	TimeoutWorking   Event = "TIMEOUT_WORKING"
	RiskTrip         Event = "RISK_TRIP"
	ManualCancel     Event = "MANUAL_CANCEL"
	CancelSent       Event = "CANCEL_SENT"
	PositionsResynced Event = "POSITIONS_RESYNCED"
	CannotRecover    Event = "CANNOT_RECOVER"
	TryResync        Event = "TRY_RESYNC"
)

// TargetPosition is the hedge intent handed to the execution FSM, the Go
// analogue of original_source's TargetPositionEvent.
type TargetPosition struct {
	TargetShares float64
	Reason       string
}

// toExecutionState maps a hedge FSM state to the legacy E0..E4 execution
// state used in CompositeState/StateSnapshot.
func toExecutionState(h State, connected bool) stateenum.ExecutionState {
	if !connected {
		return stateenum.EDisconnected
	}
	switch h {
	case Fail:
		return stateenum.EBrokerError
	case ExecIdle, Filled:
		return stateenum.EIdle
	case Partial:
		return stateenum.EPartialFill
	case Plan, Send, WaitAck, Working, Reprice, Cancel, Recover:
		return stateenum.EOrderWorking
	default:
		return stateenum.EIdle
	}
}

// OnTransition is invoked after every successful transition.
type OnTransition func(from, to State, event Event)

// FSM is the hedge execution micro FSM. A single daemon runs exactly one
// instance at a time, touched only from the main loop goroutine.
type FSM struct {
	state          State
	minHedgeShares float64
	onTransition   OnTransition

	currentTarget *TargetPosition
	needShares    float64
	connected     bool
}

func New(minHedgeShares float64, onTransition OnTransition) *FSM {
	return &FSM{
		state:          ExecIdle,
		minHedgeShares: minHedgeShares,
		onTransition:   onTransition,
		connected:      true,
	}
}

func (f *FSM) State() State                        { return f.state }
func (f *FSM) NeedShares() float64                  { return f.needShares }
func (f *FSM) CurrentTarget() *TargetPosition       { return f.currentTarget }
func (f *FSM) SetConnected(connected bool)          { f.connected = connected }
func (f *FSM) EffectiveExecutionState() stateenum.ExecutionState {
	return toExecutionState(f.state, f.connected)
}

// CanPlaceOrder reports whether the FSM is ready to accept a new target:
// EXEC_IDLE or FILLED.
func (f *FSM) CanPlaceOrder() bool {
	return f.state == ExecIdle || f.state == Filled
}

func (f *FSM) transition(to State, event Event) bool {
	from := f.state
	f.state = to
	log.Printf("[HedgeExecFSM] %s -> %s on %s", from, to, event)
	if f.onTransition != nil {
		f.onTransition(from, to, event)
	}
	return true
}

// OnTarget receives a new hedge target. Only valid from EXEC_IDLE/FILLED.
func (f *FSM) OnTarget(target TargetPosition, currentStockPos float64) bool {
	if !f.CanPlaceOrder() {
		log.Printf("[HedgeExecFSM] received target in state %s", f.state)
		return false
	}
	f.currentTarget = &target
	f.needShares = target.TargetShares - currentStockPos
	return f.transition(Plan, RecvTarget)
}

// OnPlanDecide resolves PLAN to SEND (sendOrder true) or EXEC_IDLE.
func (f *FSM) OnPlanDecide(sendOrder bool) bool {
	if f.state != Plan {
		return false
	}
	if sendOrder {
		return f.transition(Send, PlanSend)
	}
	f.currentTarget = nil
	return f.transition(ExecIdle, PlanSkip)
}

// OnOrderPlaced moves SEND or REPRICE to WAIT_ACK.
func (f *FSM) OnOrderPlaced() bool {
	if f.state != Send && f.state != Reprice {
		return false
	}
	return f.transition(WaitAck, PlaceOrder)
}

func (f *FSM) OnAckOK() bool {
	if f.state != WaitAck {
		return false
	}
	return f.transition(Working, AckOK)
}

func (f *FSM) OnAckReject() bool {
	if f.state != WaitAck {
		return false
	}
	return f.transition(Fail, AckReject)
}

func (f *FSM) OnTimeoutAck() bool {
	if f.state != WaitAck {
		return false
	}
	return f.transition(Fail, TimeoutAck)
}

func (f *FSM) OnPartialFill() bool {
	if f.state != Working {
		return false
	}
	return f.transition(Partial, PartialFill)
}

func (f *FSM) OnFullFill() bool {
	if f.state != Working {
		return false
	}
	f.currentTarget = nil
	f.needShares = 0
	return f.transition(Filled, FullFill)
}

func (f *FSM) OnTimeoutWorking() bool {
	if f.state != Working {
		return false
	}
	return f.transition(Reprice, TimeoutWorking)
}

func (f *FSM) OnRiskTrip() bool {
	if f.state != Working {
		return false
	}
	return f.transition(Cancel, RiskTrip)
}

func (f *FSM) OnManualCancel() bool {
	if f.state != Working {
		return false
	}
	return f.transition(Cancel, ManualCancel)
}

// OnBrokerDown maps WAIT_ACK->FAIL, WORKING->CANCEL; otherwise just marks
// the FSM disconnected.
func (f *FSM) OnBrokerDown() bool {
	switch f.state {
	case WaitAck:
		return f.transition(Fail, BrokerDown)
	case Working:
		return f.transition(Cancel, BrokerDown)
	default:
		f.connected = false
		return true
	}
}

func (f *FSM) OnCancelSent() bool {
	if f.state != Cancel {
		return false
	}
	return f.transition(Recover, CancelSent)
}

func (f *FSM) OnPositionsResynced() bool {
	if f.state != Recover {
		return false
	}
	f.currentTarget = nil
	f.needShares = 0
	return f.transition(ExecIdle, PositionsResynced)
}

func (f *FSM) OnCannotRecover() bool {
	if f.state != Recover {
		return false
	}
	return f.transition(Fail, CannotRecover)
}

func (f *FSM) OnTryResync() bool {
	if f.state != Fail {
		return false
	}
	return f.transition(Recover, TryResync)
}

// OnPartialReplan resolves PARTIAL to SEND (sendOrder true) or EXEC_IDLE.
func (f *FSM) OnPartialReplan(sendOrder bool) bool {
	if f.state != Partial {
		return false
	}
	if sendOrder {
		return f.transition(Send, PlanSend)
	}
	f.currentTarget = nil
	f.needShares = 0
	return f.transition(ExecIdle, PlanSkip)
}

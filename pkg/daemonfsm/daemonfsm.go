// Package daemonfsm implements the daemon lifecycle FSM, grounded on
// original_source's src/fsm/daemon_fsm.py. WAITING_IB lets the daemon stay
// up and retry the broker connection periodically rather than stopping
// solely because IB is unreachable.
package daemonfsm

import "log"

// State is one daemon lifecycle node.
type State string

const (
	Idle              State = "idle"
	Connecting        State = "connecting"
	WaitingIB         State = "waiting_ib"
	Connected         State = "connected"
	Running           State = "running"
	RunningSuspended  State = "running_suspended"
	Stopping          State = "stopping"
	Stopped           State = "stopped"
)

var transitions = map[State]map[State]bool{
	Idle:             {Connecting: true, Stopped: true},
	Connecting:       {Connected: true, WaitingIB: true, Stopping: true},
	WaitingIB:        {Connecting: true, Connected: true, Stopping: true},
	Connected:        {Running: true, Stopping: true},
	Running:          {Stopping: true, RunningSuspended: true, WaitingIB: true},
	RunningSuspended: {Running: true, Stopping: true, WaitingIB: true},
	Stopping:         {Stopped: true},
	Stopped:          {},
}

// OnTransition is invoked after every successful transition.
type OnTransition func(from, to State)

// FSM tracks daemon lifecycle state. A single daemon process owns exactly
// one instance, touched only from the main loop goroutine.
type FSM struct {
	current      State
	onTransition OnTransition
}

func New(onTransition OnTransition) *FSM {
	return &FSM{current: Idle, onTransition: onTransition}
}

func (f *FSM) Current() State { return f.current }

func (f *FSM) CanTransitionTo(to State) bool {
	return transitions[f.current][to]
}

// Transition moves to the given state if the edge is valid. Returns false
// (and logs) on an invalid transition.
func (f *FSM) Transition(to State) bool {
	if !f.CanTransitionTo(to) {
		log.Printf("[DaemonFSM] invalid transition: %s -> %s", f.current, to)
		return false
	}
	from := f.current
	f.current = to
	log.Printf("[DaemonFSM] %s -> %s", from, to)
	if f.onTransition != nil {
		f.onTransition(from, to)
	}
	return true
}

// IsRunning is true in RUNNING or RUNNING_SUSPENDED, i.e. when the
// heartbeat and main loop should be active.
func (f *FSM) IsRunning() bool {
	return f.current == Running || f.current == RunningSuspended
}

// IsActive is true when the daemon can process hedges: CONNECTED or
// RUNNING.
func (f *FSM) IsActive() bool {
	return f.current == Connected || f.current == Running
}

// RequestStop transitions to STOPPING from any live state, or directly to
// STOPPED from IDLE.
func (f *FSM) RequestStop() bool {
	switch f.current {
	case Running, RunningSuspended, Connecting, WaitingIB, Connected:
		return f.Transition(Stopping)
	case Idle:
		return f.Transition(Stopped)
	}
	return false
}

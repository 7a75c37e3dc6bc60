package node

import (
	"sync/atomic"
)

// State captures the state of a node: Created, Running or Shutdown.
type State uint32

const (
	//Created is the state of a node before Start.
	Created State = iota
	//Running means discovery and heartbeats are scheduled.
	Running
	//Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// transition moves from one state to another and reports whether the node was
// in the from state.
func (b *state) transition(from, to State) bool {
	stateAddr := (*uint32)(&b.state)
	return atomic.CompareAndSwapUint32(stateAddr, uint32(from), uint32(to))
}

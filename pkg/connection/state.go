package connection

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	// Disconnected is the initial state, and the state after a stop or a
	// failed start.
	Disconnected State = iota
	// Connecting means a start attempt is negotiating or connecting.
	Connecting
	// Connected means a transport is open and Send is allowed.
	Connected
	// Reconnecting means the transport was lost and the reconnect policy is
	// being followed.
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// stateMachine holds the current State. Transitions are compare-and-set so a
// concurrent Stop is never overwritten by an attempt that finishes later.
type stateMachine struct {
	v        atomic.Int32
	observer func(from, to State)
}

func (m *stateMachine) current() State {
	return State(m.v.Load())
}

// transition moves from -> to only if the current state is from.
func (m *stateMachine) transition(from, to State) bool {
	if !m.v.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	m.notify(from, to)
	return true
}

// set forces the state and returns the previous one.
func (m *stateMachine) set(to State) State {
	prev := State(m.v.Swap(int32(to)))
	if prev != to {
		m.notify(prev, to)
	}
	return prev
}

func (m *stateMachine) notify(from, to State) {
	if m.observer != nil && from != to {
		m.observer(from, to)
	}
}

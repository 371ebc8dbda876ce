package lk220

import "sync/atomic"

// OpState is the lifecycle state of a Controller's connection.
//
// The lifecycle is Closed -> Opening -> Opened -> Closing -> Closed.
// Closed is terminal after a Close; reopening requires a new Controller.
// While Opened, the half-duplex Idle/InTransaction exclusion is enforced
// separately by txGate.
type OpState uint32

const (
	ClosedState OpState = iota
	OpeningState
	OpenedState
	ClosingState
)

func (s OpState) String() string {
	switch s {
	case ClosedState:
		return "Closed"
	case OpeningState:
		return "Opening"
	case OpenedState:
		return "Opened"
	case ClosingState:
		return "Closing"
	default:
		return "Unknown"
	}
}

// AtomicOpState holds an OpState with atomic CAS transitions.
type AtomicOpState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *AtomicOpState) Get() OpState {
	return OpState(st.state.Load())
}

// Set sets the state unconditionally.
func (st *AtomicOpState) Set(state OpState) {
	st.state.Store(uint32(state))
}

func (st *AtomicOpState) String() string {
	return st.Get().String()
}

func (st *AtomicOpState) IsClosed() bool {
	return st.Get() == ClosedState
}

func (st *AtomicOpState) IsOpening() bool {
	return st.Get() == OpeningState
}

func (st *AtomicOpState) IsOpened() bool {
	return st.Get() == OpenedState
}

func (st *AtomicOpState) IsClosing() bool {
	return st.Get() == ClosingState
}

// ToOpening transitions Closed -> Opening.
func (st *AtomicOpState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(ClosedState), uint32(OpeningState))
}

// ToOpened transitions Opening -> Opened.
func (st *AtomicOpState) ToOpened() bool {
	if st.IsOpened() {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(OpenedState))
}

// ToClosing transitions Opened -> Closing, or Opening -> Closing when an
// open sequence is aborted.
func (st *AtomicOpState) ToClosing() bool {
	if st.state.CompareAndSwap(uint32(OpenedState), uint32(ClosingState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(ClosingState))
}

// ToClosed transitions Closing -> Closed.
func (st *AtomicOpState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState))
}

// txGate guards the half-duplex invariant: at most one command/reply
// transaction may be in flight on the connection.
type txGate struct {
	busy atomic.Bool
}

// enter claims the transaction slot; it reports false if a transaction is
// already in flight.
func (g *txGate) enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// leave releases the transaction slot.
func (g *txGate) leave() {
	g.busy.Store(false)
}

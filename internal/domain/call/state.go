// Package call implements the per-channel call state machine and the
// endpoint that drives a peer handshake over the signaling relay.
package call

// State is the lifecycle state of one call channel.
type State string

// Call states.
const (
	StateIdle       State = "idle"
	StateWaiting    State = "waiting"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateEnded      State = "ended"
	StateError      State = "error"
)

// Channel identifies one independent handshake within a session.
type Channel string

// Call channels.
const (
	ChannelPrimary Channel = "primary"
	ChannelScreen  Channel = "screen"
)

// Role is the side of the call an endpoint plays.
type Role string

// Participant roles.
const (
	RoleCandidate Role = "candidate"
	RoleObserver  Role = "observer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleCandidate || r == RoleObserver }

// Peer returns the opposite role.
func (r Role) Peer() Role {
	if r == RoleCandidate {
		return RoleObserver
	}
	return RoleCandidate
}

var transitions = map[State][]State{ //nolint:gochecknoglobals // fixed transition table
	StateIdle:       {StateWaiting, StateError, StateEnded},
	StateWaiting:    {StateConnecting, StateError, StateEnded},
	StateConnecting: {StateConnected, StateError, StateEnded},
	StateConnected:  {StateError, StateEnded},
}

// CanTransition reports whether a channel may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is ended or error.
func (s State) Terminal() bool { return s == StateEnded || s == StateError }

// Machine tracks the state of one channel. It is not safe for concurrent
// use; the owning Endpoint serializes access.
type Machine struct {
	state State
}

// NewMachine returns a machine in the idle state.
func NewMachine() *Machine { return &Machine{state: StateIdle} }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Transition moves to next or returns ErrInvalidTransition.
func (m *Machine) Transition(next State) error {
	if !m.state.CanTransition(next) {
		return &TransitionError{From: m.state, To: next}
	}
	m.state = next
	return nil
}

// Reset returns a terminal channel to idle so the call can be restarted.
// It has no effect on a channel that is still live.
func (m *Machine) Reset() bool {
	if !m.state.Terminal() {
		return false
	}
	m.state = StateIdle
	return true
}

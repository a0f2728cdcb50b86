package interview

// State is the lifecycle phase of a [Session].
type State int

const (
	// StateIdle is a session that has not been started.
	StateIdle State = iota

	// StateConnecting covers microphone acquisition and the live handshake.
	StateConnecting

	// StateOpen is the steady state: audio flows both ways.
	StateOpen

	// StateClosed is terminal. A closed session cannot be restarted.
	StateClosed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

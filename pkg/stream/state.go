// ABOUTME: Stream lifecycle states
// ABOUTME: Closed -> Open -> Running -> Closing -> Closed
package stream

// State is a stream lifecycle state
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateRunning
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateRunning:
		return "running"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

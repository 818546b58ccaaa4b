package channel

// State is the lifecycle state of a Channel.
type State int

const (
	// StateConnecting is the state right after Connect, before any frame arrived.
	StateConnecting State = iota
	// StateStreaming means the last handled frame was understood.
	StateStreaming
	// StateFailed follows a transport error or an undecodable frame. A later
	// well-formed frame moves the channel back to StateStreaming.
	StateFailed
	// StateClosed means the read loop ended; no further input is handled.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

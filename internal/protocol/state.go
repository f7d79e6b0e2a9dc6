package protocol

// State is the phase of the conversation with the worker.
type State int32

const (
	// StateIdle means no exchange is in flight.
	StateIdle State = iota
	// StateCommandSent means a command was written and its header is awaited.
	StateCommandSent
	// StateHeaderReceived means the header line was read and decoded.
	StateHeaderReceived
	// StateCollectingLines means declared follow-up lines are being read.
	StateCollectingLines
	// StateComplete means the response was assembled and is being delivered.
	StateComplete
	// StateBroken is terminal: no further exchanges are accepted.
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCommandSent:
		return "command_sent"
	case StateHeaderReceived:
		return "header_received"
	case StateCollectingLines:
		return "collecting_lines"
	case StateComplete:
		return "complete"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

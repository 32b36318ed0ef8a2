package proto

// MessageKind classifies an operator-facing agent message.
type MessageKind int

const (
	// MessageAICall announces an outbound model request.
	MessageAICall MessageKind = iota
	// MessageUnitTest reports a validation step such as a URL probe.
	MessageUnitTest
	// MessageIssue reports a problem the run absorbed or is about to fail on.
	MessageIssue
)

// String returns the string representation of the message kind.
func (k MessageKind) String() string {
	switch k {
	case MessageAICall:
		return "ai_call"
	case MessageUnitTest:
		return "unit_test"
	case MessageIssue:
		return "issue"
	default:
		return "unknown"
	}
}

// AgentMessage is a single observability event tagged with the agent's
// position and the operation it is performing.
type AgentMessage struct {
	Position  string
	Statement string
	Kind      MessageKind
}

// Notifier receives agent messages. Implementations must not block the run.
type Notifier interface {
	Notify(msg AgentMessage)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg AgentMessage)

// Notify calls f(msg).
func (f NotifierFunc) Notify(msg AgentMessage) {
	f(msg)
}

// Discard is a Notifier that drops every message.
var Discard Notifier = NotifierFunc(func(AgentMessage) {})

// Tee returns a Notifier that forwards each message to every non-nil target in order.
func Tee(targets ...Notifier) Notifier {
	return NotifierFunc(func(msg AgentMessage) {
		for _, n := range targets {
			if n != nil {
				n.Notify(msg)
			}
		}
	})
}

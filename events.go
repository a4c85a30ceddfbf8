package rews

// EventKind enumerates the lifecycle events a client emits. The set is
// closed on purpose: dispatch is keyed on these values, not on strings.
type EventKind byte

const (
	// EventOpen fires once a transport reaches the open state.
	EventOpen EventKind = iota
	// EventMessage fires for every payload delivered by the transport.
	EventMessage
	// EventClose fires when the transport closes, whichever side initiated it.
	EventClose
	// EventError fires when the transport reports an error. The client
	// force-closes the transport right after, so EventClose follows.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is what handlers receive. Only the fields relevant to the kind are
// populated: Message for EventMessage, Code/Reason for EventClose, Err for
// EventError.
type Event struct {
	Kind    EventKind
	Message Message
	Code    int
	Reason  string
	Err     error
}

// Handler processes a single event. Handlers for the same kind run in
// registration order; a panicking handler does not stop the rest.
type Handler func(Event)

package protocol

// EventKind is the structural marker of an event frame ("event_kind" on the
// wire). Its presence takes priority over the nominal "type" field.
type EventKind string

const (
	EventAbort  EventKind = "abort"
	EventListen EventKind = "listen"
)

// Listen states understood by gateways.
const (
	ListenStart  = "start"
	ListenStop   = "stop"
	ListenDetect = "detect"
)

// AbortEvent interrupts the current response.
type AbortEvent struct {
	Reason string
}

// ListenEvent controls the gateway listening state.
type ListenEvent struct {
	State string
	Mode  string
	Text  string
}

// Event is shared by requests and responses. Exactly one of Abort or Listen
// is expected to be set, matching Kind. A decoded abort or listen event
// always has its sub-payload set, even when the encoded event had none.
type Event struct {
	SessionID string
	Version   int
	Type      string
	Kind      EventKind
	Abort     *AbortEvent
	Listen    *ListenEvent
}

func (e Event) RequestType() string { return e.typeName() }

func (e Event) ResponseType() string { return e.typeName() }

func (e Event) typeName() string {
	if e.Type != "" {
		return e.Type
	}
	return string(e.Kind)
}

package hal

// Event is a bitmask of conditions reported by the device stack through its
// event handler. One invocation of the handler is an event round and may
// carry more than one bit.
type Event uint32

// Event bits.
const (
	EventReceive  Event = 1 << 0 // OUT data is buffered and ready to be received
	EventTransmit Event = 1 << 1 // The packet handed to Transmit has completed

	EventAll = EventReceive | EventTransmit
)

// Has reports whether all bits of mask are set in e.
func (e Event) Has(mask Event) bool {
	return e&mask == mask
}

// String returns a human-readable list of the event bits.
func (e Event) String() string {
	switch e {
	case 0:
		return "none"
	case EventReceive:
		return "receive"
	case EventTransmit:
		return "transmit"
	case EventAll:
		return "receive|transmit"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a CDC device stack.
type State uint8

// Device stack states.
const (
	StateUninitialized State = iota // Created, not enabled
	StateEnabling                   // Enabled, waiting for the host to configure
	StateReady                      // Configured, data transfers permitted
	StateSuspended                  // Bus suspended by the host
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateEnabling:
		return "Enabling"
	case StateReady:
		return "Ready"
	case StateSuspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// EventHandler receives event rounds from the device stack. It may be
// invoked from interrupt context and must not block.
type EventHandler func(events Event)

// CDC is the packet-oriented device-stack contract consumed by the serial
// layer. Implementations own USB enumeration, endpoint handling and the
// class control requests; the serial layer only moves payload bytes.
type CDC interface {
	// Enable brings the device stack up and subscribes handler to the
	// events in mask.
	Enable(handler EventHandler, mask Event) error

	// Notify subscribes handler to the events in mask without enabling
	// the stack. Used when another consumer already brought it up.
	Notify(handler EventHandler, mask Event) error

	// Disable tears the device stack down and drops the subscription.
	Disable() error

	// State returns the current device stack state.
	State() State

	// Transmit hands one packet to the device stack. It returns
	// immediately; completion is reported with EventTransmit. data must
	// stay untouched until then.
	Transmit(data []byte) error

	// Receive copies up to len(buf) bytes the device stack has already
	// buffered into buf and returns the count, which may be zero.
	Receive(buf []byte) int

	// Done reports whether no transmission is in flight.
	Done() bool

	// Connected reports whether a host has the port open.
	Connected() bool

	// LineCoding returns the line coding last set by the host.
	LineCoding() LineCoding

	// LineState returns the control-line bitmask last set by the host
	// (ControlLineDTR, ControlLineRTS).
	LineState() uint16

	// FIFOSize returns the size of the transmit FIFO in bytes.
	FIFOSize() int
}

// ExecContext describes the execution context of a caller and how it gives
// up the processor while waiting. A device stack that can tell whether it is
// running in interrupt context implements it.
type ExecContext interface {
	// InInterrupt reports whether the caller cannot be suspended.
	InInterrupt() bool

	// Yield cedes the processor to other runnable work.
	Yield()
}

package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// Defaults for a full-speed device.
const (
	DefaultFIFOSize      = 64
	DefaultMaxPacketSize = 64
	DefaultOutCapacity   = 1024
	DefaultInCapacity    = 4096
	DefaultPollInterval  = time.Millisecond
)

// HAL is a simulated CDC device stack. It implements hal.CDC on the device
// side and exposes host-side controls for tests.
type HAL struct {
	fifoSize     int
	maxPacket    int
	outCapacity  int
	inCapacity   int
	pollInterval time.Duration

	// State
	state      hal.State
	attached   bool
	lineCoding hal.LineCoding
	lineState  uint16
	handler    hal.EventHandler
	mask       hal.Event
	onBreak    func(millis uint16)

	// OUT: host -> device bytes waiting for Receive
	out []byte

	// IN: packet in flight and bytes completed toward the host
	pending []byte
	busy    bool
	in      []byte

	// Transmit history
	packets []int
	zlps    int

	mutex   sync.Mutex
	running atomic.Bool
	wake    chan struct{}
	inReady chan struct{}
}

// Option configures a simulated stack.
type Option func(*HAL)

// WithFIFOSize sets the transmit FIFO size. It is rounded up to whole packets.
func WithFIFOSize(n int) Option {
	return func(h *HAL) { h.fifoSize = n }
}

// WithMaxPacketSize sets the bulk endpoint packet size.
func WithMaxPacketSize(n int) Option {
	return func(h *HAL) { h.maxPacket = n }
}

// WithOutCapacity bounds how many OUT bytes the stack buffers.
func WithOutCapacity(n int) Option {
	return func(h *HAL) { h.outCapacity = n }
}

// WithInCapacity bounds how many IN bytes wait for HostRead before packet
// completion stalls.
func WithInCapacity(n int) Option {
	return func(h *HAL) { h.inCapacity = n }
}

// WithPollInterval sets how often Run re-offers queued OUT data.
func WithPollInterval(d time.Duration) Option {
	return func(h *HAL) { h.pollInterval = d }
}

// New creates a detached, uninitialized simulated stack.
func New(opts ...Option) *HAL {
	h := &HAL{
		fifoSize:     DefaultFIFOSize,
		maxPacket:    DefaultMaxPacketSize,
		outCapacity:  DefaultOutCapacity,
		inCapacity:   DefaultInCapacity,
		pollInterval: DefaultPollInterval,
		lineCoding:   hal.DefaultLineCoding,
		wake:         make(chan struct{}, 1),
		inReady:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.maxPacket <= 0 {
		h.maxPacket = DefaultMaxPacketSize
	}
	if h.fifoSize < h.maxPacket {
		h.fifoSize = h.maxPacket
	}
	h.fifoSize = (h.fifoSize + h.maxPacket - 1) / h.maxPacket * h.maxPacket
	if h.inCapacity < h.fifoSize {
		h.inCapacity = h.fifoSize
	}
	if h.pollInterval <= 0 {
		h.pollInterval = DefaultPollInterval
	}
	return h
}

// Device side (hal.CDC)

// Enable brings the stack up and subscribes handler.
func (h *HAL) Enable(handler hal.EventHandler, mask hal.Event) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state != hal.StateUninitialized {
		return pkg.ErrAlreadyRunning
	}
	h.handler = handler
	h.mask = mask
	h.state = hal.StateEnabling
	if h.attached {
		h.state = hal.StateReady
	}

	pkg.LogDebug(pkg.ComponentSim, "stack enabled", "state", h.state, "mask", mask)
	return nil
}

// Notify replaces the event subscription of an enabled stack.
func (h *HAL) Notify(handler hal.EventHandler, mask hal.Event) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state == hal.StateUninitialized {
		return pkg.ErrNotConfigured
	}
	h.handler = handler
	h.mask = mask

	pkg.LogDebug(pkg.ComponentSim, "subscription replaced", "mask", mask)
	return nil
}

// Disable tears the stack down. A packet in flight is discarded.
func (h *HAL) Disable() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.state = hal.StateUninitialized
	h.handler = nil
	h.mask = 0
	h.pending = h.pending[:0]
	h.busy = false

	pkg.LogDebug(pkg.ComponentSim, "stack disabled")
	return nil
}

// State returns the current stack state.
func (h *HAL) State() hal.State {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.state
}

// Transmit accepts one packet. The bytes are copied; completion is reported
// by the next Step.
func (h *HAL) Transmit(data []byte) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state != hal.StateReady {
		return pkg.ErrNotReady
	}
	if h.busy {
		return pkg.ErrTransmitPending
	}
	if len(data) > h.fifoSize {
		return fmt.Errorf("transmit %d bytes into %d byte fifo: %w",
			len(data), h.fifoSize, pkg.ErrBufferTooSmall)
	}

	h.pending = append(h.pending[:0], data...)
	h.busy = true
	h.signal()
	return nil
}

// Receive copies queued OUT bytes into buf.
func (h *HAL) Receive(buf []byte) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	n := copy(buf, h.out)
	h.out = append(h.out[:0], h.out[n:]...)
	return n
}

// Done reports whether no packet is in flight.
func (h *HAL) Done() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return !h.busy
}

// Connected reports whether the cable is attached and the host asserts DTR.
func (h *HAL) Connected() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.attached && h.lineState&hal.ControlLineDTR != 0
}

// LineCoding returns the line coding last set by the host.
func (h *HAL) LineCoding() hal.LineCoding {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.lineCoding
}

// LineState returns the control lines last set by the host.
func (h *HAL) LineState() uint16 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.lineState
}

// FIFOSize returns the transmit FIFO size.
func (h *HAL) FIFOSize() int {
	return h.fifoSize
}

// MaxPacketSize returns the bulk endpoint packet size.
func (h *HAL) MaxPacketSize() int {
	return h.maxPacket
}

// Event dispatch

// Step runs one event round: it completes the packet in flight, raises a
// receive event while OUT data is queued, and calls the handler with the
// subscribed events. It returns the events delivered.
//
// Step must not be called concurrently with itself or with Run.
func (h *HAL) Step() hal.Event {
	h.mutex.Lock()
	var events hal.Event
	if h.busy && h.completeLocked() {
		events |= hal.EventTransmit
	}
	if len(h.out) > 0 && h.state == hal.StateReady {
		events |= hal.EventReceive
	}
	handler := h.handler
	events &= h.mask
	h.mutex.Unlock()

	if events == 0 || handler == nil {
		return 0
	}
	handler(events)
	return events
}

// completeLocked moves the packet in flight toward the host. It returns
// false while the host has not read enough to make room.
func (h *HAL) completeLocked() bool {
	if h.attached {
		if len(h.in)+len(h.pending) > h.inCapacity {
			return false
		}
		h.in = append(h.in, h.pending...)
		select {
		case h.inReady <- struct{}{}:
		default:
		}
	}

	h.packets = append(h.packets, len(h.pending))
	if len(h.pending) > 0 && len(h.pending)%h.maxPacket == 0 {
		h.zlps++
	}
	h.pending = h.pending[:0]
	h.busy = false
	return true
}

// Run calls Step whenever it is woken by a transmit or host activity, and
// every poll interval so that OUT data left queued by a full receive buffer
// is offered again. It returns when ctx is done.
func (h *HAL) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer h.running.Store(false)

	pkg.LogDebug(pkg.ComponentSim, "event pump started", "poll", h.pollInterval)

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pkg.LogDebug(pkg.ComponentSim, "event pump stopped")
			return nil
		case <-h.wake:
		case <-ticker.C:
		}
		h.Step()
	}
}

// signal wakes Run. Callers may or may not hold the mutex.
func (h *HAL) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

var _ hal.CDC = (*HAL)(nil)

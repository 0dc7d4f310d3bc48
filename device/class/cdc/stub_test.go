package cdc

import (
	"errors"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// stubHAL is a single-goroutine device stack. Tests drive event rounds by
// hand with complete and deliver.
type stubHAL struct {
	state     hal.State
	lineState uint16
	coding    hal.LineCoding
	fifo      int
	connected bool

	busy    bool
	packets []int
	sent    []byte

	rxq        []byte
	maxReceive int

	failTransmit int
	attempts     int

	handler  hal.EventHandler
	enabled  int
	notified int
	disabled int

	// onDisable runs at the end of Disable when set.
	onDisable func()
}

var errStubTransmit = errors.New("stub transmit failure")

func newStub() *stubHAL {
	return &stubHAL{
		state:     hal.StateReady,
		lineState: hal.ControlLineDTR | hal.ControlLineRTS,
		coding:    hal.DefaultLineCoding,
		fifo:      64,
		connected: true,
	}
}

func (h *stubHAL) Enable(handler hal.EventHandler, mask hal.Event) error {
	if h.state != hal.StateUninitialized {
		return pkg.ErrAlreadyRunning
	}
	h.handler = handler
	h.state = hal.StateReady
	h.enabled++
	return nil
}

func (h *stubHAL) Notify(handler hal.EventHandler, mask hal.Event) error {
	h.handler = handler
	h.notified++
	return nil
}

func (h *stubHAL) Disable() error {
	h.handler = nil
	h.state = hal.StateUninitialized
	h.busy = false
	h.disabled++
	if h.onDisable != nil {
		h.onDisable()
	}
	return nil
}

func (h *stubHAL) State() hal.State { return h.state }

func (h *stubHAL) Transmit(data []byte) error {
	h.attempts++
	if h.failTransmit > 0 {
		h.failTransmit--
		return errStubTransmit
	}
	if h.busy {
		return pkg.ErrTransmitPending
	}
	h.busy = true
	h.packets = append(h.packets, len(data))
	h.sent = append(h.sent, data...)
	return nil
}

func (h *stubHAL) Receive(buf []byte) int {
	if h.maxReceive > 0 && len(buf) > h.maxReceive {
		buf = buf[:h.maxReceive]
	}
	n := copy(buf, h.rxq)
	h.rxq = h.rxq[n:]
	return n
}

func (h *stubHAL) Done() bool                 { return !h.busy }
func (h *stubHAL) Connected() bool            { return h.connected }
func (h *stubHAL) LineCoding() hal.LineCoding { return h.coding }
func (h *stubHAL) LineState() uint16          { return h.lineState }
func (h *stubHAL) FIFOSize() int              { return h.fifo }

// complete finishes the packet in flight and runs the transmit round.
func (h *stubHAL) complete(s *Serial) bool {
	if !h.busy {
		return false
	}
	h.busy = false
	s.HandleEvent(hal.EventTransmit)
	return true
}

// completeAll runs transmit rounds until nothing is in flight.
func (h *stubHAL) completeAll(s *Serial) int {
	rounds := 0
	for h.complete(s) {
		rounds++
		if rounds > 1<<16 {
			panic("transmit chain does not terminate")
		}
	}
	return rounds
}

// deliver queues OUT data and runs one receive round.
func (h *stubHAL) deliver(s *Serial, data []byte) {
	h.rxq = append(h.rxq, data...)
	s.HandleEvent(hal.EventReceive)
}

var _ hal.CDC = (*stubHAL)(nil)

// yieldFunc is a foreground execution context whose Yield runs a test hook.
type yieldFunc func()

func (yieldFunc) InInterrupt() bool { return false }
func (f yieldFunc) Yield()          { f() }

var _ hal.ExecContext = yieldFunc(nil)

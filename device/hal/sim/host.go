package sim

import (
	"context"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// Attach plugs the cable in. An enabled stack becomes ready.
func (h *HAL) Attach() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.attached = true
	if h.state == hal.StateEnabling {
		h.state = hal.StateReady
	}
	pkg.LogDebug(pkg.ComponentSim, "host attached", "state", h.state)
}

// Detach unplugs the cable. Control lines drop, and a packet in flight
// completes without reaching the host.
func (h *HAL) Detach() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.attached = false
	h.lineState = 0
	if h.state == hal.StateReady || h.state == hal.StateSuspended {
		h.state = hal.StateEnabling
	}
	h.signal()
	pkg.LogDebug(pkg.ComponentSim, "host detached", "state", h.state)
}

// Suspend puts a ready stack into the suspended state.
func (h *HAL) Suspend() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state == hal.StateReady {
		h.state = hal.StateSuspended
	}
}

// Resume returns a suspended stack to the ready state.
func (h *HAL) Resume() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.state == hal.StateSuspended {
		h.state = hal.StateReady
	}
	h.signal()
}

// Open attaches and asserts DTR and RTS, as a host terminal does when it
// opens the port.
func (h *HAL) Open() error {
	h.Attach()
	return h.SetControlLines(true, true)
}

// SetControlLines issues SET_CONTROL_LINE_STATE.
func (h *HAL) SetControlLines(dtr, rts bool) error {
	var value uint16
	if dtr {
		value |= hal.ControlLineDTR
	}
	if rts {
		value |= hal.ControlLineRTS
	}
	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeClass | hal.RequestTypeInterface,
		Request:     hal.RequestSetControlLineState,
		Value:       value,
	}
	_, err := h.Control(&setup, nil)
	return err
}

// SetLineCoding issues SET_LINE_CODING.
func (h *HAL) SetLineCoding(lc hal.LineCoding) error {
	var buf [hal.LineCodingSize]byte
	lc.MarshalTo(buf[:])
	setup := hal.SetupPacket{
		RequestType: hal.RequestTypeClass | hal.RequestTypeInterface,
		Request:     hal.RequestSetLineCoding,
		Length:      hal.LineCodingSize,
	}
	_, err := h.Control(&setup, buf[:])
	return err
}

// SetOnBreak sets the callback for SEND_BREAK requests.
func (h *HAL) SetOnBreak(cb func(millis uint16)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onBreak = cb
}

// Control handles a class request on the control interface. For
// GET_LINE_CODING the response is written to data and its length returned.
func (h *HAL) Control(setup *hal.SetupPacket, data []byte) (int, error) {
	if !setup.IsClass() {
		return 0, pkg.ErrInvalidRequest
	}

	h.mutex.Lock()
	if !h.attached {
		h.mutex.Unlock()
		return 0, pkg.ErrNotReady
	}

	switch setup.Request {
	case hal.RequestSetLineCoding:
		var lc hal.LineCoding
		if !hal.ParseLineCoding(data, &lc) {
			h.mutex.Unlock()
			return 0, pkg.ErrBufferTooSmall
		}
		h.lineCoding = lc
		h.mutex.Unlock()

		pkg.LogDebug(pkg.ComponentSim, "line coding set",
			"baud", lc.DTERate,
			"dataBits", lc.DataBits,
			"parity", lc.ParityType,
			"stopBits", lc.CharFormat)
		return 0, nil

	case hal.RequestGetLineCoding:
		lc := h.lineCoding
		h.mutex.Unlock()

		n := lc.MarshalTo(data)
		if n == 0 {
			return 0, pkg.ErrBufferTooSmall
		}
		return n, nil

	case hal.RequestSetControlLineState:
		h.lineState = setup.Value & (hal.ControlLineDTR | hal.ControlLineRTS)
		dtr := h.lineState&hal.ControlLineDTR != 0
		rts := h.lineState&hal.ControlLineRTS != 0
		h.mutex.Unlock()

		pkg.LogDebug(pkg.ComponentSim, "control line state set",
			"dtr", dtr,
			"rts", rts)
		h.signal()
		return 0, nil

	case hal.RequestSendBreak:
		cb := h.onBreak
		h.mutex.Unlock()

		pkg.LogDebug(pkg.ComponentSim, "break signaled", "duration_ms", setup.Value)
		if cb != nil {
			cb(setup.Value)
		}
		return 0, nil

	default:
		h.mutex.Unlock()
		return 0, pkg.ErrInvalidRequest
	}
}

// HostWrite queues OUT data for the device. It accepts as much as fits in
// the stack's OUT buffer and returns pkg.ErrBusy with the count accepted if
// that is less than len(p).
func (h *HAL) HostWrite(p []byte) (int, error) {
	h.mutex.Lock()
	if !h.attached || h.state != hal.StateReady {
		h.mutex.Unlock()
		return 0, pkg.ErrNotReady
	}

	n := h.outCapacity - len(h.out)
	if n > len(p) {
		n = len(p)
	}
	h.out = append(h.out, p[:n]...)
	h.mutex.Unlock()

	if n > 0 {
		h.signal()
	}
	if n < len(p) {
		return n, pkg.ErrBusy
	}
	return n, nil
}

// HostRead waits for IN data and copies what is available into buf.
func (h *HAL) HostRead(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		h.mutex.Lock()
		n := copy(buf, h.in)
		h.in = append(h.in[:0], h.in[n:]...)
		h.mutex.Unlock()

		if n > 0 {
			// A completion may be waiting for room.
			h.signal()
			return n, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-h.inReady:
		}
	}
}

// Pending returns the number of OUT bytes the device has not received yet.
func (h *HAL) Pending() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.out)
}

// Packets returns the lengths of all completed transmit packets in order.
func (h *HAL) Packets() []int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]int(nil), h.packets...)
}

// ZeroLengthPackets returns how many completed transmits ended on a packet
// boundary and would need a trailing zero-length packet on the bus.
func (h *HAL) ZeroLengthPackets() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.zlps
}

package fifo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// Defaults for a full-speed device.
const (
	DefaultFIFOSize     = 64
	DefaultOutCapacity  = 2048
	DefaultPollInterval = time.Millisecond
)

// HAL implements hal.CDC over a pair of named pipes in a directory shared
// with a host process.
type HAL struct {
	dir          string
	fifoSize     int
	outCapacity  int
	pollInterval time.Duration

	hostToDevice *os.File // Device reads host messages
	deviceToHost *os.File // Device writes IN packets

	// State
	state      hal.State
	attached   bool
	lineCoding hal.LineCoding
	lineState  uint16
	handler    hal.EventHandler
	mask       hal.Event
	onBreak    func(millis uint16)

	// OUT bytes waiting for Receive
	out []byte

	// Packet in flight
	pending []byte
	busy    bool
	packets uint64

	mutex     sync.Mutex
	opened    bool
	running   atomic.Bool
	wake      chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
}

// Option configures a FIFO HAL.
type Option func(*HAL)

// WithFIFOSize sets the transmit FIFO size reported to the serial layer.
func WithFIFOSize(n int) Option {
	return func(h *HAL) { h.fifoSize = n }
}

// WithOutCapacity sets how many OUT bytes are held before the host pipe is
// left unread. It is raised to MaxDataSize if smaller.
func WithOutCapacity(n int) Option {
	return func(h *HAL) { h.outCapacity = n }
}

// WithPollInterval sets how often queued OUT data is offered again.
func WithPollInterval(d time.Duration) Option {
	return func(h *HAL) { h.pollInterval = d }
}

// New creates a FIFO HAL whose pipes live in dir. Call Open to create them.
func New(dir string, opts ...Option) *HAL {
	h := &HAL{
		dir:          dir,
		fifoSize:     DefaultFIFOSize,
		outCapacity:  DefaultOutCapacity,
		pollInterval: DefaultPollInterval,
		lineCoding:   hal.DefaultLineCoding,
		wake:         make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.fifoSize <= 0 {
		h.fifoSize = DefaultFIFOSize
	}
	if h.outCapacity < MaxDataSize {
		h.outCapacity = MaxDataSize
	}
	if h.pollInterval <= 0 {
		h.pollInterval = DefaultPollInterval
	}
	return h
}

// Open creates the directory and pipes and opens the device ends.
func (h *HAL) Open() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.opened {
		return pkg.ErrAlreadyRunning
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create fifo dir: %w", err)
	}
	if err := createFIFO(h.dir, fifoHostToDevice); err != nil {
		return err
	}
	if err := createFIFO(h.dir, fifoDeviceToHost); err != nil {
		return err
	}

	var err error
	if h.hostToDevice, err = openFIFO(h.dir, fifoHostToDevice); err != nil {
		h.cleanup()
		return err
	}
	if h.deviceToHost, err = openFIFO(h.dir, fifoDeviceToHost); err != nil {
		h.cleanup()
		return err
	}

	h.opened = true
	pkg.LogInfo(pkg.ComponentHAL, "fifo CDC HAL opened", "dir", h.dir)
	return nil
}

// Close stops Run, closes the pipes and removes the directory.
func (h *HAL) Close() error {
	h.closeOnce.Do(func() { close(h.closeCh) })

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.cleanup()
	h.opened = false
	pkg.LogInfo(pkg.ComponentHAL, "fifo CDC HAL closed", "dir", h.dir)
	return nil
}

func (h *HAL) cleanup() {
	if h.hostToDevice != nil {
		h.hostToDevice.Close()
		h.hostToDevice = nil
	}
	if h.deviceToHost != nil {
		h.deviceToHost.Close()
		h.deviceToHost = nil
	}
	os.RemoveAll(h.dir)
}

// Dir returns the directory holding the pipes.
func (h *HAL) Dir() string {
	return h.dir
}

// SetOnBreak sets the callback for SEND_BREAK requests.
func (h *HAL) SetOnBreak(cb func(millis uint16)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onBreak = cb
}

// Packets returns the number of completed IN packets.
func (h *HAL) Packets() uint64 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.packets
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

	pkg.LogDebug(pkg.ComponentHAL, "stack enabled", "state", h.state, "mask", mask)
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

	pkg.LogDebug(pkg.ComponentHAL, "stack disabled")
	return nil
}

// State returns the current stack state.
func (h *HAL) State() hal.State {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.state
}

// Transmit accepts one packet. It is written to the host pipe and completed
// by Run.
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

// Connected reports whether the host is attached with DTR asserted.
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

// LineState returns the DTR/RTS bits last set by the host.
func (h *HAL) LineState() uint16 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.lineState
}

// FIFOSize returns the transmit FIFO size.
func (h *HAL) FIFOSize() int {
	return h.fifoSize
}

// Run reads host messages and delivers events until ctx is done or the HAL
// is closed. Handlers run on the calling goroutine's event loop.
func (h *HAL) Run(ctx context.Context) error {
	h.mutex.Lock()
	opened, in, out := h.opened, h.hostToDevice, h.deviceToHost
	h.mutex.Unlock()
	if !opened {
		return pkg.ErrNotConfigured
	}

	if !h.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer h.running.Store(false)

	pkg.LogDebug(pkg.ComponentHAL, "fifo event loop started", "dir", h.dir)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readLoop(ctx, in) })
	g.Go(func() error { return h.eventLoop(ctx, out) })

	err := g.Wait()
	pkg.LogDebug(pkg.ComponentHAL, "fifo event loop stopped", "error", err)
	return err
}

// readLoop applies host messages in order.
func (h *HAL) readLoop(ctx context.Context, f *os.File) error {
	buf := make([]byte, maxPayload)
	for {
		msgType, n, err := readMessage(ctx, h.closeCh, f, buf)
		if err != nil {
			if h.stopped(ctx, err) {
				return nil
			}
			return fmt.Errorf("fifo: read host message: %w", err)
		}

		switch msgType {
		case msgAttach:
			h.attach(true)

		case msgDetach:
			h.attach(false)

		case msgSetup:
			var setup hal.SetupPacket
			if !hal.ParseSetupPacket(buf[:n], &setup) {
				return fmt.Errorf("fifo: setup message %d bytes: %w", n, pkg.ErrProtocol)
			}
			if err := h.control(&setup, buf[hal.SetupPacketSize:n]); err != nil {
				pkg.LogWarn(pkg.ComponentHAL, "control request rejected",
					"request", setup.Request,
					"error", err)
			}

		case msgData:
			if err := h.queueOut(ctx, buf[:n]); err != nil {
				return nil
			}

		default:
			pkg.LogWarn(pkg.ComponentHAL, "unknown message type", "type", msgType)
		}
	}
}

func (h *HAL) attach(attached bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.attached = attached
	switch {
	case attached && h.state == hal.StateEnabling:
		h.state = hal.StateReady
	case !attached:
		h.lineState = 0
		if h.state == hal.StateReady || h.state == hal.StateSuspended {
			h.state = hal.StateEnabling
		}
	}
	h.signal()
	pkg.LogDebug(pkg.ComponentHAL, "host attachment changed",
		"attached", attached,
		"state", h.state)
}

// control applies a class request from the host.
func (h *HAL) control(setup *hal.SetupPacket, data []byte) error {
	if !setup.IsClass() {
		return pkg.ErrInvalidRequest
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch setup.Request {
	case hal.RequestSetLineCoding:
		if !hal.ParseLineCoding(data, &h.lineCoding) {
			return pkg.ErrBufferTooSmall
		}
		pkg.LogDebug(pkg.ComponentHAL, "line coding set",
			"baud", h.lineCoding.DTERate,
			"dataBits", h.lineCoding.DataBits)

	case hal.RequestSetControlLineState:
		h.lineState = setup.Value & (hal.ControlLineDTR | hal.ControlLineRTS)
		pkg.LogDebug(pkg.ComponentHAL, "control line state set", "value", h.lineState)
		h.signal()

	case hal.RequestSendBreak:
		if h.onBreak != nil {
			// Called with the mutex held; the callback must not call back
			// into the HAL.
			h.onBreak(setup.Value)
		}

	default:
		return pkg.ErrInvalidRequest
	}
	return nil
}

// queueOut holds data for Receive, waiting while the OUT queue is full.
// Data arriving while the stack is not ready is dropped.
func (h *HAL) queueOut(ctx context.Context, data []byte) error {
	for {
		h.mutex.Lock()
		if h.state != hal.StateReady {
			h.mutex.Unlock()
			pkg.LogDebug(pkg.ComponentHAL, "dropping OUT data", "bytes", len(data), "state", h.state)
			return nil
		}
		if len(h.out)+len(data) <= h.outCapacity {
			h.out = append(h.out, data...)
			h.mutex.Unlock()
			h.signal()
			return nil
		}
		h.mutex.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.closeCh:
			return pkg.ErrCancelled
		case <-time.After(h.pollInterval):
		}
	}
}

// eventLoop completes packets and raises events.
func (h *HAL) eventLoop(ctx context.Context, f *os.File) error {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var packet []byte
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.closeCh:
			return nil
		case <-h.wake:
		case <-ticker.C:
		}

		var events hal.Event

		h.mutex.Lock()
		busy, attached := h.busy, h.attached
		if busy {
			packet = append(packet[:0], h.pending...)
		}
		h.mutex.Unlock()

		if busy {
			if attached {
				err := writeMessage(ctx, h.closeCh, f, msgData, packet)
				if err != nil {
					if h.stopped(ctx, err) {
						return nil
					}
					return fmt.Errorf("fifo: write packet: %w", err)
				}
			}

			h.mutex.Lock()
			if h.busy {
				h.pending = h.pending[:0]
				h.busy = false
				h.packets++
				events |= hal.EventTransmit
			}
			h.mutex.Unlock()
		}

		h.mutex.Lock()
		if len(h.out) > 0 && h.state == hal.StateReady {
			events |= hal.EventReceive
		}
		handler := h.handler
		events &= h.mask
		h.mutex.Unlock()

		if events != 0 && handler != nil {
			handler(events)
		}
	}
}

// stopped reports whether err is the result of shutting down rather than a
// pipe failure.
func (h *HAL) stopped(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, pkg.ErrCancelled) || errors.Is(err, os.ErrClosed) {
		return true
	}
	select {
	case <-h.closeCh:
		return true
	default:
		return false
	}
}

// signal wakes the event loop. Callers may or may not hold the mutex.
func (h *HAL) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

var _ hal.CDC = (*HAL)(nil)

package fifo

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// Host is the host end of a FIFO CDC link. It plays the part of the host
// controller and terminal: plugging in, setting the control lines and
// exchanging bulk data.
type Host struct {
	dir string

	toDevice   *os.File
	fromDevice *os.File

	writeMutex sync.Mutex

	// Unread remainder of the last IN message
	readMutex sync.Mutex
	readBuf   []byte
	leftover  []byte

	closeCh   chan struct{}
	closeOnce sync.Once
}

// Dial opens the host ends of the pipes created by a device HAL in dir.
func Dial(dir string) (*Host, error) {
	toDevice, err := openFIFO(dir, fifoHostToDevice)
	if err != nil {
		return nil, err
	}
	fromDevice, err := openFIFO(dir, fifoDeviceToHost)
	if err != nil {
		toDevice.Close()
		return nil, err
	}

	pkg.LogDebug(pkg.ComponentHAL, "fifo host connected", "dir", dir)
	return &Host{
		dir:        dir,
		toDevice:   toDevice,
		fromDevice: fromDevice,
		readBuf:    make([]byte, maxPayload),
		closeCh:    make(chan struct{}),
	}, nil
}

// Close closes the host ends of the pipes.
func (h *Host) Close() error {
	h.closeOnce.Do(func() { close(h.closeCh) })
	h.toDevice.Close()
	h.fromDevice.Close()
	return nil
}

func (h *Host) send(ctx context.Context, msgType byte, payload []byte) error {
	h.writeMutex.Lock()
	defer h.writeMutex.Unlock()
	return writeMessage(ctx, h.closeCh, h.toDevice, msgType, payload)
}

func (h *Host) control(ctx context.Context, setup hal.SetupPacket, data []byte) error {
	setup.Length = uint16(len(data))
	payload := make([]byte, hal.SetupPacketSize+len(data))
	setup.MarshalTo(payload)
	copy(payload[hal.SetupPacketSize:], data)
	return h.send(ctx, msgSetup, payload)
}

// Attach plugs the cable in.
func (h *Host) Attach(ctx context.Context) error {
	return h.send(ctx, msgAttach, nil)
}

// Detach unplugs the cable.
func (h *Host) Detach(ctx context.Context) error {
	return h.send(ctx, msgDetach, nil)
}

// Open attaches and asserts DTR and RTS, as a terminal does when it opens
// the port.
func (h *Host) Open(ctx context.Context) error {
	if err := h.Attach(ctx); err != nil {
		return err
	}
	return h.SetControlLines(ctx, true, true)
}

// SetControlLines issues SET_CONTROL_LINE_STATE.
func (h *Host) SetControlLines(ctx context.Context, dtr, rts bool) error {
	var value uint16
	if dtr {
		value |= hal.ControlLineDTR
	}
	if rts {
		value |= hal.ControlLineRTS
	}
	return h.control(ctx, hal.SetupPacket{
		RequestType: hal.RequestTypeClass | hal.RequestTypeInterface,
		Request:     hal.RequestSetControlLineState,
		Value:       value,
	}, nil)
}

// SetLineCoding issues SET_LINE_CODING.
func (h *Host) SetLineCoding(ctx context.Context, lc hal.LineCoding) error {
	var buf [hal.LineCodingSize]byte
	lc.MarshalTo(buf[:])
	return h.control(ctx, hal.SetupPacket{
		RequestType: hal.RequestTypeClass | hal.RequestTypeInterface,
		Request:     hal.RequestSetLineCoding,
	}, buf[:])
}

// SendBreak issues SEND_BREAK for millis milliseconds.
func (h *Host) SendBreak(ctx context.Context, millis uint16) error {
	return h.control(ctx, hal.SetupPacket{
		RequestType: hal.RequestTypeClass | hal.RequestTypeInterface,
		Request:     hal.RequestSendBreak,
		Value:       millis,
	}, nil)
}

// Write sends p to the device in DATA messages of at most MaxDataSize
// bytes.
func (h *Host) Write(ctx context.Context, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n := min(len(p)-sent, MaxDataSize)
		if err := h.send(ctx, msgData, p[sent:sent+n]); err != nil {
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

// Read waits for IN data and copies up to len(buf) bytes into buf.
func (h *Host) Read(ctx context.Context, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	h.readMutex.Lock()
	defer h.readMutex.Unlock()

	for len(h.leftover) == 0 {
		msgType, n, err := readMessage(ctx, h.closeCh, h.fromDevice, h.readBuf)
		if err != nil {
			return 0, err
		}
		if msgType != msgData {
			return 0, fmt.Errorf("unexpected message type 0x%02x: %w", msgType, pkg.ErrProtocol)
		}
		h.leftover = h.readBuf[:n]
	}

	n := copy(buf, h.leftover)
	h.leftover = h.leftover[n:]
	return n, nil
}

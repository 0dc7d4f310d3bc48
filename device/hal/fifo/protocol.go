package fifo

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardnew/cdcserial/pkg"
)

// Message types. Every message on either pipe is framed as
// [type, len_lo, len_hi, payload...].
const (
	msgSetup  = 0x01 // Class request: setup packet followed by its data stage
	msgData   = 0x02 // Bulk data
	msgAttach = 0x12 // Host plugged in
	msgDetach = 0x13 // Host unplugged
)

// Header size for messages.
const headerSize = 3 // type (1) + length (2)

// MaxDataSize is the largest payload the host side puts in one DATA
// message.
const MaxDataSize = 512

// maxPayload is the largest payload the framing can express.
const maxPayload = 0xFFFF

// FIFO file names.
const (
	fifoHostToDevice = "host_to_device"
	fifoDeviceToHost = "device_to_host"
)

// ioTimeout bounds each read or write so cancellation is noticed.
const ioTimeout = 100 * time.Millisecond

// createFIFO creates a named pipe in dir, replacing any existing file.
func createFIFO(dir, name string) error {
	path := filepath.Join(dir, name)
	os.Remove(path)

	if err := syscall.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", name, err)
	}
	return nil
}

// openFIFO opens a named pipe read-write and non-blocking, so opening never
// waits for the peer.
func openFIFO(dir, name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// readFull reads exactly len(buf) bytes, retrying on deadline expiry until
// ctx is done or closed is closed.
func readFull(ctx context.Context, closed <-chan struct{}, f *os.File, buf []byte) error {
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return pkg.ErrCancelled
		default:
		}

		f.SetReadDeadline(time.Now().Add(ioTimeout))
		n, err := f.Read(buf[total:])
		total += n
		if err != nil && !os.IsTimeout(err) {
			return err
		}
	}
	return nil
}

// writeFull writes all of buf, retrying on deadline expiry until ctx is
// done or closed is closed.
func writeFull(ctx context.Context, closed <-chan struct{}, f *os.File, buf []byte) error {
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return pkg.ErrCancelled
		default:
		}

		f.SetWriteDeadline(time.Now().Add(ioTimeout))
		n, err := f.Write(buf[total:])
		total += n
		if err != nil && !os.IsTimeout(err) {
			return err
		}
	}
	return nil
}

// writeMessage frames payload and writes it as one message.
func writeMessage(ctx context.Context, closed <-chan struct{}, f *os.File, msgType byte, payload []byte) error {
	if len(payload) > maxPayload {
		return fmt.Errorf("message payload %d bytes: %w", len(payload), pkg.ErrInvalidParameter)
	}

	buf := make([]byte, headerSize+len(payload))
	buf[0] = msgType
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[headerSize:], payload)

	return writeFull(ctx, closed, f, buf)
}

// readMessage reads one message into buf and returns its type and payload
// length. buf must hold the largest payload the peer sends.
func readMessage(ctx context.Context, closed <-chan struct{}, f *os.File, buf []byte) (byte, int, error) {
	var header [headerSize]byte
	if err := readFull(ctx, closed, f, header[:]); err != nil {
		return 0, 0, err
	}

	msgType := header[0]
	length := int(binary.LittleEndian.Uint16(header[1:3]))
	if length > len(buf) {
		return 0, 0, fmt.Errorf("message type 0x%02x with %d byte payload: %w",
			msgType, length, pkg.ErrProtocol)
	}

	if err := readFull(ctx, closed, f, buf[:length]); err != nil {
		return 0, 0, err
	}
	return msgType, length, nil
}

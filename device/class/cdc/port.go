package cdc

import "github.com/ardnew/cdcserial/device/hal"

// Port is a Serial bound to one execution context. Whether its writes and
// flushes may wait is decided by that context alone, so a Port bound to
// Interrupt never waits no matter which goroutine holds it.
//
// Listener callbacks receive a Port bound to Interrupt.
type Port struct {
	s  *Serial
	ec hal.ExecContext
}

// In returns s bound to ec. A nil ec selects the Serial's own context.
func (s *Serial) In(ec hal.ExecContext) Port {
	if ec == nil {
		ec = s.exec
	}
	return Port{s: s, ec: ec}
}

// Serial returns the underlying Serial.
func (p Port) Serial() *Serial { return p.s }

// Write queues b under the port's context. See Serial.WriteFrom.
func (p Port) Write(b []byte) (int, error) { return p.s.WriteFrom(p.ec, b) }

// WriteByte queues a single byte.
func (p Port) WriteByte(c byte) error {
	_, err := p.s.WriteFrom(p.ec, []byte{c})
	return err
}

// WriteString queues the bytes of str.
func (p Port) WriteString(str string) (int, error) {
	return p.s.WriteFrom(p.ec, []byte(str))
}

// Flush waits for queued output under the port's context. See
// Serial.FlushFrom.
func (p Port) Flush() { p.s.FlushFrom(p.ec) }

// Read copies buffered bytes into b without waiting.
func (p Port) Read(b []byte) (int, error) { return p.s.Read(b) }

// Available returns the number of bytes ready to read.
func (p Port) Available() int { return p.s.Available() }

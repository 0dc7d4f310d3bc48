package cdc

import (
	"io"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// Write queues p for transmission under the Serial's execution context and
// returns the number of bytes queued. See WriteFrom.
func (s *Serial) Write(p []byte) (int, error) {
	return s.WriteFrom(s.exec, p)
}

// WriteFrom queues p for transmission on behalf of a caller running in ec
// and returns the number of bytes queued.
//
// Nothing is queued unless the device stack is ready and the host asserts
// RTS. If ec is in interrupt context, or blocking is disabled, p is
// truncated to the free space in the transmit buffer and io.ErrShortWrite
// is returned; otherwise WriteFrom yields through ec until every byte is
// queued. There is no timeout: a host that stops reading stalls a blocking
// write.
func (s *Serial) WriteFrom(ec hal.ExecContext, p []byte) (int, error) {
	if s.hal.State() != hal.StateReady {
		return 0, pkg.ErrNotReady
	}
	if s.hal.LineState()&hal.ControlLineRTS == 0 {
		return 0, pkg.ErrFlowControl
	}

	wait := s.blocking.Load() && !ec.InInterrupt()

	size := len(p)
	if !wait {
		if free := s.tx.Free(); size > free {
			size = free
		}
	}

	s.txTotal.Add(int64(size))

	count := 0
	for count < size {
		if s.tx.Full() {
			if !wait {
				break
			}
			s.kick()
			for s.tx.Full() {
				ec.Yield()
			}
		}
		count += s.tx.PushChunk(p[count:size])
	}
	if count < size {
		s.txTotal.Add(int64(count - size))
	}

	s.kick()

	s.stats.accepted.Add(uint64(count))
	if dropped := len(p) - count; dropped > 0 {
		s.stats.dropped.Add(uint64(dropped))
		return count, io.ErrShortWrite
	}
	return count, nil
}

// WriteByte queues a single byte.
func (s *Serial) WriteByte(c byte) error {
	_, err := s.Write([]byte{c})
	return err
}

// WriteString queues the bytes of str.
func (s *Serial) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// AvailableForWrite returns the free space in the transmit buffer, or 0
// when the device stack is not ready.
func (s *Serial) AvailableForWrite() int {
	if s.hal.State() != hal.StateReady {
		return 0
	}
	return s.tx.Free()
}

// Flush waits under the Serial's execution context for queued output. See
// FlushFrom.
func (s *Serial) Flush() {
	s.FlushFrom(s.exec)
}

// FlushFrom yields through ec until every queued byte has been handed to
// the device stack and the last packet has completed. It returns
// immediately if ec is in interrupt context. While the stack is not ready
// it only yields; output resumes once the host is back.
func (s *Serial) FlushFrom(ec hal.ExecContext) {
	if ec.InInterrupt() {
		return
	}
	for !s.tx.Empty() {
		if s.hal.State() == hal.StateReady {
			s.kick()
		}
		ec.Yield()
	}
	for !s.hal.Done() {
		ec.Yield()
	}
}

// Done reports whether the transmit buffer is empty and no packet is in
// flight. It never blocks.
func (s *Serial) Done() bool {
	return s.tx.Empty() && !s.txBusy.Load() && s.hal.Done()
}

// kick starts a packet if data is queued and none is in flight.
func (s *Serial) kick() {
	if s.tx.Empty() || !s.txBusy.CompareAndSwap(false, true) {
		return
	}
	if !s.transmitNext() {
		s.txBusy.Store(false)
	}
}

// transmitNext hands the next contiguous run of queued bytes, clamped to
// the packet ceiling, to the device stack. The caller holds txBusy. It
// returns false if nothing was started.
func (s *Serial) transmitNext() bool {
	span := s.tx.ReadSpan()
	if len(span) == 0 {
		return false
	}
	if len(span) > s.ceiling {
		span = span[:s.ceiling]
	}

	s.txSize = len(span)
	if err := s.hal.Transmit(span); err != nil {
		s.txSize = 0
		// Retries fail the same way until the stack recovers.
		if !s.txFailing.Swap(true) {
			s.log.Warn("transmit failed", "size", len(span), "error", err)
		}
		return false
	}
	if s.txFailing.Swap(false) {
		s.log.Info("transmit resumed", "size", len(span))
	}
	return true
}

// transmitComplete retires the packet in flight and chains the next one.
func (s *Serial) transmitComplete() roundStatus {
	if !s.txBusy.Load() {
		// Completion without a packet of ours in flight.
		s.kick()
		return roundIdle
	}

	n := s.txSize
	s.txSize = 0
	s.tx.Consume(n)
	s.txTotal.Add(int64(-n))

	s.stats.transmitted.Add(uint64(n))
	s.stats.packets.Add(1)

	if s.transmitNext() {
		return roundChained
	}
	s.txBusy.Store(false)

	// Data queued between the empty check and the release above.
	if !s.tx.Empty() {
		s.kick()
		return roundChained
	}

	if s.txTotal.Load() == 0 {
		s.notifyTransmit()
		return roundComplete
	}
	return roundDrained
}

func (s *Serial) notifyTransmit() {
	l := s.listener.Load()
	if l == nil {
		return
	}
	(*l).OnTransmit(s.In(Interrupt))
}

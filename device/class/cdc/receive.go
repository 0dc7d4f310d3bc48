package cdc

import "github.com/ardnew/cdcserial/pkg"

// Available returns the number of bytes ready to read.
func (s *Serial) Available() int {
	return s.rx.Len()
}

// Read copies up to len(p) buffered bytes into p without waiting and
// returns the count. It returns 0, nil when nothing is buffered; callers
// that need len(p) bytes loop.
func (s *Serial) Read(p []byte) (int, error) {
	count := 0
	for count < len(p) {
		n := s.rx.PopChunk(p[count:])
		if n == 0 {
			break
		}
		count += n
	}
	return count, nil
}

// ReadByte consumes the next buffered byte, or returns pkg.ErrBufferEmpty.
func (s *Serial) ReadByte() (byte, error) {
	c, ok := s.rx.PopByte()
	if !ok {
		return 0, pkg.ErrBufferEmpty
	}
	return c, nil
}

// ReadChar consumes the next buffered byte, or returns NoData.
func (s *Serial) ReadChar() int {
	c, ok := s.rx.PopByte()
	if !ok {
		return NoData
	}
	return int(c)
}

// Peek returns the next buffered byte without consuming it, or NoData.
func (s *Serial) Peek() int {
	c, ok := s.rx.Peek()
	if !ok {
		return NoData
	}
	return int(c)
}

// receiveRound pulls bytes from the device stack until the receive buffer
// is full or the stack has nothing more. Bytes left in the stack are picked
// up by a later round after the application reads.
func (s *Serial) receiveRound() (int, roundStatus) {
	empty := s.rx.Empty()
	status := roundDrained

	total := 0
	for {
		span := s.rx.WriteSpan()
		if len(span) == 0 {
			status = roundSaturated
			s.stats.saturated.Add(1)
			break
		}
		n := s.hal.Receive(span)
		if n <= 0 {
			break
		}
		if n > len(span) {
			n = len(span)
		}
		s.rx.Commit(n)
		total += n
	}

	if total == 0 && status == roundDrained {
		status = roundIdle
	}
	s.stats.received.Add(uint64(total))

	if empty && total > 0 {
		s.notifyReceive(total)
	}
	return total, status
}

func (s *Serial) notifyReceive(n int) {
	l := s.listener.Load()
	if l == nil {
		return
	}
	(*l).OnReceive(s.In(Interrupt), n)
}

package cdc

import "sync/atomic"

type counters struct {
	accepted    atomic.Uint64
	dropped     atomic.Uint64
	transmitted atomic.Uint64
	packets     atomic.Uint64
	received    atomic.Uint64
	saturated   atomic.Uint64
}

// Stats is a point-in-time snapshot of a Serial's counters and buffers.
type Stats struct {
	Accepted    uint64 // Bytes queued by Write
	Dropped     uint64 // Bytes refused by a truncated Write
	Transmitted uint64 // Bytes in completed packets
	Packets     uint64 // Completed packets
	Received    uint64 // Bytes pulled from the device stack
	Saturated   uint64 // Receive rounds that filled the buffer

	RxBuffered int   // Bytes waiting to be read
	TxBuffered int   // Bytes waiting to be sent
	TxPending  int64 // Accepted bytes not yet in a completed packet
	RxCapacity int
	TxCapacity int
}

// Stats returns a snapshot of the counters. Fields are read one at a time
// and may be mutually inconsistent while traffic flows.
func (s *Serial) Stats() Stats {
	return Stats{
		Accepted:    s.stats.accepted.Load(),
		Dropped:     s.stats.dropped.Load(),
		Transmitted: s.stats.transmitted.Load(),
		Packets:     s.stats.packets.Load(),
		Received:    s.stats.received.Load(),
		Saturated:   s.stats.saturated.Load(),
		RxBuffered:  s.rx.Len(),
		TxBuffered:  s.tx.Len(),
		TxPending:   s.txTotal.Load(),
		RxCapacity:  s.rx.Cap(),
		TxCapacity:  s.tx.Cap(),
	}
}

// Package ring implements a fixed-capacity circular byte buffer that is safe
// for exactly one producer and one consumer running concurrently.
//
// The capacity is a power of two so that cursors wrap with a mask. The
// producer owns the write cursor and the consumer owns the read cursor;
// the occupancy count is the only field both sides touch, and it is only
// ever changed with atomic add and subtract. No lock is taken on either
// side, which makes the buffer usable between a foreground goroutine and
// an event handler that must never block.
//
// Transfers are span-oriented. [Buffer.WriteSpan] and [Buffer.ReadSpan]
// expose the largest contiguous region at the respective cursor without
// crossing the physical end of the backing array; a transfer that wraps is
// done by the caller in two iterations:
//
//	for len(p) > 0 {
//	    n := buf.PushChunk(p)
//	    if n == 0 {
//	        break // full
//	    }
//	    p = p[n:]
//	}
//
// [Buffer.Commit] and [Buffer.Consume] publish a transfer that was done in
// place, which lets a device stack copy straight into or out of the ring.
package ring

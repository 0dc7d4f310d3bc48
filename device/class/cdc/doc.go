// Package cdc implements a byte-stream serial port over a USB CDC-ACM
// device stack.
//
// The device stack moves data only in bounded packets and reports progress
// through an event handler that may run in interrupt context. [Serial]
// bridges that to an ordinary read/write API with two fixed-capacity ring
// buffers and no locks: each buffer field has exactly one writer, and the
// occupancy counts are the only values shared between the foreground and
// the event handler.
//
// # Transmit
//
// [Serial.Write] copies into the transmit buffer and starts a packet when
// none is in flight. Each packet is the contiguous run at the read cursor,
// clamped to the packet ceiling: one byte less than the device FIFO size
// rounded up to whole packets, so the host never needs a zero-length packet
// to terminate a transfer. When the buffer is full Write either yields
// until a packet completes or, in interrupt context or with
// [Serial.BlockOnOverrun] false, truncates.
//
// # Receive
//
// On each receive event the Serial pulls bytes from the device stack until
// its receive buffer is full or the stack has nothing more. A full buffer is
// the backpressure signal: remaining bytes stay in the device stack until
// the application reads and a later event round drains them.
//
// # Usage
//
//	port, err := cdc.New(h,
//	    cdc.WithRxCapacity(512),
//	    cdc.WithListener(cdc.ListenerFuncs{
//	        Receive: func(p cdc.Port, n int) {
//	            // n bytes arrived in an empty buffer; p never waits.
//	            buf := make([]byte, n)
//	            m, _ := p.Read(buf)
//	            p.Write(buf[:m])
//	        },
//	    }))
//	if err != nil {
//	    return err
//	}
//	if err := port.Begin(); err != nil {
//	    return err
//	}
//	defer port.End()
//
//	port.WriteString("hello\r\n")
//	n, _ := port.Read(buf)
//
// # Execution Context
//
// Write and Flush ask the Serial's [hal.ExecContext] whether they may wait.
// A device stack that can detect interrupt context provides it; otherwise
// [Thread] is assumed. [Serial.WriteFrom] and [Serial.FlushFrom] take the
// context per call, and [Serial.In] binds one into a [Port]. Listener
// callbacks get a Port bound to [Interrupt], so output queued from an event
// round never waits while foreground writers on other goroutines still do.
package cdc

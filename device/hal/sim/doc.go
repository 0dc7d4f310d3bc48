// Package sim implements an in-memory CDC device stack for tests and
// examples.
//
// The simulated stack behaves like a device controller with a bounded
// transmit FIFO and a bounded receive queue. The device side is the
// [hal.CDC] interface consumed by the serial layer; the host side is a set
// of methods that stand in for a USB host:
//
//   - Attach/Detach: plug and unplug the cable
//   - Control: class requests (SET_LINE_CODING, SET_CONTROL_LINE_STATE, ...)
//   - Open: attach and assert DTR and RTS, like a terminal opening the port
//   - HostWrite: send OUT data, split into max-size packets
//   - HostRead: collect IN data from completed packets
//
// Events are produced by [HAL.Step], which completes the packet in flight,
// raises a receive event while OUT data is queued, and calls the registered
// handler once with the combined bitmask. [HAL.Run] calls Step from its own
// goroutine whenever there is work, standing in for the interrupt handler;
// tests that need deterministic rounds call Step directly instead.
//
// OUT data the serial layer does not pull stays queued in the simulated
// stack and is offered again on the next round; nothing is dropped.
//
// # Usage
//
//	h := sim.New(sim.WithFIFOSize(128))
//	port, _ := cdc.New(h)
//	port.Begin()
//	h.Open()
//
//	go h.Run(ctx)
//	h.HostWrite([]byte("ping"))
package sim

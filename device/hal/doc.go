// Package hal defines the device-stack contract consumed by the serial layer.
//
// A USB CDC device stack delivers and accepts data only in bounded packets
// and signals progress through a single event handler that may run in
// interrupt context. The [CDC] interface captures exactly what the serial
// layer needs from such a stack:
//
//   - Lifecycle and event subscription (Enable, Notify, Disable)
//   - One-packet asynchronous transmit with completion events
//   - Pull-style receive of bytes the stack has already buffered
//   - Read-only line coding and control-line state set by the host
//
// Enumeration, descriptors and endpoint handling stay behind the interface.
//
// # Implementing a HAL
//
//	type MyHAL struct {
//	    // Controller-specific fields
//	}
//
//	func (h *MyHAL) Enable(handler hal.EventHandler, mask hal.Event) error {
//	    // Bring up the controller and remember handler
//	    return nil
//	}
//
//	// ... implement remaining CDC methods
//
// A HAL that can detect interrupt context should also implement
// [ExecContext] so the serial layer never waits from an interrupt handler.
//
// An in-memory HAL for testing is available in
// [github.com/ardnew/cdcserial/device/hal/sim], and a named-pipe HAL that
// talks to a separate host process in
// [github.com/ardnew/cdcserial/device/hal/fifo].
package hal

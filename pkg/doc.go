// Package pkg provides shared utilities for the cdcserial stack.
//
// This package contains common functionality used by the ring buffer, the
// serial orchestrator and the device-stack implementations, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for serial and device-stack conditions
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSerial, "port enabled", "rx", 256, "tx", 256)
//
// Code that logs from an event handler should take a tagged logger once
// with [Logger] and keep it.
//
// # Errors
//
// Conditions are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrFlowControl) {
//	    // Peer has not asserted RTS
//	}
package pkg

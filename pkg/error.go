package pkg

import "errors"

// Serial stack errors.
var (
	// ErrNotReady indicates the device stack is not in the ready state.
	ErrNotReady = errors.New("device not ready")

	// ErrFlowControl indicates the peer has not asserted its flow control line.
	ErrFlowControl = errors.New("flow control line not asserted")

	// ErrNotConfigured indicates the device stack has not been enabled.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidState indicates an invalid device state for the operation.
	ErrInvalidState = errors.New("invalid device state")

	// ErrInvalidRequest indicates an invalid or unsupported control request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrBufferEmpty indicates there is no buffered data to read.
	ErrBufferEmpty = errors.New("buffer empty")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrAlreadyRunning indicates the component is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the component is not running.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrCancelled indicates the operation was cancelled by a shutdown.
	ErrCancelled = errors.New("operation cancelled")

	// ErrProtocol indicates a malformed message on a transport.
	ErrProtocol = errors.New("protocol error")

	// ErrTransmitPending indicates a packet was handed to the device stack
	// while a previous packet was still in flight.
	ErrTransmitPending = errors.New("transmit already pending")
)


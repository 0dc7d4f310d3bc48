package cdc

import (
	"log/slog"

	"github.com/ardnew/cdcserial/device/hal"
)

type config struct {
	rxCapacity int
	txCapacity int
	ceiling    int
	blocking   bool
	exec       hal.ExecContext
	listener   Listener
	logger     *slog.Logger
}

// Option configures a Serial at construction.
type Option func(*config)

// WithRxCapacity sets the receive buffer capacity (a power of two).
func WithRxCapacity(n int) Option {
	return func(c *config) { c.rxCapacity = n }
}

// WithTxCapacity sets the transmit buffer capacity (a power of two).
func WithTxCapacity(n int) Option {
	return func(c *config) { c.txCapacity = n }
}

// WithPacketCeiling overrides the largest chunk handed to Transmit. It must
// be positive and smaller than the device FIFO size rounded up to whole
// packets.
func WithPacketCeiling(n int) Option {
	return func(c *config) { c.ceiling = n }
}

// WithBlocking sets whether a full transmit buffer suspends Write (true, the
// default) or truncates it.
func WithBlocking(block bool) Option {
	return func(c *config) { c.blocking = block }
}

// WithExecContext sets how the Serial detects interrupt context and yields.
// By default the HAL is used if it implements hal.ExecContext, else Thread.
func WithExecContext(ec hal.ExecContext) Option {
	return func(c *config) { c.exec = ec }
}

// WithListener registers the buffer transition listener.
func WithListener(l Listener) Option {
	return func(c *config) { c.listener = l }
}

// WithLogger sets the logger. The default is pkg.Logger(pkg.ComponentSerial).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

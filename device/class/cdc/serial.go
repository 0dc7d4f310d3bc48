package cdc

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
	"github.com/ardnew/cdcserial/pkg/ring"
)

// Serial is a byte-stream serial port layered over a packet-oriented CDC
// device stack.
//
// Application calls (Write, Read, Flush, ...) run in the Serial's execution
// context; WriteFrom and FlushFrom take the context per call. The device
// stack drives HandleEvent, possibly from interrupt context. The two sides
// share nothing but the ring buffer occupancy counts and the in-flight
// claim, all updated atomically.
type Serial struct {
	hal  hal.CDC
	exec hal.ExecContext
	log  *slog.Logger

	rx *ring.Buffer
	tx *ring.Buffer

	ceiling  int
	blocking atomic.Bool

	// txBusy is held while a packet is handed to the device stack and not
	// yet completed. Only its holder touches txSize and the tx read cursor.
	txBusy    atomic.Bool
	txSize    int
	txTotal   atomic.Int64
	txFailing atomic.Bool

	listener atomic.Pointer[Listener]

	// ended is set by End; rounds counts event rounds in progress so End
	// can wait out a round that started before it.
	ended  atomic.Bool
	rounds atomic.Int32

	stats counters
}

// New creates a Serial over h. The buffers are allocated here and never
// resized.
func New(h hal.CDC, opts ...Option) (*Serial, error) {
	if h == nil {
		return nil, fmt.Errorf("cdc: nil device stack: %w", pkg.ErrInvalidParameter)
	}

	cfg := config{
		rxCapacity: DefaultRxCapacity,
		txCapacity: DefaultTxCapacity,
		blocking:   true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	rx, err := ring.New(cfg.rxCapacity)
	if err != nil {
		return nil, fmt.Errorf("cdc: rx buffer: %w", err)
	}
	tx, err := ring.New(cfg.txCapacity)
	if err != nil {
		return nil, fmt.Errorf("cdc: tx buffer: %w", err)
	}

	limit := PacketCeiling(h.FIFOSize())
	switch {
	case cfg.ceiling == 0:
		cfg.ceiling = limit
	case cfg.ceiling < 0 || cfg.ceiling > limit:
		return nil, fmt.Errorf("cdc: packet ceiling %d outside (0, %d]: %w",
			cfg.ceiling, limit, pkg.ErrInvalidParameter)
	}

	if cfg.exec == nil {
		if ec, ok := h.(hal.ExecContext); ok {
			cfg.exec = ec
		} else {
			cfg.exec = Thread
		}
	}
	if cfg.logger == nil {
		cfg.logger = pkg.Logger(pkg.ComponentSerial)
	}

	s := &Serial{
		hal:     h,
		exec:    cfg.exec,
		log:     cfg.logger,
		rx:      rx,
		tx:      tx,
		ceiling: cfg.ceiling,
	}
	s.blocking.Store(cfg.blocking)
	s.SetListener(cfg.listener)

	return s, nil
}

// Begin enables the device stack and subscribes to its events. If the stack
// was already brought up by another consumer, pending output is flushed
// while it is ready and only the subscription is replaced.
func (s *Serial) Begin() error {
	s.ended.Store(false)

	switch s.hal.State() {
	case hal.StateUninitialized:
		if err := s.hal.Enable(s.HandleEvent, hal.EventAll); err != nil {
			return fmt.Errorf("cdc: enable: %w", err)
		}
	case hal.StateReady:
		s.Flush()
		fallthrough
	default:
		if err := s.hal.Notify(s.HandleEvent, hal.EventAll); err != nil {
			return fmt.Errorf("cdc: notify: %w", err)
		}
	}

	s.log.Debug("serial started",
		"rx", s.rx.Cap(),
		"tx", s.tx.Cap(),
		"ceiling", s.ceiling)
	return nil
}

// End flushes pending output while a host is attached, then disables the
// device stack. Output that could not be flushed is discarded. Event rounds
// that arrive afterwards are ignored until the next Begin.
//
// End waits for an event round already in progress, so it must not be
// called from a Listener.
func (s *Serial) End() error {
	if s.hal.State() == hal.StateReady && s.hal.Connected() {
		s.Flush()
	}
	if err := s.hal.Disable(); err != nil {
		return fmt.Errorf("cdc: disable: %w", err)
	}

	s.ended.Store(true)
	for s.rounds.Load() > 0 {
		s.exec.Yield()
	}

	// No round runs now and none will; a packet still in flight was
	// dropped with the stack.
	if discarded := s.tx.Len(); discarded > 0 {
		s.log.Warn("discarding unsent output", "bytes", discarded)
	}
	s.txBusy.Store(false)
	s.txSize = 0
	s.tx.Reset()
	s.txTotal.Store(0)
	s.txFailing.Store(false)

	s.log.Debug("serial stopped")
	return nil
}

// SetListener replaces the buffer transition listener. nil removes it.
func (s *Serial) SetListener(l Listener) {
	if l == nil {
		s.listener.Store(nil)
		return
	}
	s.listener.Store(&l)
}

// BlockOnOverrun sets whether Write waits for space when the transmit buffer
// is full (true) or truncates the write (false).
func (s *Serial) BlockOnOverrun(block bool) {
	s.blocking.Store(block)
}

// IsEnabled reports whether the device stack is ready for data.
func (s *Serial) IsEnabled() bool {
	return s.hal.State() == hal.StateReady
}

// PacketCeiling returns the largest chunk handed to the device stack.
func (s *Serial) PacketCeiling() int {
	return s.ceiling
}

// Line state passthroughs.

// Connected reports whether a host has the port open.
func (s *Serial) Connected() bool { return s.hal.Connected() }

// LineCoding returns the line coding set by the host.
func (s *Serial) LineCoding() hal.LineCoding { return s.hal.LineCoding() }

// Baud returns the host's configured baud rate.
func (s *Serial) Baud() uint32 { return s.hal.LineCoding().DTERate }

// StopBits returns the host's configured stop-bit format.
func (s *Serial) StopBits() uint8 { return s.hal.LineCoding().CharFormat }

// Parity returns the host's configured parity.
func (s *Serial) Parity() uint8 { return s.hal.LineCoding().ParityType }

// DataBits returns the host's configured data bits.
func (s *Serial) DataBits() uint8 { return s.hal.LineCoding().DataBits }

// DTR reports whether the host asserts Data Terminal Ready.
func (s *Serial) DTR() bool { return s.hal.LineState()&hal.ControlLineDTR != 0 }

// RTS reports whether the host asserts Request To Send.
func (s *Serial) RTS() bool { return s.hal.LineState()&hal.ControlLineRTS != 0 }

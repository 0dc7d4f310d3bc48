package fifo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ardnew/cdcserial/device/hal"
	"github.com/ardnew/cdcserial/pkg"
)

// link opens a device HAL and a host peer in a temp dir and runs the event
// loop until the test ends.
func link(t *testing.T, opts ...Option) (*HAL, *Host, <-chan error) {
	t.Helper()

	dev := New(filepath.Join(t.TempDir(), "port"), opts...)
	if err := dev.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { dev.Close() })

	host, err := Dial(dev.Dir())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { host.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return dev, host, done
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHAL_OpenTwice(t *testing.T) {
	dev := New(filepath.Join(t.TempDir(), "port"))
	if err := dev.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer dev.Close()

	if err := dev.Open(); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Open() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestHAL_RunNotOpened(t *testing.T) {
	dev := New(filepath.Join(t.TempDir(), "port"))
	if err := dev.Run(context.Background()); !errors.Is(err, pkg.ErrNotConfigured) {
		t.Errorf("Run() error = %v, want ErrNotConfigured", err)
	}
}

func TestHAL_Attach(t *testing.T) {
	dev, host, _ := link(t)
	ctx := testContext(t)

	if err := dev.Enable(func(hal.Event) {}, hal.EventAll); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if got := dev.State(); got != hal.StateEnabling {
		t.Errorf("State() = %v, want Enabling", got)
	}

	if err := host.Open(ctx); err != nil {
		t.Fatalf("host Open() error = %v", err)
	}
	waitFor(t, "connected", dev.Connected)
	if got := dev.State(); got != hal.StateReady {
		t.Errorf("State() = %v, want Ready", got)
	}
	if got := dev.LineState(); got != hal.ControlLineDTR|hal.ControlLineRTS {
		t.Errorf("LineState() = %#x, want DTR|RTS", got)
	}

	if err := host.Detach(ctx); err != nil {
		t.Fatalf("Detach() error = %v", err)
	}
	waitFor(t, "enabling", func() bool { return dev.State() == hal.StateEnabling })
	if dev.Connected() {
		t.Error("Connected() = true after detach")
	}
	if got := dev.LineState(); got != 0 {
		t.Errorf("LineState() = %#x after detach, want 0", got)
	}
}

func TestHAL_ControlRequests(t *testing.T) {
	dev, host, _ := link(t)
	ctx := testContext(t)

	breaks := make(chan uint16, 1)
	dev.SetOnBreak(func(millis uint16) { breaks <- millis })

	if err := host.Attach(ctx); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}

	want := hal.LineCoding{DTERate: 9600, CharFormat: hal.StopBits2, ParityType: hal.ParityOdd, DataBits: 7}
	if err := host.SetLineCoding(ctx, want); err != nil {
		t.Fatalf("SetLineCoding() error = %v", err)
	}
	waitFor(t, "line coding", func() bool { return dev.LineCoding() == want })

	if err := host.SendBreak(ctx, 250); err != nil {
		t.Fatalf("SendBreak() error = %v", err)
	}
	select {
	case got := <-breaks:
		if got != 250 {
			t.Errorf("break duration = %d, want 250", got)
		}
	case <-ctx.Done():
		t.Fatal("break callback not called")
	}
}

func TestHAL_TransmitAndReceive(t *testing.T) {
	var (
		mu   sync.Mutex
		seen hal.Event
	)
	dev, host, _ := link(t)
	ctx := testContext(t)

	handler := func(ev hal.Event) {
		mu.Lock()
		seen |= ev
		mu.Unlock()
	}
	if err := dev.Enable(handler, hal.EventAll); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := host.Open(ctx); err != nil {
		t.Fatalf("host Open() error = %v", err)
	}
	waitFor(t, "ready", func() bool { return dev.State() == hal.StateReady })

	// Device to host
	if err := dev.Transmit([]byte("hello")); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	buf := make([]byte, 16)
	n, err := host.Read(ctx, buf)
	if err != nil {
		t.Fatalf("host Read() error = %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("host Read() = %q, want %q", buf[:n], "hello")
	}
	waitFor(t, "transmit done", dev.Done)
	if got := dev.Packets(); got != 1 {
		t.Errorf("Packets() = %d, want 1", got)
	}

	// Host to device
	if _, err := host.Write(ctx, []byte("world")); err != nil {
		t.Fatalf("host Write() error = %v", err)
	}
	has := func(ev hal.Event) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return seen.Has(ev)
		}
	}
	waitFor(t, "receive event", has(hal.EventReceive))
	waitFor(t, "transmit event", has(hal.EventTransmit))

	var got []byte
	waitFor(t, "OUT data", func() bool {
		var b [8]byte
		n := dev.Receive(b[:])
		got = append(got, b[:n]...)
		return len(got) == 5
	})
	if string(got) != "world" {
		t.Errorf("Receive() = %q, want %q", got, "world")
	}
}

func TestHAL_TransmitErrors(t *testing.T) {
	dev := New(filepath.Join(t.TempDir(), "port"), WithFIFOSize(32))

	if err := dev.Transmit([]byte("x")); !errors.Is(err, pkg.ErrNotReady) {
		t.Errorf("Transmit() before enable error = %v, want ErrNotReady", err)
	}

	dev.attach(true)
	if err := dev.Enable(nil, hal.EventAll); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := dev.Transmit(make([]byte, 33)); !errors.Is(err, pkg.ErrBufferTooSmall) {
		t.Errorf("oversized Transmit() error = %v, want ErrBufferTooSmall", err)
	}
	if got := dev.FIFOSize(); got != 32 {
		t.Errorf("FIFOSize() = %d, want 32", got)
	}
}

func TestHAL_DataDroppedWhenNotReady(t *testing.T) {
	dev, host, _ := link(t)
	ctx := testContext(t)

	if _, err := host.Write(ctx, []byte("lost")); err != nil {
		t.Fatalf("host Write() error = %v", err)
	}
	if err := host.Attach(ctx); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if err := dev.Enable(nil, hal.EventAll); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	waitFor(t, "ready", func() bool { return dev.State() == hal.StateReady })

	var b [8]byte
	if n := dev.Receive(b[:]); n != 0 {
		t.Errorf("Receive() = %d bytes, want 0", n)
	}
}

func TestHAL_CloseStopsRun(t *testing.T) {
	dev := New(filepath.Join(t.TempDir(), "port"))
	if err := dev.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- dev.Run(context.Background()) }()

	waitFor(t, "running", dev.running.Load)
	if err := dev.Run(context.Background()); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}

	dev.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after Close")
	}
}

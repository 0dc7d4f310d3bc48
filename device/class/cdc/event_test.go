package cdc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ardnew/cdcserial/device/hal"
)

func TestRoundStatus_String(t *testing.T) {
	tests := []struct {
		status roundStatus
		want   string
	}{
		{roundIdle, "idle"},
		{roundDrained, "drained"},
		{roundSaturated, "saturated"},
		{roundChained, "chained"},
		{roundComplete, "complete"},
		{roundStatus(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestEnd_WaitsForRoundInProgress(t *testing.T) {
	h := newStub()
	h.connected = false
	s := newSerial(t, h)

	_, err := s.Write(pattern(100))
	require.NoError(t, err)
	require.Equal(t, []int{63}, h.packets)

	entered := make(chan struct{})
	release := make(chan struct{})
	s.SetListener(ListenerFuncs{Receive: func(Port, int) {
		close(entered)
		<-release
	}})

	// A round that completes the first packet stalls in the listener.
	h.rxq = pattern(4)
	h.busy = false
	var round errgroup.Group
	round.Go(func() error {
		s.HandleEvent(hal.EventReceive | hal.EventTransmit)
		return nil
	})
	<-entered

	disabled := make(chan struct{})
	h.onDisable = func() { close(disabled) }
	ended := make(chan error, 1)
	go func() { ended <- s.End() }()

	<-disabled
	select {
	case <-ended:
		t.Fatal("End returned while an event round was in progress")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-ended)
	require.NoError(t, round.Wait())

	st := s.Stats()
	assert.Equal(t, uint64(63), st.Transmitted)
	assert.Zero(t, st.TxBuffered)
	assert.Zero(t, st.TxPending)
	assert.False(t, s.txBusy.Load())
	assert.Equal(t, 4, s.Available())
	assert.Equal(t, 1, h.disabled)
}

func TestEnd_IgnoresLateRounds(t *testing.T) {
	h := newStub()
	s := newSerial(t, h)

	require.NoError(t, s.Begin())
	require.NoError(t, s.End())

	h.rxq = pattern(8)
	s.HandleEvent(hal.EventReceive | hal.EventTransmit)
	assert.Zero(t, s.Available())
	assert.Len(t, h.rxq, 8, "data stays in the device stack")

	require.NoError(t, s.Begin())
	assert.Equal(t, 1, h.enabled)
	s.HandleEvent(hal.EventReceive)
	assert.Equal(t, 8, s.Available())
}

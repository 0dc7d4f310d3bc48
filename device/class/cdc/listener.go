package cdc

// Listener is notified of buffer transitions. Both methods run inside the
// device stack's event round, possibly in interrupt context, and must not
// block. Output is queued through the Port argument, which is bound to
// Interrupt and never waits for buffer space; a blocking Serial.Write from
// a callback can wait on a completion that only the same round delivers.
type Listener interface {
	// OnReceive is called once per event round in which the receive
	// buffer went from empty to holding n bytes.
	OnReceive(p Port, n int)

	// OnTransmit is called when a completed packet leaves no accepted
	// data outstanding.
	OnTransmit(p Port)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Receive  func(p Port, n int)
	Transmit func(p Port)
}

// OnReceive calls f.Receive.
func (f ListenerFuncs) OnReceive(p Port, n int) {
	if f.Receive != nil {
		f.Receive(p, n)
	}
}

// OnTransmit calls f.Transmit.
func (f ListenerFuncs) OnTransmit(p Port) {
	if f.Transmit != nil {
		f.Transmit(p)
	}
}

var _ Listener = ListenerFuncs{}

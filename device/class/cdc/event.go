package cdc

import "github.com/ardnew/cdcserial/device/hal"

// roundStatus classifies how an event round ended, for logging.
type roundStatus int

const (
	roundIdle      roundStatus = iota // Nothing to do
	roundDrained                      // Device stack ran out of data
	roundSaturated                    // Receive buffer filled up
	roundChained                      // Next transmit chunk started
	roundComplete                     // All accepted data sent
)

func (r roundStatus) String() string {
	switch r {
	case roundIdle:
		return "idle"
	case roundDrained:
		return "drained"
	case roundSaturated:
		return "saturated"
	case roundChained:
		return "chained"
	case roundComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// HandleEvent processes one event round from the device stack: a receive
// round for hal.EventReceive and one packet completion for
// hal.EventTransmit. It never blocks and may run in interrupt context.
// Begin registers it with the device stack; after End it does nothing.
func (s *Serial) HandleEvent(events hal.Event) {
	s.rounds.Add(1)
	defer s.rounds.Add(-1)
	if s.ended.Load() {
		return
	}

	if events&hal.EventReceive != 0 {
		if n, status := s.receiveRound(); status != roundIdle {
			s.log.Debug("receive round",
				"bytes", n,
				"status", status,
				"buffered", s.rx.Len())
		}
	}

	if events&hal.EventTransmit != 0 {
		status := s.transmitComplete()
		s.log.Debug("transmit round",
			"status", status,
			"queued", s.tx.Len())
	}
}

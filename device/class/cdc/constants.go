package cdc

// Default ring buffer capacities.
const (
	DefaultRxCapacity = 256
	DefaultTxCapacity = 256
)

// MaxPacketSize is the full-speed bulk endpoint packet size.
const MaxPacketSize = 64

// PacketCeiling returns the largest transmit chunk handed to a device stack
// whose transmit FIFO holds fifoSize bytes. It is one byte short of the FIFO
// size rounded up to whole packets, so a full-size chunk always ends in a
// short packet and the host never needs a trailing zero-length packet.
func PacketCeiling(fifoSize int) int {
	if fifoSize < MaxPacketSize {
		fifoSize = MaxPacketSize
	}
	return ((fifoSize + MaxPacketSize - 1) &^ (MaxPacketSize - 1)) - 1
}

// NoData is returned by ReadChar and Peek when no data is buffered.
const NoData = -1

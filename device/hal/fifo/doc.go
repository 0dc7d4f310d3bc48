// Package fifo implements a CDC device stack over named pipes (FIFOs).
//
// It lets a serial port and a host process run in separate processes, or
// separate goroutines of one test, without USB hardware. The device owns a
// directory with two pipes:
//
//	/tmp/cdc-port/
//	├── host_to_device   # Attach/detach, class requests and OUT data
//	└── device_to_host   # IN packets
//
// Every message is framed as [type, len_lo, len_hi, payload...]. Class
// requests carry the 8-byte setup packet followed by the data stage.
//
// # Usage
//
//	// Device process
//	stack := fifo.New("/tmp/cdc-port")
//	if err := stack.Open(); err != nil { ... }
//	defer stack.Close()
//
//	port, _ := cdc.New(stack)
//	port.Begin()
//	go stack.Run(ctx)
//
//	// Host process
//	host, _ := fifo.Dial("/tmp/cdc-port")
//	host.Open(ctx) // attach, assert DTR and RTS
//	host.Write(ctx, []byte("hello"))
//
// Both pipes are opened read-write and non-blocking, so either side may
// start first. Reads and writes poll with a short deadline so that
// cancellation is noticed promptly.
package fifo

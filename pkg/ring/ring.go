package ring

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/cdcserial/pkg"
)

// MaxCapacity is the largest supported buffer capacity.
const MaxCapacity = 1 << 30

// Buffer is a single-producer, single-consumer circular byte buffer.
//
// Producer-side methods: [Buffer.WriteSpan], [Buffer.Commit],
// [Buffer.PushChunk]. Consumer-side methods: [Buffer.ReadSpan],
// [Buffer.Consume], [Buffer.PopChunk], [Buffer.Peek], [Buffer.PopByte].
// [Buffer.Len], [Buffer.Free] and [Buffer.Cap] may be called from either side.
type Buffer struct {
	data []byte
	mask uint32

	read  uint32 // consumer only
	write uint32 // producer only

	count atomic.Uint32
}

// New allocates a buffer with the given capacity, which must be a power of
// two no greater than [MaxCapacity].
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 || capacity > MaxCapacity || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring capacity %d: %w", capacity, pkg.ErrInvalidParameter)
	}
	return &Buffer{
		data: make([]byte, capacity),
		mask: uint32(capacity - 1),
	}, nil
}

// Cap returns the buffer capacity in bytes.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of bytes available to read.
func (b *Buffer) Len() int {
	return int(b.count.Load())
}

// Free returns the number of bytes available to write.
func (b *Buffer) Free() int {
	return len(b.data) - int(b.count.Load())
}

// Empty reports whether there is nothing to read.
func (b *Buffer) Empty() bool {
	return b.count.Load() == 0
}

// Full reports whether there is no space to write.
func (b *Buffer) Full() bool {
	return int(b.count.Load()) == len(b.data)
}

// WriteSpan returns the contiguous free region starting at the write cursor.
// The slice aliases the backing array; fill it and publish with Commit.
func (b *Buffer) WriteSpan() []byte {
	free := uint32(b.Free())
	w := b.write
	if end := uint32(len(b.data)) - w; free > end {
		free = end
	}
	return b.data[w : w+free]
}

// Commit publishes n bytes written into the span returned by WriteSpan.
// n must not exceed the length of that span.
func (b *Buffer) Commit(n int) {
	if n <= 0 {
		return
	}
	b.write = (b.write + uint32(n)) & b.mask
	b.count.Add(uint32(n))
}

// ReadSpan returns the contiguous readable region starting at the read
// cursor. The slice aliases the backing array and stays valid until the
// bytes are released with Consume.
func (b *Buffer) ReadSpan() []byte {
	avail := b.count.Load()
	r := b.read
	if end := uint32(len(b.data)) - r; avail > end {
		avail = end
	}
	return b.data[r : r+avail]
}

// Consume releases n bytes from the front of the buffer.
// n must not exceed the length of the span returned by ReadSpan.
func (b *Buffer) Consume(n int) {
	if n <= 0 {
		return
	}
	b.read = (b.read + uint32(n)) & b.mask
	b.count.Add(^uint32(n - 1))
}

// PushChunk copies as much of src as fits in one contiguous span and
// returns the number of bytes copied.
func (b *Buffer) PushChunk(src []byte) int {
	n := copy(b.WriteSpan(), src)
	b.Commit(n)
	return n
}

// PopChunk copies as much as is readable in one contiguous span into dst
// and returns the number of bytes copied.
func (b *Buffer) PopChunk(dst []byte) int {
	n := copy(dst, b.ReadSpan())
	b.Consume(n)
	return n
}

// Peek returns the next unread byte without consuming it.
func (b *Buffer) Peek() (byte, bool) {
	if b.count.Load() == 0 {
		return 0, false
	}
	return b.data[b.read], true
}

// PopByte consumes and returns the next unread byte.
func (b *Buffer) PopByte() (byte, bool) {
	if b.count.Load() == 0 {
		return 0, false
	}
	c := b.data[b.read]
	b.Consume(1)
	return c, true
}

// Reset discards all buffered data. It must only be called while neither
// the producer nor the consumer is active.
func (b *Buffer) Reset() {
	b.read = 0
	b.write = 0
	b.count.Store(0)
}

// Package ring implements the bounded single-producer/single-consumer sample
// queue that connects the capture task to the transmit task.
//
// Both Write and Read are non-blocking: Write drops the excess and sets a
// sticky overflow flag rather than stalling the producer; Read returns
// whatever is available rather than waiting for more. The implementation is
// lock-free (two atomic indices over a power-of-two backing array) so there
// is no critical section for a watchdog to time out on.
package ring

import (
	"sync/atomic"
)

// Buffer is a fixed-capacity circular queue of int32 samples.
type Buffer struct {
	data     []int32
	mask     uint64 // capacity-1, capacity is a power of two
	capacity uint64

	writeIdx atomic.Uint64
	readIdx  atomic.Uint64
	overflow atomic.Bool
}

// New allocates a ring buffer able to hold at least capacitySamples samples,
// rounding up to the next power of two. The allocation happens once; the
// buffer never grows or shrinks afterward.
func New(capacitySamples int) *Buffer {
	if capacitySamples <= 0 {
		capacitySamples = 1
	}
	capacity := nextPowerOfTwo(uint64(capacitySamples))
	return &Buffer{
		data:     make([]int32, capacity),
		mask:     capacity - 1,
		capacity: capacity,
	}
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// Capacity returns the buffer's sample capacity (rounded up to a power of two).
func (b *Buffer) Capacity() int {
	return int(b.capacity)
}

// Write copies as many samples from src into the buffer as free space allows
// and returns the accepted count. If src would overrun free space, the
// admissible prefix is written and the sticky overflow flag is set; the
// producer is never blocked.
func (b *Buffer) Write(src []int32) int {
	if len(src) == 0 {
		return 0
	}

	writeIdx := b.writeIdx.Load()
	readIdx := b.readIdx.Load()
	available := writeIdx - readIdx
	free := b.capacity - available

	toWrite := uint64(len(src))
	if toWrite > free {
		toWrite = free
		b.overflow.Store(true)
	}
	if toWrite == 0 {
		return 0
	}

	for i := uint64(0); i < toWrite; i++ {
		b.data[(writeIdx+i)&b.mask] = src[i]
	}
	b.writeIdx.Store(writeIdx + toWrite)
	return int(toWrite)
}

// Read copies up to len(dst) samples into dst and returns the filled count.
// If fewer samples are available than requested, only those are returned;
// Read never blocks waiting for more.
func (b *Buffer) Read(dst []int32) int {
	if len(dst) == 0 {
		return 0
	}

	readIdx := b.readIdx.Load()
	writeIdx := b.writeIdx.Load()
	available := writeIdx - readIdx

	toRead := uint64(len(dst))
	if toRead > available {
		toRead = available
	}
	if toRead == 0 {
		return 0
	}

	for i := uint64(0); i < toRead; i++ {
		dst[i] = b.data[(readIdx+i)&b.mask]
	}
	b.readIdx.Store(readIdx + toRead)
	return int(toRead)
}

// Available reports the number of samples currently queued for reading.
func (b *Buffer) Available() int {
	return int(b.writeIdx.Load() - b.readIdx.Load())
}

// FreeSpace reports the number of samples that can be written before overflow.
func (b *Buffer) FreeSpace() int {
	return int(b.capacity) - b.Available()
}

// UsagePercent returns the buffer's fill level as a rounded-down percentage.
func (b *Buffer) UsagePercent() uint8 {
	return uint8(100 * uint64(b.Available()) / b.capacity)
}

// CheckOverflowAndClear returns true exactly once per overflow event: the
// sticky flag is cleared as a side effect of this call.
func (b *Buffer) CheckOverflowAndClear() bool {
	return b.overflow.Swap(false)
}

// Reset force-drains the buffer: both indices collapse to zero and the
// overflow flag clears. Used by the capture task as an emergency drain after
// sustained overflow.
func (b *Buffer) Reset() {
	b.readIdx.Store(0)
	b.writeIdx.Store(0)
	b.overflow.Store(false)
}

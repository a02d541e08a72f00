package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewRoundsCapacityUpToPowerOfTwo(t *testing.T) {
	b := New(300)
	require.Equal(t, 512, b.Capacity())
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(8)
	n := b.Write([]int32{1, 2, 3})
	require.Equal(t, 3, n)
	require.Equal(t, 3, b.Available())

	out := make([]int32, 3)
	got := b.Read(out)
	require.Equal(t, 3, got)
	require.Equal(t, []int32{1, 2, 3}, out)
	require.Equal(t, 0, b.Available())
}

func TestWriteAtCapacityAcceptsZeroAndSetsOverflow(t *testing.T) {
	b := New(4)
	require.Equal(t, 4, b.Write([]int32{1, 2, 3, 4}))
	require.False(t, b.CheckOverflowAndClear())

	n := b.Write([]int32{5, 6})
	require.Equal(t, 0, n)
	require.True(t, b.CheckOverflowAndClear())
}

func TestReadEmptyReturnsZero(t *testing.T) {
	b := New(4)
	out := make([]int32, 4)
	require.Equal(t, 0, b.Read(out))
}

func TestPartialWriteSetsOverflowAndAcceptsPrefix(t *testing.T) {
	b := New(4)
	n := b.Write([]int32{1, 2, 3, 4, 5, 6})
	require.Equal(t, 4, n)
	require.True(t, b.CheckOverflowAndClear())

	out := make([]int32, 4)
	require.Equal(t, 4, b.Read(out))
	require.Equal(t, []int32{1, 2, 3, 4}, out)
}

func TestOverflowStickyUntilChecked(t *testing.T) {
	b := New(2)
	b.Write([]int32{1, 2, 3})
	require.True(t, b.CheckOverflowAndClear())
	require.False(t, b.CheckOverflowAndClear())
}

func TestUsagePercentRoundsDown(t *testing.T) {
	b := New(8)
	b.Write([]int32{1, 2, 3})
	require.Equal(t, uint8(37), b.UsagePercent())
}

func TestResetClearsIndicesAndOverflow(t *testing.T) {
	b := New(4)
	b.Write([]int32{1, 2, 3, 4, 5})
	b.Reset()
	require.Equal(t, 0, b.Available())
	require.False(t, b.CheckOverflowAndClear())
	out := make([]int32, 4)
	require.Equal(t, 0, b.Read(out))
}

// TestFIFOOrderingProperty is the ring-FIFO invariant from spec §8: the
// concatenation of reads is a prefix of the concatenation of accepted writes,
// across arbitrary interleavings of variable-sized writes and reads.
func TestFIFOOrderingProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.SampledFrom([]int{4, 8, 16, 64}).Draw(rt, "capacity")
		b := New(capacity)

		var written, read []int32
		next := int32(0)
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")

		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "isWrite") {
				n := rapid.IntRange(1, capacity*2).Draw(rt, "writeLen")
				batch := make([]int32, n)
				for j := range batch {
					batch[j] = next
					next++
				}
				accepted := b.Write(batch)
				written = append(written, batch[:accepted]...)
			} else {
				n := rapid.IntRange(1, capacity*2).Draw(rt, "readLen")
				out := make([]int32, n)
				got := b.Read(out)
				read = append(read, out[:got]...)
			}
		}

		require.LessOrEqual(rt, len(read), len(written))
		require.Equal(rt, written[:len(read)], read)
	})
}

// TestWriteNeverBlocks is the no-blocking-producer property from spec §8:
// Write's wall-clock latency is bounded regardless of whether the consumer
// ever drains the buffer.
func TestWriteNeverBlocks(t *testing.T) {
	b := New(256)
	batch := make([]int32, 512)

	const budget = 5 * time.Millisecond
	for i := 0; i < 1000; i++ {
		start := time.Now()
		b.Write(batch)
		elapsed := time.Since(start)
		require.Lessf(t, elapsed, budget, "write %d took %s", i, elapsed)
	}
}

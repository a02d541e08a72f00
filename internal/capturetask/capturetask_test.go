package capturetask

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sarpel/audiostreamer/internal/errorledger"
	"github.com/sarpel/audiostreamer/internal/ring"
)

type fakeDriver struct {
	reads   atomic.Int32
	reinits atomic.Int32

	failAll     bool
	failUntil   int32 // ReadBlock fails while reads <= failUntil
	reinitFails bool

	samples []int32
}

func (f *fakeDriver) ReadBlock(ctx context.Context, buf []int32) (int, error) {
	n := f.reads.Add(1)
	if f.failAll || n <= f.failUntil {
		return 0, errors.New("simulated capture failure")
	}
	return copy(buf, f.samples), nil
}

func (f *fakeDriver) Reinit(ctx context.Context) error {
	f.reinits.Add(1)
	if f.reinitFails {
		return errors.New("simulated reinit failure")
	}
	f.reads.Store(0)
	f.failUntil = 0
	return nil
}

func TestRunWritesBlocksToRingUntilCanceled(t *testing.T) {
	driver := &fakeDriver{samples: []int32{1, 2, 3, 4}}
	buf := ring.New(64)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fed := atomic.Int32{}
	err := Run(ctx, Deps{
		Driver: driver,
		Ring:   buf,
		Ledger: errorledger.New(nil, zaptest.NewLogger(t)),
		Feed:   func() { fed.Add(1) },
		Logger: zaptest.NewLogger(t),
		Config: Config{BlockSize: 4, MaxConsecutiveFail: 100, OverflowCooldown: time.Second},
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Greater(t, driver.reads.Load(), int32(0))
	require.Greater(t, fed.Load(), int32(0))
	require.Greater(t, buf.Available(), 0)
}

func TestRunReturnsFatalAfterConsecutiveFailuresWithReinitDisabled(t *testing.T) {
	driver := &fakeDriver{failAll: true}
	buf := ring.New(64)

	err := Run(context.Background(), Deps{
		Driver: driver,
		Ring:   buf,
		Ledger: errorledger.New(nil, zaptest.NewLogger(t)),
		Logger: zaptest.NewLogger(t),
		Config: Config{BlockSize: 4, MaxConsecutiveFail: 3, OverflowCooldown: time.Second},
	})

	require.Error(t, err)
	require.Equal(t, int32(3), driver.reads.Load())
	require.Equal(t, int32(0), driver.reinits.Load())
}

func TestRunReinitsAfterThresholdThenResetsCounterOnSuccess(t *testing.T) {
	// Fails the first 3 reads, then Reinit clears the failure and the next
	// reads succeed — the task must not escalate to Fatal.
	driver := &fakeDriver{failUntil: 3, samples: []int32{1, 2, 3, 4}}
	buf := ring.New(64)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Run(ctx, Deps{
		Driver: driver,
		Ring:   buf,
		Ledger: errorledger.New(nil, zaptest.NewLogger(t)),
		Logger: zaptest.NewLogger(t),
		Config: Config{BlockSize: 4, MaxConsecutiveFail: 3, OverflowCooldown: time.Second, EnableReinit: true},
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(1), driver.reinits.Load())
	require.Greater(t, buf.Available(), 0)
}

func TestRunEscalatesToFatalWhenReinitFails(t *testing.T) {
	driver := &fakeDriver{failAll: true, reinitFails: true}
	buf := ring.New(64)

	err := Run(context.Background(), Deps{
		Driver: driver,
		Ring:   buf,
		Ledger: errorledger.New(nil, zaptest.NewLogger(t)),
		Logger: zaptest.NewLogger(t),
		Config: Config{BlockSize: 4, MaxConsecutiveFail: 3, OverflowCooldown: time.Second, EnableReinit: true},
	})

	require.Error(t, err)
	require.Equal(t, int32(1), driver.reinits.Load())
}

func TestRunRecoversOnceThenEscalatesWhenReinitLaterFails(t *testing.T) {
	driver := &fakeDriver{failUntil: 3, samples: []int32{1, 2, 3, 4}}
	buf := ring.New(64)

	ledger := errorledger.New(nil, zaptest.NewLogger(t))
	cfg := Config{BlockSize: 4, MaxConsecutiveFail: 3, OverflowCooldown: time.Second, EnableReinit: true}

	// First run: reinit succeeds, reads resume, then the 30ms timeout stops
	// the loop.
	ctx1, cancel1 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	err := Run(ctx1, Deps{Driver: driver, Ring: buf, Ledger: ledger, Logger: zaptest.NewLogger(t), Config: cfg})
	cancel1()
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(1), driver.reinits.Load())

	// Now force every subsequent read and reinit to fail, simulating the
	// "one more batch, then reinit fails" escalation.
	driver.failAll = true
	driver.reinitFails = true

	err = Run(context.Background(), Deps{Driver: driver, Ring: buf, Ledger: ledger, Logger: zaptest.NewLogger(t), Config: cfg})
	require.Error(t, err)
	require.Equal(t, int32(2), driver.reinits.Load())
}

func TestRunDrainsRingAfterOverflowThreshold(t *testing.T) {
	driver := &fakeDriver{samples: make([]int32, 8)}
	for i := range driver.samples {
		driver.samples[i] = int32(i)
	}
	buf := ring.New(4) // tiny capacity so every 8-sample write overflows

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := Run(ctx, Deps{
		Driver: driver,
		Ring:   buf,
		Ledger: errorledger.New(nil, zaptest.NewLogger(t)),
		Logger: zaptest.NewLogger(t),
		Config: Config{
			BlockSize:          8,
			MaxConsecutiveFail: 100,
			OverflowCooldown:   time.Millisecond,
			MaxBufferOverflows: 2,
			EnableBufferDrain:  true,
		},
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	// The run goes through repeated overflow and drain cycles and stops on
	// the deadline; the ring's final fill level is within its capacity.
	require.LessOrEqual(t, buf.Available(), buf.Capacity())
}

// Package capturetask implements the capture loop (spec §4.5): read a block
// from the driver, write it to the ring buffer, and react to overflow and
// consecutive read failures.
package capturetask

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/errorledger"
	"github.com/sarpel/audiostreamer/internal/errs"
	"github.com/sarpel/audiostreamer/internal/ring"
)

// Driver is the subset of capture.Driver the task depends on.
type Driver interface {
	ReadBlock(ctx context.Context, buf []int32) (int, error)
	// Reinit tears down and recreates the underlying capture stream in
	// place, used as the deinit+reinit recovery step after
	// MaxConsecutiveFail consecutive read failures.
	Reinit(ctx context.Context) error
}

// Config carries the task's tunables (spec §7 thresholds).
type Config struct {
	BlockSize          int
	MaxConsecutiveFail int
	OverflowCooldown   time.Duration

	// MaxBufferOverflows is the count of sticky ring-overflow events that
	// triggers an emergency ring drain when EnableBufferDrain is set.
	MaxBufferOverflows int
	EnableBufferDrain  bool

	// EnableReinit gates the deinit+reinit recovery attempt on repeated
	// capture failures; when false (or when Reinit fails), the failure
	// escalates straight to Fatal.
	EnableReinit bool
}

// Deps bundles the task's collaborators.
type Deps struct {
	Driver Driver
	Ring   *ring.Buffer
	Ledger *errorledger.Ledger
	Feed   func()
	Logger *zap.Logger
	Config Config
}

// Run blocks until ctx is canceled or consecutive read failures reach
// Config.MaxConsecutiveFail and the deinit+reinit recovery (when enabled)
// also fails, at which point it records a Fatal error and returns.
func Run(ctx context.Context, deps Deps) error {
	block := make([]int32, deps.Config.BlockSize)
	consecutiveFailures := 0
	overflowEvents := 0
	lastOverflowLog := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := deps.Driver.ReadBlock(ctx, block)
		if err != nil {
			consecutiveFailures++
			deps.Ledger.Record(errs.CaptureFailure, errs.Warning, "capturetask", "capture read failed")
			if consecutiveFailures >= deps.Config.MaxConsecutiveFail {
				if recovered := deps.reinit(ctx); recovered {
					consecutiveFailures = 0
					continue
				}
				deps.Ledger.Record(errs.CaptureFailure, errs.Fatal, "capturetask", "capture read failed too many times consecutively")
				return err
			}
			continue
		}
		consecutiveFailures = 0

		if n == 0 {
			if deps.Feed != nil {
				deps.Feed()
			}
			continue
		}

		accepted := deps.Ring.Write(block[:n])
		if accepted < n {
			deps.Ledger.Record(errs.BufferOverflow, errs.Warning, "capturetask", "ring buffer overflow, samples dropped")
		}

		if deps.Ring.CheckOverflowAndClear() {
			if time.Since(lastOverflowLog) >= deps.Config.OverflowCooldown {
				deps.Logger.Warn("ring buffer overflow", zap.Uint8("usage_percent", deps.Ring.UsagePercent()))
				lastOverflowLog = time.Now()
			}

			overflowEvents++
			if deps.Config.EnableBufferDrain && deps.Config.MaxBufferOverflows > 0 && overflowEvents >= deps.Config.MaxBufferOverflows {
				deps.Ledger.Record(errs.BufferOverflow, errs.Critical, "capturetask", "buffer overflow threshold exceeded, draining ring")
				deps.Ring.Reset()
				overflowEvents = 0
			}
		}

		if deps.Feed != nil {
			deps.Feed()
		}
	}
}

// reinit attempts the deinit+reinit recovery step when enabled, logging the
// outcome. It reports whether the driver recovered.
func (deps Deps) reinit(ctx context.Context) bool {
	if !deps.Config.EnableReinit {
		return false
	}

	deps.Ledger.Record(errs.CaptureFailure, errs.Error, "capturetask", "reinitializing capture driver after repeated failures")
	if err := deps.Driver.Reinit(ctx); err != nil {
		deps.Logger.Error("capture driver reinit failed", zap.Error(err))
		return false
	}
	return true
}

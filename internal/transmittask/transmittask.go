// Package transmittask implements the transmit loop (spec §4.6): batch
// samples out of the ring buffer, send them over the configured transport,
// and run the reconnect/backoff state machine.
package transmittask

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/errorledger"
	"github.com/sarpel/audiostreamer/internal/errs"
	"github.com/sarpel/audiostreamer/internal/ring"
	"github.com/sarpel/audiostreamer/internal/transport"
)

// Config carries the task's batching and backoff tunables.
type Config struct {
	StartupDelay          time.Duration
	BatchMinSamples       int
	BatchMaxSamples       int
	BatchWaitTimeout      time.Duration
	InitialBackoff        time.Duration
	MaxBackoff            time.Duration
	MaxReconnectAttempts  int
}

// Deps bundles the task's collaborators. ReconnectRequests is consumed only
// inside this loop, per spec's Design Note preferring a channel handoff over
// a mutex for "at most one goroutine holds the socket".
type Deps struct {
	Transport         transport.Transport
	Ring              *ring.Buffer
	Ledger            *errorledger.Ledger
	ReconnectRequests chan struct{}
	Logger            *zap.Logger
	Config            Config
}

// Run blocks until ctx is canceled, or until a reconnect attempt fails once
// the attempt count since the last successful send has reached
// Config.MaxReconnectAttempts; it then records a Fatal error and returns it.
func Run(ctx context.Context, deps Deps) error {
	select {
	case <-time.After(deps.Config.StartupDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	backoff := deps.Config.InitialBackoff
	attempts := 0
	batch := make([]int32, deps.Config.BatchMaxSamples)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deps.ReconnectRequests:
			if err := reconnectWithBackoff(ctx, &deps, &backoff, &attempts); err != nil {
				return err
			}
			continue
		default:
		}

		if !deps.Transport.IsConnected() {
			if err := reconnectWithBackoff(ctx, &deps, &backoff, &attempts); err != nil {
				return err
			}
			continue
		}

		n := waitForBatch(ctx, deps, batch)
		if n == 0 {
			continue
		}

		if err := deps.Transport.Send(ctx, batch[:n]); err != nil {
			deps.Ledger.Record(errs.TransportFailure, errs.Warning, "transmittask", "send failed, requesting reconnect")
			if err := reconnectWithBackoff(ctx, &deps, &backoff, &attempts); err != nil {
				return err
			}
			continue
		}

		attempts = 0
		backoff = deps.Config.InitialBackoff

		if deps.Ring.CheckOverflowAndClear() {
			deps.Logger.Warn("ring overflow observed by transmit task")
		}

		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitForBatch reads up to len(batch) samples from the ring, waiting for at
// least Config.BatchMinSamples or Config.BatchWaitTimeout, whichever first.
func waitForBatch(ctx context.Context, deps Deps, batch []int32) int {
	deadline := time.Now().Add(deps.Config.BatchWaitTimeout)
	for {
		if deps.Ring.Available() >= deps.Config.BatchMinSamples || time.Now().After(deadline) {
			return deps.Ring.Read(batch)
		}
		select {
		case <-ctx.Done():
			return 0
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func reconnectWithBackoff(ctx context.Context, deps *Deps, backoff *time.Duration, attempts *int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		*attempts++
		if err := deps.Transport.Reconnect(ctx); err != nil {
			deps.Ledger.Record(errs.NetworkFailed, errs.Warning, "transmittask", "reconnect attempt failed")

			if *attempts >= deps.Config.MaxReconnectAttempts {
				deps.Ledger.Record(errs.TransportFailure, errs.Fatal, "transmittask", "reconnect attempts exhausted")
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(*backoff):
			}

			*backoff *= 2
			if *backoff > deps.Config.MaxBackoff {
				*backoff = deps.Config.MaxBackoff
			}
			continue
		}

		deps.Logger.Info("transport reconnected", zap.Int("attempts", *attempts))
		return nil
	}
}

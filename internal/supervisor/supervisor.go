// Package supervisor implements the watchdog loop (spec §4.7): link
// monitoring, task liveness checks, periodic statistics roll-up, and NTP
// resync on a configured interval. It does not reset the capture task's
// overflow counter.
package supervisor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/errorledger"
	"github.com/sarpel/audiostreamer/internal/errs"
	"github.com/sarpel/audiostreamer/internal/netlink"
	"github.com/sarpel/audiostreamer/internal/ring"
	"github.com/sarpel/audiostreamer/internal/transport"
)

const tickInterval = time.Second

// linkSettleDelay is the pause after an Up transition before the supervisor
// forces a transmit-task reconnect, giving the new link a moment to settle.
const linkSettleDelay = 2 * time.Second

// Config carries the supervisor's tunables (spec §7 thresholds).
type Config struct {
	WatchdogTimeout  time.Duration
	StatsInterval    time.Duration
	NTPResyncInterval time.Duration
}

// TaskLiveness exposes the last-fed timestamp for one monitored task.
type TaskLiveness interface {
	LastFed() time.Time
}

// Deps bundles the supervisor's collaborators.
type Deps struct {
	Link              *netlink.Monitor
	Transport         transport.Transport
	Ring              *ring.Buffer
	Ledger            *errorledger.Ledger
	ReconnectRequests chan<- struct{}
	CaptureLiveness   TaskLiveness
	TransmitLiveness  TaskLiveness
	Logger            *zap.Logger
	Config            Config
}

// Run blocks until ctx is canceled, ticking once per second.
func Run(ctx context.Context, deps Deps) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastStats := time.Now()
	lastNTPResync := time.Now()
	wasUp := deps.Link.IsConnected()
	var upSince time.Time
	forcedReconnectAfterUp := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := deps.Link.Reconnect(ctx); err != nil {
			deps.Ledger.Record(errs.NetworkFailed, errs.Warning, "supervisor", "link probe failed")
		}

		nowUp := deps.Link.IsConnected()
		if nowUp && !wasUp {
			upSince = time.Now()
			forcedReconnectAfterUp = false
		}
		if nowUp && !forcedReconnectAfterUp && time.Since(upSince) >= linkSettleDelay {
			requestReconnect(deps.ReconnectRequests)
			forcedReconnectAfterUp = true
		}
		wasUp = nowUp

		if deps.Link.ExceededMaxDisconnects() {
			deps.Ledger.Record(errs.NetworkFailed, errs.Critical, "supervisor", "link disconnect count exceeded threshold")
		}

		checkLiveness(deps, "capture", deps.CaptureLiveness)
		checkLiveness(deps, "transmit", deps.TransmitLiveness)

		if time.Since(lastStats) >= deps.Config.StatsInterval {
			logStats(deps)
			lastStats = time.Now()
		}

		if time.Since(lastNTPResync) >= deps.Config.NTPResyncInterval {
			deps.Link.ResyncTime()
			lastNTPResync = time.Now()
		}
	}
}

func requestReconnect(requests chan<- struct{}) {
	if requests == nil {
		return
	}
	select {
	case requests <- struct{}{}:
	default:
	}
}

func checkLiveness(deps Deps, name string, liveness TaskLiveness) {
	if liveness == nil {
		return
	}
	if time.Since(liveness.LastFed()) > deps.Config.WatchdogTimeout {
		deps.Ledger.Record(errs.Timeout, errs.Fatal, "supervisor", name+" task missed its watchdog deadline")
	}
}

// logStats emits the 10s-cadence roll-up: transport stats, ring usage, heap
// stats via runtime.ReadMemStats, and goroutine count in place of per-task
// CPU share (Go has no per-goroutine CPU accounting).
func logStats(deps Deps) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := deps.Transport.Stats()

	deps.Logger.Info("periodic stats",
		zap.Uint64("bytes_sent", stats.BytesSent),
		zap.Uint64("reconnects", stats.Reconnects),
		zap.Uint64("lost_packets", stats.LostPackets),
		zap.Uint8("ring_usage_percent", deps.Ring.UsagePercent()),
		zap.Uint64("heap_alloc_bytes", mem.Alloc),
		zap.Int("goroutines", runtime.NumGoroutine()),
	)
}

// LivenessTracker is a TaskLiveness implementation for use by the tasks the
// supervisor watches; it is safe for concurrent Feed/LastFed calls.
type LivenessTracker struct {
	mu      sync.Mutex
	lastFed time.Time
}

// NewLivenessTracker returns a tracker initialized to the current time.
func NewLivenessTracker() *LivenessTracker {
	return &LivenessTracker{lastFed: time.Now()}
}

// Feed records that the owning task is still making progress.
func (l *LivenessTracker) Feed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastFed = time.Now()
}

// LastFed implements TaskLiveness.
func (l *LivenessTracker) LastFed() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFed
}

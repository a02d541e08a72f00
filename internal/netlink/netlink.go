// Package netlink monitors outbound reachability to the configured collector
// and provides best-effort wall-clock synchronization via SNTP (spec §4.3).
package netlink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/fsm"
)

// Config describes the collector endpoint to probe and the NTP server used
// for best-effort time synchronization.
type Config struct {
	CollectorHost     string
	CollectorPort     int
	DialTimeout       time.Duration
	NTPServer         string
	NTPDialTimeout    time.Duration
	ResyncInterval    time.Duration
	MaxDisconnects    int
}

// Monitor tracks link state and escalates to the supervisor after repeated
// disconnects.
type Monitor struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	state fsm.State

	disconnectCount atomic.Int64
	wallclockOffset atomic.Int64 // nanoseconds to add to time.Now()

	dial func(network, address string, timeout time.Duration) (net.Conn, error)
}

// New builds a Monitor in the Down state.
func New(cfg Config, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		logger: logger,
		state:  fsm.StateDown,
		dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout(network, address, timeout)
		},
	}
}

// Init performs the first reachability probe and attempts initial time sync.
func (m *Monitor) Init(ctx context.Context) error {
	m.InitTimeSync()
	return m.probeAndTransition(ctx)
}

// IsConnected reports whether the link is currently Up.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == fsm.StateUp
}

// Reconnect forces a fresh reachability probe, as if the link had just been
// asked to retry.
func (m *Monitor) Reconnect(ctx context.Context) error {
	return m.probeAndTransition(ctx)
}

// DisconnectCount returns the cumulative count of Up→Down transitions.
func (m *Monitor) DisconnectCount() int64 {
	return m.disconnectCount.Load()
}

// ExceededMaxDisconnects reports whether disconnects have crossed the
// configured escalation threshold.
func (m *Monitor) ExceededMaxDisconnects() bool {
	return int(m.disconnectCount.Load()) >= m.cfg.MaxDisconnects
}

func (m *Monitor) probeAndTransition(ctx context.Context) error {
	reachable := m.probe(ctx)

	m.mu.Lock()
	prev := m.state
	var next fsm.State
	var err error
	if reachable {
		switch prev {
		case fsm.StateDown:
			next, err = fsm.Transition(prev, fsm.EventConnect)
			if err == nil {
				next, err = fsm.Transition(next, fsm.EventConnected)
			}
		case fsm.StateConnecting:
			next, err = fsm.Transition(prev, fsm.EventConnected)
		default:
			next = prev
		}
	} else {
		switch prev {
		case fsm.StateUp:
			next, err = fsm.Transition(prev, fsm.EventDisconnect)
		case fsm.StateConnecting:
			next, err = fsm.Transition(prev, fsm.EventFail)
		default:
			next = prev
		}
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	m.mu.Unlock()

	if prev == fsm.StateUp && next == fsm.StateDown {
		m.disconnectCount.Add(1)
		m.logger.Warn("link transitioned down",
			zap.String("from", string(prev)), zap.String("to", string(next)),
			zap.Int64("disconnect_count", m.disconnectCount.Load()))
	} else if prev != next {
		m.logger.Info("link state transition", zap.String("from", string(prev)), zap.String("to", string(next)))
	}

	return nil
}

func (m *Monitor) probe(ctx context.Context) bool {
	timeout := m.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	address := fmt.Sprintf("%s:%d", m.cfg.CollectorHost, m.cfg.CollectorPort)

	conn, err := m.dial("tcp", address, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// NowWallclock returns the best-effort synchronized wall clock.
func (m *Monitor) NowWallclock() time.Time {
	offset := time.Duration(m.wallclockOffset.Load())
	return time.Now().Add(offset)
}

// InitTimeSync performs a best-effort one-shot SNTP query, leaving the
// wall clock untouched on failure (the host OS's battery-backed clock is
// the fallback, in place of the original's known-safe-epoch RTC reset).
func (m *Monitor) InitTimeSync() {
	offset, err := querySNTPOffset(m.cfg.NTPServer, m.cfg.NTPDialTimeout)
	if err != nil {
		m.logger.Warn("initial NTP sync failed, wall clock left as-is", zap.Error(err))
		return
	}
	m.wallclockOffset.Store(int64(offset))
	m.logger.Info("NTP sync succeeded", zap.Duration("offset", offset))
}

// ResyncTime repeats the best-effort SNTP query on the configured cadence.
func (m *Monitor) ResyncTime() {
	m.InitTimeSync()
}

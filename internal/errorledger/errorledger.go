// Package errorledger implements the shared error-recording boundary (spec
// §4.8, §7): per-kind atomic counters, one structured log line per event, and
// persistence plus reboot escalation for Critical/Fatal severities.
package errorledger

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/errs"
)

// PersistentStore is the subset of internal/kvstore the ledger depends on.
type PersistentStore interface {
	WriteLastFatal(kind errs.Kind, count uint64) error
}

// Rebooter is the supervisor escalation signal (spec §6).
type Rebooter interface {
	Reboot(reason string)
}

// Indicator is the operator-facing escalation surface shown on Fatal
// severity, ahead of any reboot (SPEC_FULL §9).
type Indicator interface {
	ShowFatal(ctx context.Context, text string)
}

// Ledger records error occurrences and escalates fatal conditions.
type Ledger struct {
	store     PersistentStore
	logger    *zap.Logger
	reboot    Rebooter
	autoboot  bool
	indicator Indicator

	counts    [numKinds]atomic.Uint64
	fatalHits atomic.Uint64

	sleep func(time.Duration)
}

const numKinds = int(errs.Timeout) + 1

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithRebooter installs the escalation target invoked on Fatal severity.
func WithRebooter(r Rebooter, autoReboot bool) Option {
	return func(l *Ledger) {
		l.reboot = r
		l.autoboot = autoReboot
	}
}

// WithSleepFunc overrides the pre-reboot delay, for tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(l *Ledger) { l.sleep = fn }
}

// WithIndicator installs the operator-facing surface notified on Fatal
// severity.
func WithIndicator(ind Indicator) Option {
	return func(l *Ledger) { l.indicator = ind }
}

// New builds a Ledger backed by store for persistence and logger for the
// one-line-per-event audit trail.
func New(store PersistentStore, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logger,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record increments the kind's counter, logs at the matching severity, and
// for Critical/Fatal persists the last-fatal record. Fatal with an
// auto-reboot-capable Rebooter installed sleeps 3s then escalates.
func (l *Ledger) Record(kind errs.Kind, severity errs.Severity, module, msg string) {
	count := l.counts[kind].Add(1)

	fields := []zap.Field{
		zap.String("kind", kind.String()),
		zap.String("severity", severity.String()),
		zap.String("module", module),
		zap.Uint64("count", count),
	}

	switch {
	case severity >= errs.Critical:
		l.logger.Error(msg, fields...)
	case severity == errs.Error:
		l.logger.Error(msg, fields...)
	case severity == errs.Warning:
		l.logger.Warn(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}

	if severity < errs.Critical {
		return
	}

	fatalHits := l.fatalHits.Add(1)
	if l.store != nil {
		if err := l.store.WriteLastFatal(kind, fatalHits); err != nil {
			l.logger.Error("persist last-fatal record failed", zap.Error(err))
		}
	}

	if severity == errs.Fatal {
		if l.indicator != nil {
			l.indicator.ShowFatal(context.Background(), msg)
		}
		if l.reboot != nil && l.autoboot {
			l.sleep(3 * time.Second)
			l.reboot.Reboot(msg)
		}
	}
}

// Count returns the cumulative occurrence count for kind.
func (l *Ledger) Count(kind errs.Kind) uint64 {
	return l.counts[kind].Load()
}

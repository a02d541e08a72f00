package errorledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sarpel/audiostreamer/internal/errs"
)

type fakeStore struct {
	kind  errs.Kind
	count uint64
	calls int
}

func (f *fakeStore) WriteLastFatal(kind errs.Kind, count uint64) error {
	f.kind = kind
	f.count = count
	f.calls++
	return nil
}

type fakeRebooter struct {
	reason string
	calls  int
}

func (f *fakeRebooter) Reboot(reason string) {
	f.reason = reason
	f.calls++
}

func TestRecordIncrementsPerKindCounters(t *testing.T) {
	l := New(nil, zaptest.NewLogger(t))

	l.Record(errs.NetworkFailed, errs.Warning, "netlink", "link down")
	l.Record(errs.NetworkFailed, errs.Warning, "netlink", "link down again")
	l.Record(errs.CaptureFailure, errs.Error, "capture", "read failed")

	require.Equal(t, uint64(2), l.Count(errs.NetworkFailed))
	require.Equal(t, uint64(1), l.Count(errs.CaptureFailure))
	require.Equal(t, uint64(0), l.Count(errs.Timeout))
}

func TestRecordPersistsOnCriticalAndFatal(t *testing.T) {
	store := &fakeStore{}
	l := New(store, zaptest.NewLogger(t))

	l.Record(errs.TransportFailure, errs.Critical, "transport", "reconnect budget exhausted")
	require.Equal(t, 1, store.calls)
	require.Equal(t, errs.TransportFailure, store.kind)
	require.Equal(t, uint64(1), store.count)

	l.Record(errs.OutOfMemory, errs.Fatal, "supervisor", "heap exhausted")
	require.Equal(t, 2, store.calls)
	require.Equal(t, errs.OutOfMemory, store.kind)
	require.Equal(t, uint64(2), store.count)
}

func TestRecordDoesNotPersistBelowCritical(t *testing.T) {
	store := &fakeStore{}
	l := New(store, zaptest.NewLogger(t))

	l.Record(errs.CaptureFailure, errs.Error, "capture", "read failed")
	require.Equal(t, 0, store.calls)
}

func TestRecordFatalEscalatesToRebooterWhenAutoRebootEnabled(t *testing.T) {
	rebooter := &fakeRebooter{}
	var slept time.Duration

	l := New(&fakeStore{}, zaptest.NewLogger(t),
		WithRebooter(rebooter, true),
		WithSleepFunc(func(d time.Duration) { slept = d }),
	)

	l.Record(errs.OutOfMemory, errs.Fatal, "supervisor", "heap exhausted")

	require.Equal(t, 1, rebooter.calls)
	require.Equal(t, "heap exhausted", rebooter.reason)
	require.Equal(t, 3*time.Second, slept)
}

func TestRecordFatalDoesNotEscalateWhenAutoRebootDisabled(t *testing.T) {
	rebooter := &fakeRebooter{}

	l := New(&fakeStore{}, zaptest.NewLogger(t), WithRebooter(rebooter, false))
	l.Record(errs.OutOfMemory, errs.Fatal, "supervisor", "heap exhausted")

	require.Equal(t, 0, rebooter.calls)
}

type fakeIndicator struct {
	text  string
	calls int
}

func (f *fakeIndicator) ShowFatal(_ context.Context, text string) {
	f.text = text
	f.calls++
}

func TestRecordFatalNotifiesIndicatorRegardlessOfAutoReboot(t *testing.T) {
	ind := &fakeIndicator{}

	l := New(&fakeStore{}, zaptest.NewLogger(t), WithIndicator(ind), WithRebooter(&fakeRebooter{}, false))
	l.Record(errs.OutOfMemory, errs.Fatal, "supervisor", "heap exhausted")

	require.Equal(t, 1, ind.calls)
	require.Equal(t, "heap exhausted", ind.text)
}

func TestRecordCriticalDoesNotNotifyIndicator(t *testing.T) {
	ind := &fakeIndicator{}

	l := New(&fakeStore{}, zaptest.NewLogger(t), WithIndicator(ind))
	l.Record(errs.TransportFailure, errs.Critical, "transport", "reconnect budget exhausted")

	require.Equal(t, 0, ind.calls)
}

// Package doctor runs runtime readiness diagnostics for config, audio
// capture, the collector link, and the persistent key/value store.
package doctor

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sarpel/audiostreamer/internal/capture"
	"github.com/sarpel/audiostreamer/internal/config"
	"github.com/sarpel/audiostreamer/internal/kvstore"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q (%d warning(s))", loaded.Path, len(loaded.Warnings)),
	})

	checks = append(checks, checkAudioSource(ctx, loaded.Config.Audio))
	checks = append(checks, checkCollectorReachable(ctx, loaded.Config.Transport))
	checks = append(checks, checkKVStoreWritable(loaded.Config.KVStore))

	return Report{Checks: checks}
}

// checkAudioSource opens and immediately closes the configured capture
// source, surfacing PulseAudio connectivity or source-resolution failures.
func checkAudioSource(ctx context.Context, cfg config.AudioConfig) Check {
	openCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	driver, err := capture.Open(openCtx, capture.Config{
		Input:      cfg.Input,
		SampleRate: cfg.SampleRate,
		BitWidth:   cfg.BitWidth,
		Channels:   cfg.Channels,
	})
	if err != nil {
		return Check{Name: "audio.source", Pass: false, Message: err.Error()}
	}
	defer driver.Close()

	input := cfg.Input
	if input == "" {
		input = "default"
	}
	return Check{Name: "audio.source", Pass: true, Message: fmt.Sprintf("opened source %q", input)}
}

// checkCollectorReachable dials the configured collector address over TCP;
// reachability is a necessary precondition for both the reliable and
// datagram transports.
func checkCollectorReachable(ctx context.Context, cfg config.TransportConfig) Check {
	if strings.TrimSpace(cfg.Host) == "" {
		return Check{Name: "collector.reachable", Pass: false, Message: "transport host is empty"}
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Check{Name: "collector.reachable", Pass: false, Message: fmt.Sprintf("dial %s: %v", addr, err)}
	}
	_ = conn.Close()
	return Check{Name: "collector.reachable", Pass: true, Message: fmt.Sprintf("reached %s", addr)}
}

// checkKVStoreWritable opens the persistent store and confirms its backing
// file is writable by rewriting the current last-fatal record unchanged.
// When no record exists yet, this writes an InitFailed record with a count
// of zero.
func checkKVStoreWritable(cfg config.KVStoreConfig) Check {
	store, err := kvstore.Open(cfg.Path)
	if err != nil {
		return Check{Name: "kvstore.writable", Pass: false, Message: err.Error()}
	}

	kind, count, _ := store.ReadLastFatal()
	if err := store.WriteLastFatal(kind, count); err != nil {
		return Check{Name: "kvstore.writable", Pass: false, Message: err.Error()}
	}
	return Check{Name: "kvstore.writable", Pass: true, Message: fmt.Sprintf("writable at %s", store.Path())}
}

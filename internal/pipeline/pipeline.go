// Package pipeline wires the capture, transmit, and supervisor goroutines
// into one running instance (spec §5): a single Pipeline owns the ring
// buffer, capture driver, network link monitor, stream transport, error
// ledger, and persistent store for the lifetime of one Run call.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/capture"
	"github.com/sarpel/audiostreamer/internal/capturetask"
	"github.com/sarpel/audiostreamer/internal/config"
	"github.com/sarpel/audiostreamer/internal/errorledger"
	"github.com/sarpel/audiostreamer/internal/indicator"
	"github.com/sarpel/audiostreamer/internal/kvstore"
	"github.com/sarpel/audiostreamer/internal/netlink"
	"github.com/sarpel/audiostreamer/internal/ring"
	"github.com/sarpel/audiostreamer/internal/supervisor"
	"github.com/sarpel/audiostreamer/internal/transmittask"
	"github.com/sarpel/audiostreamer/internal/transport"
)

// Pipeline owns one end-to-end capture -> ring -> transport run.
type Pipeline struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *kvstore.Store
	indicator indicator.Controller

	// openDriver and newTransport are overridden by integration tests to
	// substitute a fake capture driver and a fake TCP/UDP collector for
	// PulseAudio and a live network endpoint.
	openDriver   func(ctx context.Context, cfg capture.Config) (Driver, error)
	newTransport func(protocol string, cfg transport.Config) (transport.Transport, error)
}

// Driver is the subset of capture.Driver the pipeline depends on.
type Driver interface {
	capturetask.Driver
	Close() error
}

// New constructs a Pipeline from runtime config and its collaborators.
// indicatorController may be nil, in which case link transitions are not
// surfaced to the operator.
func New(cfg config.Config, logger *zap.Logger, store *kvstore.Store, indicatorController indicator.Controller) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		indicator: indicatorController,
		openDriver: func(ctx context.Context, cfg capture.Config) (Driver, error) {
			return capture.Open(ctx, cfg)
		},
		newTransport: transport.New,
	}
}

// exitRebooter is the daemon's default Rebooter: it logs the reason and
// exits the process, matching how the original firmware's esp_restart()
// hands control to the bootloader rather than self-reinitializing — here a
// process supervisor (systemd, a container runtime) performs the restart.
type exitRebooter struct {
	logger *zap.Logger
	exit   func(code int)
}

func (r exitRebooter) Reboot(reason string) {
	r.logger.Error("rebooting", zap.String("reason", reason))
	_ = r.logger.Sync()
	r.exit(1)
}

// Run builds every collaborator from config and blocks until ctx is
// canceled or an unrecoverable task error occurs.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.cfg

	driver, err := p.openDriver(ctx, capture.Config{
		Input:      cfg.Audio.Input,
		SampleRate: cfg.Audio.SampleRate,
		BitWidth:   cfg.Audio.BitWidth,
		Channels:   cfg.Audio.Channels,
		PinMap:     capture.PinMap{BCLK: cfg.Audio.PinMap.BCLK, WS: cfg.Audio.PinMap.WS, DIN: cfg.Audio.PinMap.DIN},
	})
	if err != nil {
		return fmt.Errorf("pipeline: open capture: %w", err)
	}
	defer driver.Close()

	buf := ring.New(cfg.Buffer.CapacityBytes / 4)

	tr, err := p.newTransport(cfg.Transport.Protocol, transport.Config{
		Host:            cfg.Transport.Host,
		Port:            cfg.Transport.Port,
		BitWidth:        cfg.Audio.BitWidth,
		KeepIdle:        time.Duration(cfg.Transport.KeepIdleSec) * time.Second,
		KeepInterval:    time.Duration(cfg.Transport.KeepIntervalSec) * time.Second,
		KeepCount:       cfg.Transport.KeepCount,
		SendTimeout:     time.Duration(cfg.Transport.SendTimeoutMS) * time.Millisecond,
		SendBufferBytes: cfg.Transport.SendBufferBytes,
		RecvBufferBytes: cfg.Transport.RecvBufferBytes,
		DatagramTimeout: time.Duration(cfg.Transport.DatagramSendMS) * time.Millisecond,
		MaxDatagramSize: cfg.Transport.MaxDatagramSize,
	})
	if err != nil {
		return fmt.Errorf("pipeline: build transport: %w", err)
	}
	if err := tr.Init(ctx); err != nil {
		p.logger.Warn("initial transport connect failed, transmit task will retry", zap.Error(err))
	}
	defer tr.Close()

	link := netlink.New(netlink.Config{
		CollectorHost:  cfg.Transport.Host,
		CollectorPort:  cfg.Transport.Port,
		DialTimeout:    2 * time.Second,
		NTPServer:      cfg.TimeSync.NTPServer,
		NTPDialTimeout: time.Duration(cfg.TimeSync.DialTimeoutMS) * time.Millisecond,
		ResyncInterval: time.Duration(cfg.TimeSync.ResyncIntervalSec) * time.Second,
		MaxDisconnects: cfg.Thresholds.MaxDisconnects,
	}, p.logger)
	if err := link.Init(ctx); err != nil {
		p.logger.Warn("initial link probe failed, supervisor will keep probing", zap.Error(err))
	}
	link.InitTimeSync()

	ledgerOpts := []errorledger.Option{errorledger.WithRebooter(
		exitRebooter{logger: p.logger, exit: osExit},
		cfg.Reboot.AutoReboot,
	)}
	if p.indicator != nil {
		ledgerOpts = append(ledgerOpts, errorledger.WithIndicator(p.indicator))
	}
	ledger := errorledger.New(p.store, p.logger, ledgerOpts...)

	reconnectRequests := make(chan struct{}, 1)
	captureLiveness := supervisor.NewLivenessTracker()
	transmitLiveness := supervisor.NewLivenessTracker()

	errs := make(chan error, 4)

	p.logger.Info("task scheduling hints (advisory)",
		zap.Int("capture_priority", cfg.Tasks.CapturePriority),
		zap.Int("capture_core", cfg.Tasks.CaptureCore),
		zap.Int("transmit_priority", cfg.Tasks.TransmitPriority),
		zap.Int("transmit_core", cfg.Tasks.TransmitCore),
		zap.Int("supervisor_priority", cfg.Tasks.SupervisorPriority),
		zap.Int("supervisor_core", cfg.Tasks.SupervisorCore),
	)

	go func() {
		// Best-effort stand-in for core pinning: keep capture on one OS thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		errs <- capturetask.Run(ctx, capturetask.Deps{
			Driver: driver,
			Ring:   buf,
			Ledger: ledger,
			Feed:   captureLiveness.Feed,
			Logger: p.logger,
			Config: capturetask.Config{
				BlockSize:          cfg.Audio.BlockSize,
				MaxConsecutiveFail: cfg.Thresholds.MaxCaptureFailures,
				OverflowCooldown:   time.Duration(cfg.Thresholds.OverflowCooldownMS) * time.Millisecond,
				MaxBufferOverflows: cfg.Thresholds.MaxBufferOverflows,
				EnableBufferDrain:  cfg.Reboot.EnableBufferDrain,
				EnableReinit:       cfg.Reboot.EnableCaptureReinit,
			},
		})
	}()

	go func() {
		errs <- transmittask.Run(ctx, transmittask.Deps{
			Transport:         tr,
			Ring:              buf,
			Ledger:            ledger,
			ReconnectRequests: reconnectRequests,
			Logger:            p.logger,
			Config: transmittask.Config{
				StartupDelay:         5 * time.Second,
				BatchMinSamples:      cfg.Audio.BlockSize,
				BatchMaxSamples:      cfg.Audio.BlockSize * 4,
				BatchWaitTimeout:     2 * time.Second,
				InitialBackoff:       time.Duration(cfg.Thresholds.ReconnectBackoffMS) * time.Millisecond,
				MaxBackoff:           time.Duration(cfg.Thresholds.MaxReconnectBackoffMS) * time.Millisecond,
				MaxReconnectAttempts: cfg.Thresholds.MaxReconnectAttempts,
			},
		})
	}()

	go func() {
		errs <- supervisor.Run(ctx, supervisor.Deps{
			Link:              link,
			Transport:         tr,
			Ring:              buf,
			Ledger:            ledger,
			ReconnectRequests: reconnectRequests,
			CaptureLiveness:   captureLiveness,
			TransmitLiveness:  transmitLiveness,
			Logger:            p.logger,
			Config: supervisor.Config{
				WatchdogTimeout:   time.Duration(cfg.Thresholds.WatchdogTimeoutSec) * time.Second,
				StatsInterval:     time.Duration(cfg.Thresholds.StatsIntervalSec) * time.Second,
				NTPResyncInterval: time.Duration(cfg.TimeSync.ResyncIntervalSec) * time.Second,
			},
		})
	}()

	if p.indicator != nil {
		go watchLinkForIndicator(ctx, link, p.indicator)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errs:
		return err
	}
}

// watchLinkForIndicator polls link state on a 1s cadence and surfaces
// Down/Up transitions through the configured indicator (SPEC_FULL §9).
func watchLinkForIndicator(ctx context.Context, link *netlink.Monitor, ind indicator.Controller) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	wasUp := link.IsConnected()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		nowUp := link.IsConnected()
		if nowUp && !wasUp {
			ind.ShowLinkUp(ctx)
		} else if !nowUp && wasUp {
			ind.ShowLinkDown(ctx)
		}
		wasUp = nowUp
	}
}

// osExit is a seam for tests; production code never overrides it.
var osExit = os.Exit

// Package indicator surfaces pipeline link-state transitions to the operator
// via desktop notification and an optional sound cue (SPEC_FULL §9),
// standing in for the original firmware's LED_STATUS_PIN GPIO toggle.
package indicator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/config"
)

// Controller is the pipeline-facing indicator contract.
type Controller interface {
	ShowLinkUp(context.Context)
	ShowLinkDown(context.Context)
	ShowFatal(context.Context, string)
	Hide(context.Context)
}

// DesktopIndicator is the concrete indicator implementation: a desktop
// notification plus an optional sound cue (a configured WAV file, or a
// synthesized tone when no file is set or playback fails).
type DesktopIndicator struct {
	cfg      config.IndicatorConfig
	logger   *zap.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
}

// New creates an indicator controller from config.
func New(cfg config.IndicatorConfig, logger *zap.Logger) *DesktopIndicator {
	configureCueFiles(cfg.SoundUpFile, cfg.SoundDownFile, cfg.SoundFatalFile)
	return &DesktopIndicator{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowLinkUp signals a Down→Up transition: an "up" cue and notification.
func (d *DesktopIndicator) ShowLinkUp(ctx context.Context) {
	d.playCue(cueLinkUp)
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyDesktop(ctx, 3000, d.messages.linkUp)
	})
}

// ShowLinkDown signals an Up→Down transition: a "down" cue and notification.
func (d *DesktopIndicator) ShowLinkDown(ctx context.Context) {
	d.playCue(cueLinkDown)
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyDesktop(ctx, 3000, d.messages.linkDown)
	})
}

// ShowFatal signals a fatal condition: a distinct cue and a longer-lived notification.
func (d *DesktopIndicator) ShowFatal(ctx context.Context, text string) {
	d.playCue(cueFatal)
	if !d.cfg.Enable {
		return
	}
	if text == "" {
		text = d.messages.fatalText
	}
	d.run(ctx, func(ctx context.Context) error {
		return d.notifyDesktop(ctx, 10000, text)
	})
}

// Hide dismisses the active indicator surface.
func (d *DesktopIndicator) Hide(ctx context.Context) {
	if !d.cfg.Enable {
		return
	}
	d.run(ctx, d.dismissDesktop)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (d *DesktopIndicator) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	if !strings.EqualFold(strings.TrimSpace(d.cfg.Backend), "desktop") {
		return nil
	}

	d.mu.Lock()
	replaceID := d.desktopNotificationID
	d.mu.Unlock()

	appName := strings.TrimSpace(d.cfg.DesktopAppName)
	if appName == "" {
		appName = "audiostreamer"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.desktopNotificationID = id
	d.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (d *DesktopIndicator) dismissDesktop(ctx context.Context) error {
	if !strings.EqualFold(strings.TrimSpace(d.cfg.Backend), "desktop") {
		return nil
	}

	d.mu.Lock()
	id := d.desktopNotificationID
	d.desktopNotificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (d *DesktopIndicator) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		d.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (d *DesktopIndicator) playCue(kind cueKind) {
	if !d.cfg.SoundEnable {
		return
	}
	go func() {
		d.soundMu.Lock()
		defer d.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			d.log("indicator audio cue failed", err)
		}
	}()
}

// log emits indicator failures to the runtime logger at debug level.
func (d *DesktopIndicator) log(message string, err error) {
	if d.logger == nil || err == nil {
		return
	}
	d.logger.Debug(message, zap.Error(err))
}

package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/sarpel/audiostreamer/internal/capture"
	"github.com/sarpel/audiostreamer/internal/cli"
	"github.com/sarpel/audiostreamer/internal/config"
	"github.com/sarpel/audiostreamer/internal/doctor"
	"github.com/sarpel/audiostreamer/internal/indicator"
	"github.com/sarpel/audiostreamer/internal/kvstore"
	"github.com/sarpel/audiostreamer/internal/logging"
	"github.com/sarpel/audiostreamer/internal/pipeline"
	"github.com/sarpel/audiostreamer/internal/version"
)

// Runner holds process-level dependencies used by command handlers.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// Execute is the package entrypoint used by cmd/audiostreamer/main.go.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses CLI arguments, loads config/logging, and dispatches a command.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("audiostreamer"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("audiostreamer"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", zap.Error(err))
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", zap.Int("line", w.Line), zap.String("message", w.Message))
	}

	logger.Info("command start",
		zap.String("command", string(parsed.Command)),
		zap.String("config", cfgLoaded.Path),
		zap.String("log", logRuntime.Path),
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// commandDoctor runs readiness checks and prints the report.
func (r Runner) commandDoctor(ctx context.Context, cfgLoaded config.Loaded) int {
	report := doctor.Run(ctx, cfgLoaded)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

// commandDevices prints discovered Pulse capture sources.
func (r Runner) commandDevices(ctx context.Context) int {
	sources, err := capture.ListSources(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintln(r.Stdout, "no audio sources found")
		return 1
	}

	for _, source := range sources {
		defaultMark := " "
		if source.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !source.Available {
			availability = "no"
		}
		muted := "no"
		if source.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			source.ID,
			source.Description,
			source.State,
			availability,
			muted,
		)
	}

	return 0
}

// commandRun opens the persistent store, builds an indicator controller, and
// blocks running the capture/transmit/supervisor pipeline until ctx is
// canceled or an unrecoverable error occurs.
func (r Runner) commandRun(ctx context.Context, cfgLoaded config.Loaded, logger *zap.Logger) int {
	store, err := kvstore.Open(cfgLoaded.Config.KVStore.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: open kvstore: %v\n", err)
		return 1
	}

	var ind indicator.Controller
	if cfgLoaded.Config.Indicator.Enable {
		ind = indicator.New(cfgLoaded.Config.Indicator, logger)
	}

	p := pipeline.New(cfgLoaded.Config, logger, store, ind)
	if err := p.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("pipeline stopped", zap.Error(err))
		return 1
	}
	return 0
}

// Package logging configures rotated, structured JSON logging output.
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB   = 50
	maxBackups  = 5
	maxAgeDays  = 28
	compressOld = true
)

// Runtime bundles the configured logger and its rotation sink lifecycle.
type Runtime struct {
	Logger *zap.Logger
	Path   string
	hook   *lumberjack.Logger
}

// Close flushes buffered log entries and closes the rotation sink.
func (r Runtime) Close() error {
	_ = r.Logger.Sync()
	if r.hook == nil {
		return nil
	}
	return r.hook.Close()
}

// New builds a JSON logger writing rotated files under the resolved state path.
func New() (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	hook := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   compressOld,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(hook),
		zapcore.InfoLevel,
	)

	logger := zap.New(core)
	return Runtime{Logger: logger, Path: path, hook: hook}, nil
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "audiostreamer", "log.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "audiostreamer", "log.jsonl"), nil
}

package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sarpel/audiostreamer/internal/config"
)

func TestShowLinkUpAndLinkDownDispatchDesktopNotification(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	installBusctlStub(t, argsFile, `
echo 'u 7'
`)

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.SoundEnable = false

	ind := New(cfg, nil)
	ind.ShowLinkUp(context.Background())
	ind.ShowLinkDown(context.Background())
	ind.Hide(context.Background())

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "Audio link connected")
	require.Contains(t, lines[1], "Audio link lost")
	require.Contains(t, lines[2], "CloseNotification")
}

func TestShowFatalUsesProvidedTextOverDefault(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	installBusctlStub(t, argsFile, `
echo 'u 3'
`)

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.SoundEnable = false

	ind := New(cfg, nil)
	ind.ShowFatal(context.Background(), "disk full")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), "disk full")
}

func TestDisabledIndicatorSkipsDesktopDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	installBusctlStub(t, argsFile, `
echo 'u 1'
`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false

	ind := New(cfg, nil)
	ind.ShowLinkUp(context.Background())
	ind.ShowLinkDown(context.Background())
	ind.ShowFatal(context.Background(), "ignored")
	ind.Hide(context.Background())

	_, err := os.Stat(argsFile)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestNonDesktopBackendSkipsNotifyDispatch(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	installBusctlStub(t, argsFile, `
echo 'u 1'
`)

	cfg := config.Default().Indicator
	cfg.Enable = true
	cfg.Backend = "none"
	cfg.SoundEnable = false

	ind := New(cfg, nil)
	ind.ShowLinkUp(context.Background())

	_, err := os.Stat(argsFile)
	require.True(t, os.IsNotExist(err))
}

func installBusctlStub(t *testing.T, argsFile, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "busctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\nprintf '%s\\n' \"$*\" >> \"" + argsFile + "\"\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}

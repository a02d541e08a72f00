package doctor

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sarpel/audiostreamer/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckCollectorReachableSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	check := checkCollectorReachable(context.Background(), config.TransportConfig{Host: host, Port: port})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "reached")
}

func TestCheckCollectorReachableFailsOnEmptyHost(t *testing.T) {
	check := checkCollectorReachable(context.Background(), config.TransportConfig{Host: ""})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "host is empty")
}

func TestCheckCollectorReachableFailsOnUnreachablePort(t *testing.T) {
	check := checkCollectorReachable(context.Background(), config.TransportConfig{Host: "127.0.0.1", Port: 1})
	require.False(t, check.Pass)
}

func TestCheckKVStoreWritableSucceedsOnFreshPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	check := checkKVStoreWritable(config.KVStoreConfig{Path: path})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, path)
}

func TestCheckAudioSourceFailsWithUnreachablePulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSource(context.Background(), config.AudioConfig{Input: "default", SampleRate: 16000, Channels: 1})
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.source")
}

//go:build integration

package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAndReadBlockIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d, err := Open(ctx, Config{Input: "default", SampleRate: 16000, BitWidth: 16, Channels: 1})
	require.NoError(t, err)
	defer d.Close()

	buf := make([]int32, 160)
	n, err := d.ReadBlock(ctx, buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 0)
}

package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReliableSendWritesPackedBytesToListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		received <- buf[:n]
	}()

	addr := listener.Addr().(*net.TCPAddr)
	tr := NewReliable(Config{Host: "127.0.0.1", Port: addr.Port, BitWidth: 16, SendTimeout: time.Second})
	require.NoError(t, tr.Init(context.Background()))
	defer tr.Close()

	require.True(t, tr.IsConnected())
	require.NoError(t, tr.Send(context.Background(), []int32{1 << 16, 2 << 16}))

	select {
	case data := <-received:
		require.Equal(t, []byte{1, 0, 2, 0}, data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for data")
	}
}

func TestReliableSendFailsWhenNotConnected(t *testing.T) {
	tr := NewReliable(Config{Host: "127.0.0.1", Port: 1, BitWidth: 16})
	err := tr.Send(context.Background(), []int32{1})
	require.Error(t, err)
}

func TestReliableReconnectIncrementsCounterAndReestablishes(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	tr := NewReliable(Config{Host: "127.0.0.1", Port: addr.Port, BitWidth: 16})
	require.NoError(t, tr.Init(context.Background()))
	defer tr.Close()

	require.NoError(t, tr.Reconnect(context.Background()))
	require.Equal(t, uint64(1), tr.Stats().Reconnects)
	require.True(t, tr.IsConnected())
}

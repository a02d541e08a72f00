package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// reliableTransport streams raw packed PCM bytes over a TCP connection with
// tuned keepalive and buffer socket options.
type reliableTransport struct {
	cfg Config

	mu   sync.Mutex
	conn *net.TCPConn

	bytesSent  atomic.Uint64
	reconnects atomic.Uint64
}

// NewReliable builds a TCP-backed Transport.
func NewReliable(cfg Config) Transport {
	return &reliableTransport{cfg: cfg}
}

func (t *reliableTransport) Init(ctx context.Context) error {
	return t.dial(ctx)
}

func (t *reliableTransport) dial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.cfg.address())
	if err != nil {
		return err
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return errors.New("transport: dialed connection is not TCP")
	}
	if err := tuneSocket(tcpConn, t.cfg); err != nil {
		tcpConn.Close()
		return err
	}

	t.mu.Lock()
	t.conn = tcpConn
	t.mu.Unlock()
	return nil
}

func (t *reliableTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

func (t *reliableTransport) Send(ctx context.Context, samples []int32) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("transport: not connected")
	}

	payload, err := packSamples(samples, t.cfg.BitWidth)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else if t.cfg.SendTimeout > 0 {
		_ = conn.SetWriteDeadline(deadlineFrom(t.cfg.SendTimeout))
	}

	n, err := conn.Write(payload)
	t.bytesSent.Add(uint64(n))
	return err
}

func (t *reliableTransport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()

	if err := t.dial(ctx); err != nil {
		return err
	}
	t.reconnects.Add(1)
	return nil
}

func (t *reliableTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *reliableTransport) Stats() Stats {
	return Stats{
		BytesSent:  t.bytesSent.Load(),
		Reconnects: t.reconnects.Load(),
	}
}

// tuneSocket applies keepalive and buffer sizing via golang.org/x/sys/unix
// on the connection's raw file descriptor.
func tuneSocket(conn *net.TCPConn, cfg Config) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		ifd := int(fd)
		if sockErr = unix.SetsockoptInt(ifd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); sockErr != nil {
			return
		}
		if cfg.KeepIdle > 0 {
			if sockErr = unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(cfg.KeepIdle.Seconds())); sockErr != nil {
				return
			}
		}
		if cfg.KeepInterval > 0 {
			if sockErr = unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(cfg.KeepInterval.Seconds())); sockErr != nil {
				return
			}
		}
		if cfg.KeepCount > 0 {
			if sockErr = unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, cfg.KeepCount); sockErr != nil {
				return
			}
		}
		if sockErr = unix.SetsockoptInt(ifd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); sockErr != nil {
			return
		}
		if cfg.SendBufferBytes > 0 {
			if sockErr = unix.SetsockoptInt(ifd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBufferBytes); sockErr != nil {
				return
			}
		}
		if cfg.RecvBufferBytes > 0 {
			if sockErr = unix.SetsockoptInt(ifd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBufferBytes); sockErr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Package transport implements the two stream transport variants (spec
// §4.4): a reliable TCP stream and an unreliable UDP datagram stream, behind
// one shared Transport interface.
package transport

import (
	"context"
	"fmt"
	"time"
)

// Config configures either transport variant.
type Config struct {
	Host            string
	Port            int
	BitWidth        int
	KeepIdle        time.Duration
	KeepInterval    time.Duration
	KeepCount       int
	SendTimeout     time.Duration
	SendBufferBytes int
	RecvBufferBytes int
	DatagramTimeout time.Duration
	MaxDatagramSize int
}

// Stats reports cumulative transport-level counters.
type Stats struct {
	BytesSent   uint64
	Reconnects  uint64
	LostPackets uint64
}

// Transport abstracts the wire-level send path so transmittask and the
// supervisor's stats roll-up are agnostic to the chosen protocol.
type Transport interface {
	Init(ctx context.Context) error
	IsConnected() bool
	Send(ctx context.Context, samples []int32) error
	Reconnect(ctx context.Context) error
	Close() error
	Stats() Stats
}

// New constructs the configured Transport variant. protocol is "reliable"
// or "datagram" (validated upstream by internal/config).
func New(protocol string, cfg Config) (Transport, error) {
	switch protocol {
	case "reliable":
		return NewReliable(cfg), nil
	case "datagram":
		return NewDatagram(cfg), nil
	default:
		return nil, fmt.Errorf("transport: unknown protocol %q", protocol)
	}
}

func (c Config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func deadlineFrom(timeout time.Duration) time.Time {
	return time.Now().Add(timeout)
}

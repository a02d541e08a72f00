package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// packetHeaderSize is the fixed 12-byte header prefixed to every datagram
// (spec §6): Seq uint32, TimestampMS uint32, SampleCount uint16, Flags uint16.
const packetHeaderSize = 12

// PacketHeader is the fixed-size datagram header, little-endian on the wire.
type PacketHeader struct {
	Seq         uint32
	TimestampMS uint32
	SampleCount uint16
	Flags       uint16
}

func (h PacketHeader) marshal() []byte {
	buf := make([]byte, packetHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Seq)
	binary.LittleEndian.PutUint32(buf[4:8], h.TimestampMS)
	binary.LittleEndian.PutUint16(buf[8:10], h.SampleCount)
	binary.LittleEndian.PutUint16(buf[10:12], h.Flags)
	return buf
}

// datagramTransport sends each Send call's samples as one or more
// fixed-header-prefixed UDP datagrams (see Send). UDP is unreliable and connectionless: Reconnect simply re-resolves
// the remote address and resets the sequence counter (spec §9 open question).
type datagramTransport struct {
	cfg Config

	mu   sync.Mutex
	conn *net.UDPConn

	seq        atomic.Uint32
	bytesSent  atomic.Uint64
	reconnects atomic.Uint64
	lost       atomic.Uint64
}

// NewDatagram builds a UDP-backed Transport.
func NewDatagram(cfg Config) Transport {
	return &datagramTransport{cfg: cfg}
}

func (t *datagramTransport) Init(ctx context.Context) error {
	return t.dial()
}

func (t *datagramTransport) dial() error {
	addr, err := net.ResolveUDPAddr("udp", t.cfg.address())
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *datagramTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Send splits samples into one or more MTU-safe datagrams, each carrying its
// own header with a strictly increasing Seq, and writes them in order. A
// batch that fits in a single datagram (the common case for small batches)
// is sent as one packet; a larger batch (e.g. a full BatchMaxSamples read)
// is fragmented so every wire datagram stays within MaxDatagramSize. A
// single sample that cannot fit in one datagram even alone (header plus one
// sample already over the limit) fails fast instead of silently truncating.
func (t *datagramTransport) Send(ctx context.Context, samples []int32) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errors.New("transport: not connected")
	}

	chunkSize, err := t.maxSamplesPerDatagram()
	if err != nil {
		t.lost.Add(1)
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else if t.cfg.DatagramTimeout > 0 {
		_ = conn.SetWriteDeadline(deadlineFrom(t.cfg.DatagramTimeout))
	}

	for start := 0; start < len(samples); start += chunkSize {
		end := start + chunkSize
		if end > len(samples) {
			end = len(samples)
		}
		chunk := samples[start:end]

		payload, err := packSamples(chunk, t.cfg.BitWidth)
		if err != nil {
			return err
		}

		var flags uint16
		if end < len(samples) {
			flags = flagContinued
		}
		header := PacketHeader{
			Seq:         t.seq.Add(1) - 1,
			TimestampMS: uint32(time.Now().UnixMilli()),
			SampleCount: uint16(len(chunk)),
			Flags:       flags,
		}
		datagram := append(header.marshal(), payload...)

		n, err := conn.Write(datagram)
		if err != nil {
			t.lost.Add(1)
			return err
		}
		t.bytesSent.Add(uint64(n))
	}

	return nil
}

// flagContinued marks a fragment as followed by more fragments from the same
// batch, distinguishing a mid-batch packet from the batch's final one.
const flagContinued uint16 = 1 << 0

// maxSamplesPerDatagram returns how many samples fit in one MaxDatagramSize
// datagram alongside the fixed header. MaxDatagramSize <= 0 disables the
// limit entirely (one packet per Send call, unfragmented).
func (t *datagramTransport) maxSamplesPerDatagram() (int, error) {
	if t.cfg.MaxDatagramSize <= 0 {
		return math.MaxInt32, nil
	}

	width, err := sampleByteWidth(t.cfg.BitWidth)
	if err != nil {
		return 0, err
	}

	maxPayload := t.cfg.MaxDatagramSize - packetHeaderSize
	if maxPayload < width {
		return 0, errors.New("transport: max datagram size too small to carry even one sample")
	}
	return maxPayload / width, nil
}

func (t *datagramTransport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()

	if err := t.dial(); err != nil {
		return err
	}
	t.seq.Store(0)
	t.reconnects.Add(1)
	return nil
}

func (t *datagramTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *datagramTransport) Stats() Stats {
	return Stats{
		BytesSent:   t.bytesSent.Load(),
		Reconnects:  t.reconnects.Load(),
		LostPackets: t.lost.Load(),
	}
}

// Package capture wraps PulseAudio record streams behind a blocking,
// fixed-block-size driver matching an embedded I2S peripheral's contract.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// defaultBlockTimeout is the wait budget for a ReadBlock call before it
// returns a short read (spec §4.2's 50ms block timeout).
const defaultBlockTimeout = 50 * time.Millisecond

// PinMap mirrors config.PinMap; carried as inert metadata since PulseAudio,
// not bit-banged I2S, owns the transducer on this target.
type PinMap struct {
	BCLK int
	WS   int
	DIN  int
}

// Config describes the capture stream to open.
type Config struct {
	Input      string
	SampleRate int
	BitWidth   int
	Channels   int
	PinMap     PinMap
}

// Stats reports cumulative driver-level counters (spec §4.2).
type Stats struct {
	Overflow  uint64
	Underflow uint64
}

// Driver streams fixed-size blocks of 32-bit "slot" samples from one Pulse
// source, converting native int16 PCM into the high bits of each slot to
// match an INMP441's 24-in-32 convention.
type Driver struct {
	cfg Config

	client *pulse.Client
	stream *pulse.RecordStream

	mu     sync.Mutex
	closed bool

	samples chan int32

	overflow  atomic.Uint64
	underflow atomic.Uint64
}

// Open connects to the PulseAudio server and starts a record stream for the
// configured source, sample rate, and channel count.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.SampleRate <= 0 {
		return nil, errors.New("capture: sample rate must be > 0")
	}

	d := &Driver{cfg: cfg}
	if err := d.connect(); err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = d.Close()
	}()

	return d, nil
}

// connect opens the Pulse client, resolves the configured source, and starts
// a fresh record stream into a new samples channel. Called from Open and
// again from Reinit, which tears down and recreates the stream in place.
func (d *Driver) connect() error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("audiostreamer"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("capture: connect pulse server: %w", err)
	}

	source, err := resolveSource(client, d.cfg.Input)
	if err != nil {
		client.Close()
		return err
	}

	samples := make(chan int32, d.cfg.SampleRate) // ~1s of headroom

	writer := pulse.NewWriter(writerFunc(d.onPCM), pulseproto.FormatInt16LE)
	opts := []pulse.RecordOption{
		pulse.RecordSource(source),
		pulse.RecordSampleRate(uint32(d.cfg.SampleRate)),
		pulse.RecordMediaName("audiostreamer capture"),
	}
	if d.cfg.Channels == 1 {
		opts = append(opts, pulse.RecordMono)
	} else {
		opts = append(opts, pulse.RecordStereo)
	}

	stream, err := client.NewRecord(writer, opts...)
	if err != nil {
		client.Close()
		return fmt.Errorf("capture: create pulse record stream: %w", err)
	}

	d.mu.Lock()
	d.client = client
	d.stream = stream
	d.samples = samples
	d.closed = false
	d.mu.Unlock()

	stream.Start()
	return nil
}

// Reinit tears down the current Pulse connection and record stream and
// opens a fresh one against the same configuration, matching the
// deinit+reinit recovery step after sustained capture failures.
func (d *Driver) Reinit(ctx context.Context) error {
	d.teardown()
	if err := d.connect(); err != nil {
		return fmt.Errorf("capture: reinit: %w", err)
	}
	return nil
}

// teardown stops and releases the current stream/client without marking the
// driver permanently closed, so connect can replace them.
func (d *Driver) teardown() {
	d.mu.Lock()
	stream := d.stream
	client := d.client
	samples := d.samples
	d.stream = nil
	d.client = nil
	d.samples = nil
	d.closed = true
	d.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if client != nil {
		client.Close()
	}
	if samples != nil {
		close(samples)
	}
}

func resolveSource(client *pulse.Client, input string) (*pulse.Source, error) {
	if input == "" || input == "default" {
		source, err := client.DefaultSource()
		if err != nil {
			return nil, fmt.Errorf("capture: resolve default source: %w", err)
		}
		return source, nil
	}
	source, err := client.SourceByID(input)
	if err != nil {
		return nil, fmt.Errorf("capture: resolve source %q: %w", input, err)
	}
	return source, nil
}

// ReadBlock fills buf with up to len(buf) samples, blocking until that many
// are available, ctx is canceled, or the block timeout elapses — whichever
// comes first. It returns the number of samples written, which may be less
// than len(buf) on timeout (an underflow).
func (d *Driver) ReadBlock(ctx context.Context, buf []int32) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	timer := time.NewTimer(defaultBlockTimeout)
	defer timer.Stop()

	n := 0
	for n < len(buf) {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-timer.C:
			d.underflow.Add(1)
			return n, nil
		case s, ok := <-d.samples:
			if !ok {
				if n == 0 {
					return 0, errors.New("capture: stream closed")
				}
				return n, nil
			}
			buf[n] = s
			n++
		}
	}
	return n, nil
}

// Stats returns cumulative overflow/underflow counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Overflow:  d.overflow.Load(),
		Underflow: d.underflow.Load(),
	}
}

// Close stops the stream and releases the Pulse client connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.stream != nil {
		d.stream.Stop()
		d.stream.Close()
	}
	if d.client != nil {
		d.client.Close()
	}
	close(d.samples)
	return nil
}

// onPCM converts incoming little-endian int16 frames into 32-bit slots
// (sample left-shifted 16 bits into the high word) and enqueues them,
// dropping and counting overflow when the internal channel is full.
func (d *Driver) onPCM(buffer []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return len(buffer), nil
	}
	d.mu.Unlock()

	for i := 0; i+1 < len(buffer); i += 2 {
		raw := int16(uint16(buffer[i]) | uint16(buffer[i+1])<<8)
		slot := int32(raw) << 16

		select {
		case d.samples <- slot:
		default:
			d.overflow.Add(1)
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

package indicator

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

// cueKind identifies each link-transition cue event (SPEC_FULL §9).
type cueKind int

const (
	cueLinkUp cueKind = iota + 1
	cueLinkDown
	cueFatal
)

const cueSampleRate = 16000

// toneSpec describes one synthesized cue tone segment.
type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

// cueFiles holds the operator-configured WAV path for each cue kind, set by
// configureCueFiles from config.IndicatorConfig at indicator construction.
// Package-level because emitCue runs from a detached goroutine.
var (
	cueFileMu sync.RWMutex
	cueFiles  = map[cueKind]string{}
)

// configureCueFiles records the configured WAV paths for each cue kind. An
// empty path leaves that kind on the synthesized-tone fallback.
func configureCueFiles(up, down, fatal string) {
	cueFileMu.Lock()
	defer cueFileMu.Unlock()
	cueFiles = map[cueKind]string{
		cueLinkUp:   up,
		cueLinkDown: down,
		cueFatal:    fatal,
	}
}

func cueFilePath(kind cueKind) string {
	cueFileMu.RLock()
	defer cueFileMu.RUnlock()
	return cueFiles[kind]
}

var (
	linkUpCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	})
	linkDownCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	})
	fatalCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 480, duration: 90 * time.Millisecond, volume: 0.22},
		{frequencyHz: 360, duration: 120 * time.Millisecond, volume: 0.22},
		{frequencyHz: 240, duration: 150 * time.Millisecond, volume: 0.22},
	})
)

// emitCue plays an operator-supplied WAV file when one is configured for
// this cue kind, falling back to a synthesized tone when no file is
// configured or the file fails to play.
func emitCue(kind cueKind) error {
	if path := cueFilePath(kind); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := playCueData(context.Background(), data); err == nil {
				return nil
			}
		}
	}

	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return playSynthCue(samples)
}

// playCueData plays a WAV payload read from disk through pw-play.
func playCueData(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("cue file payload is empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "pw-play", "--media-role", "Notification", "-")
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play cue file: %w", err)
	}
	return nil
}

// playSynthCue streams synthesized PCM samples through Pulse playback.
func playSynthCue(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("audiostreamer"),
		pulse.ClientApplicationIconName("network-transmit-receive"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("audiostreamer link cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}

	return nil
}

// cueSamples returns the synthesized PCM table for one cue kind.
func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueLinkUp:
		return linkUpCuePCM
	case cueLinkDown:
		return linkDownCuePCM
	case cueFatal:
		return fatalCuePCM
	default:
		return nil
	}
}

// synthesizeCue concatenates one or more tone segments with short silence gaps.
func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gapSamples := samplesForDuration(22 * time.Millisecond)
	total := 0
	for i, part := range parts {
		total += samplesForDuration(part.duration)
		if i < len(parts)-1 {
			total += gapSamples
		}
	}

	pcm := make([]int16, 0, total)
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 && gapSamples > 0 {
			pcm = append(pcm, make([]int16, gapSamples)...)
		}
	}

	return pcm
}

// synthesizeTone creates one windowed sine-wave segment.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	attackRelease := n / 10
	maxRamp := cueSampleRate / 200 // 5ms
	if attackRelease > maxRamp {
		attackRelease = maxRamp
	}
	if attackRelease < 1 {
		attackRelease = 1
	}

	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		envelope := 1.0
		if i < attackRelease {
			envelope = float64(i) / float64(attackRelease)
		}
		releaseIndex := n - i - 1
		if releaseIndex < attackRelease {
			release := float64(releaseIndex) / float64(attackRelease)
			if release < envelope {
				envelope = release
			}
		}
		t := float64(i) / cueSampleRate
		sample := math.Sin(2 * math.Pi * spec.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * spec.volume * envelope * 32767))
	}

	return pcm
}

// samplesForDuration converts a time duration into cue sample count.
func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}

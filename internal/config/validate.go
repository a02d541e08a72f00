package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Audio.BitWidth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("audio.bit_width must be one of: 8, 16, 24, 32")
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.Channels <= 0 {
		return nil, fmt.Errorf("audio.channels must be > 0")
	}
	if cfg.Audio.BlockSize <= 0 {
		return nil, fmt.Errorf("audio.block_size must be > 0")
	}
	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}

	if cfg.Buffer.CapacityBytes <= 0 {
		return nil, fmt.Errorf("buffer.capacity_bytes must be > 0")
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Transport.Protocol))
	if protocol != "reliable" && protocol != "datagram" {
		return nil, fmt.Errorf("transport.protocol must be one of: reliable, datagram")
	}
	if strings.TrimSpace(cfg.Transport.Host) == "" {
		return nil, fmt.Errorf("transport.host must not be empty")
	}
	if cfg.Transport.Port <= 0 || cfg.Transport.Port > 65535 {
		return nil, fmt.Errorf("transport.port must be in 1..65535")
	}
	if cfg.Transport.SendTimeoutMS <= 0 {
		return nil, fmt.Errorf("transport.send_timeout_ms must be > 0")
	}
	if protocol == "datagram" && cfg.Transport.MaxDatagramSize <= 0 {
		return nil, fmt.Errorf("transport.max_datagram_size must be > 0 for datagram protocol")
	}
	if cfg.Transport.MaxDatagramSize > 1472 {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("transport.max_datagram_size=%d exceeds the typical Ethernet-safe MTU of 1472; fragmentation is possible", cfg.Transport.MaxDatagramSize),
		})
	}

	if strings.TrimSpace(cfg.TimeSync.NTPServer) == "" {
		return nil, fmt.Errorf("time_sync.ntp_server must not be empty")
	}
	if cfg.TimeSync.ResyncIntervalSec <= 0 {
		return nil, fmt.Errorf("time_sync.resync_interval_sec must be > 0")
	}
	if cfg.TimeSync.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("time_sync.dial_timeout_ms must be > 0")
	}

	if cfg.Thresholds.MaxCaptureFailures <= 0 {
		return nil, fmt.Errorf("thresholds.max_capture_failures must be > 0")
	}
	if cfg.Thresholds.MaxBufferOverflows <= 0 {
		return nil, fmt.Errorf("thresholds.max_buffer_overflows must be > 0")
	}
	if cfg.Thresholds.OverflowCooldownMS < 0 {
		return nil, fmt.Errorf("thresholds.overflow_cooldown_ms must be >= 0")
	}
	if cfg.Thresholds.MaxReconnectAttempts <= 0 {
		return nil, fmt.Errorf("thresholds.max_reconnect_attempts must be > 0")
	}
	if cfg.Thresholds.ReconnectBackoffMS <= 0 {
		return nil, fmt.Errorf("thresholds.reconnect_backoff_ms must be > 0")
	}
	if cfg.Thresholds.MaxReconnectBackoffMS < cfg.Thresholds.ReconnectBackoffMS {
		return nil, fmt.Errorf("thresholds.max_reconnect_backoff_ms must be >= reconnect_backoff_ms")
	}
	if cfg.Thresholds.MaxDisconnects <= 0 {
		return nil, fmt.Errorf("thresholds.max_disconnects must be > 0")
	}
	if cfg.Thresholds.WatchdogTimeoutSec <= 0 {
		return nil, fmt.Errorf("thresholds.watchdog_timeout_sec must be > 0")
	}
	if cfg.Thresholds.StatsIntervalSec <= 0 {
		return nil, fmt.Errorf("thresholds.stats_interval_sec must be > 0")
	}
	if cfg.Thresholds.LowHeapBytes < 0 {
		return nil, fmt.Errorf("thresholds.low_heap_bytes must be >= 0")
	}

	if cfg.Indicator.Enable {
		backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
		if backend != "desktop" && backend != "none" {
			return nil, fmt.Errorf("indicator.backend must be one of: desktop, none")
		}
		if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
			return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
		}
		if cfg.Indicator.SoundEnable {
			if strings.TrimSpace(cfg.Indicator.SoundUpFile) == "" ||
				strings.TrimSpace(cfg.Indicator.SoundDownFile) == "" ||
				strings.TrimSpace(cfg.Indicator.SoundFatalFile) == "" {
				warnings = append(warnings, Warning{
					Message: "indicator.sound_enable=true but one or more sound files are unset; affected cues play a synthesized tone",
				})
			}
		}
	}

	return warnings, nil
}

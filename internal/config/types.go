// Package config resolves, parses, validates, and defaults audiostreamer configuration.
package config

// Config is the fully materialized runtime configuration used by the
// pipeline. It is the typed snapshot the core consumes at startup, read by
// Load from the YAML config file (internal/kvstore holds only the last-fatal
// record); schema evolution happens upstream of this package.
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Buffer     BufferConfig     `yaml:"buffer"`
	Transport  TransportConfig  `yaml:"transport"`
	TimeSync   TimeSyncConfig   `yaml:"time_sync"`
	Tasks      TasksConfig      `yaml:"tasks"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Indicator  IndicatorConfig  `yaml:"indicator"`
	Reboot     RebootConfig     `yaml:"reboot"`
	KVStore    KVStoreConfig    `yaml:"kvstore"`
}

// AudioConfig describes the capture peripheral contract (spec §4.2, §6).
type AudioConfig struct {
	Input      string `yaml:"input"` // PulseAudio source name, or "default"
	SampleRate int    `yaml:"sample_rate"`
	BitWidth   int    `yaml:"bit_width"` // 8, 16, 24, or 32
	Channels   int    `yaml:"channels"`
	BlockSize  int    `yaml:"block_size"` // samples per capture block
	PinMap     PinMap `yaml:"pin_map"`
}

// PinMap is the hardware peripheral pin contract (spec §6): three GPIO
// numbers carried as inert metadata since capture goes through PulseAudio,
// not bit-banged I2S, on this target.
type PinMap struct {
	BCLK int `yaml:"bclk"`
	WS   int `yaml:"ws"`
	DIN  int `yaml:"din"`
}

// BufferConfig sizes the ring buffer (spec §4.1).
type BufferConfig struct {
	CapacityBytes int `yaml:"capacity_bytes"`
}

// TransportConfig selects and configures the stream transport (spec §4.4).
type TransportConfig struct {
	Protocol        string `yaml:"protocol"` // "reliable" or "datagram"
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	KeepIdleSec     int    `yaml:"keepalive_idle_sec"`
	KeepIntervalSec int    `yaml:"keepalive_interval_sec"`
	KeepCount       int    `yaml:"keepalive_count"`
	SendTimeoutMS   int    `yaml:"send_timeout_ms"`
	SendBufferBytes int    `yaml:"send_buffer_bytes"`
	RecvBufferBytes int    `yaml:"recv_buffer_bytes"`
	DatagramSendMS  int    `yaml:"datagram_send_timeout_ms"`
	MaxDatagramSize int    `yaml:"max_datagram_size"`
}

// TimeSyncConfig controls best-effort wall-clock synchronization (spec §4.3).
type TimeSyncConfig struct {
	NTPServer         string `yaml:"ntp_server"`
	ResyncIntervalSec int    `yaml:"resync_interval_sec"`
	DialTimeoutMS     int    `yaml:"dial_timeout_ms"`
}

// TasksConfig carries scheduling hints (spec §4.5-§4.7); Go's scheduler has
// no direct analog for priority/core pinning, so these are advisory and
// logged, not enforced beyond the capture goroutine's OS-thread lock.
type TasksConfig struct {
	CapturePriority    int `yaml:"capture_priority"`
	CaptureCore        int `yaml:"capture_core"`
	TransmitPriority   int `yaml:"transmit_priority"`
	TransmitCore       int `yaml:"transmit_core"`
	SupervisorPriority int `yaml:"supervisor_priority"`
	SupervisorCore     int `yaml:"supervisor_core"`
}

// ThresholdsConfig carries every named constant from spec §7/§8's error and
// recovery thresholds.
type ThresholdsConfig struct {
	MaxCaptureFailures    int `yaml:"max_capture_failures"`
	MaxBufferOverflows    int `yaml:"max_buffer_overflows"`
	OverflowCooldownMS    int `yaml:"overflow_cooldown_ms"`
	MaxReconnectAttempts  int `yaml:"max_reconnect_attempts"`
	ReconnectBackoffMS    int `yaml:"reconnect_backoff_ms"`
	MaxReconnectBackoffMS int `yaml:"max_reconnect_backoff_ms"`
	MaxDisconnects        int `yaml:"max_disconnects"`
	WatchdogTimeoutSec    int `yaml:"watchdog_timeout_sec"`
	StatsIntervalSec      int `yaml:"stats_interval_sec"`
	LowHeapBytes          int `yaml:"low_heap_bytes"`
}

// IndicatorConfig controls the operator-visible status cue (SPEC_FULL §9).
type IndicatorConfig struct {
	Enable         bool   `yaml:"enable"`
	Backend        string `yaml:"backend"` // "desktop" or "none"
	DesktopAppName string `yaml:"desktop_app_name"`
	SoundEnable    bool   `yaml:"sound_enable"`
	SoundUpFile    string `yaml:"sound_up_file"`
	SoundDownFile  string `yaml:"sound_down_file"`
	SoundFatalFile string `yaml:"sound_fatal_file"`
}

// RebootConfig gates the supervisor escalation signal (spec §6, §7).
type RebootConfig struct {
	AutoReboot          bool `yaml:"auto_reboot"`
	EnableCaptureReinit bool `yaml:"enable_capture_reinit"`
	EnableBufferDrain   bool `yaml:"enable_buffer_drain"`
}

// KVStoreConfig points at the persistent key/value store boundary (spec §6).
type KVStoreConfig struct {
	Path string `yaml:"path"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

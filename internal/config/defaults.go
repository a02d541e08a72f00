package config

// Default returns the canonical runtime configuration used when no file is
// present. Threshold values mirror original_source/src/config.h's constants
// (RING_BUFFER_SIZE, MAX_RECONNECT_ATTEMPTS, RECONNECT_BACKOFF_MS, etc.).
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Input:      "default",
			SampleRate: 16000,
			BitWidth:   16,
			Channels:   1,
			BlockSize:  256,
			PinMap:     PinMap{BCLK: 2, WS: 3, DIN: 1},
		},
		Buffer: BufferConfig{
			CapacityBytes: 48 * 1024,
		},
		Transport: TransportConfig{
			Protocol:        "reliable",
			Host:            "127.0.0.1",
			Port:            9000,
			KeepIdleSec:     30,
			KeepIntervalSec: 5,
			KeepCount:       3,
			SendTimeoutMS:   5000,
			SendBufferBytes: 32 * 1024,
			RecvBufferBytes: 32 * 1024,
			DatagramSendMS:  100,
			MaxDatagramSize: 1472,
		},
		TimeSync: TimeSyncConfig{
			NTPServer:         "pool.ntp.org",
			ResyncIntervalSec: 3600,
			DialTimeoutMS:     3000,
		},
		Tasks: TasksConfig{
			CapturePriority:    10,
			CaptureCore:        1,
			TransmitPriority:   8,
			TransmitCore:       0,
			SupervisorPriority: 1,
			SupervisorCore:     0,
		},
		Thresholds: ThresholdsConfig{
			MaxCaptureFailures:    100,
			MaxBufferOverflows:    20,
			OverflowCooldownMS:    5000,
			MaxReconnectAttempts:  10,
			ReconnectBackoffMS:    1000,
			MaxReconnectBackoffMS: 30000,
			MaxDisconnects:        20,
			WatchdogTimeoutSec:    60,
			StatsIntervalSec:      10,
			LowHeapBytes:          20 * 1024,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "audiostreamer",
			SoundEnable:    false,
		},
		Reboot: RebootConfig{
			AutoReboot:          true,
			EnableCaptureReinit: true,
			EnableBufferDrain:   true,
		},
		KVStore: KVStoreConfig{
			Path: "", // resolved via XDG state dir when empty, see kvstore.Open
		},
	}
}

package audioio

import (
	"fmt"
	"log/slog"
)

// SourceFactory creates a microphone Source. The translator calls it once per
// session so that a fresh device is acquired on every connect.
type SourceFactory func(cfg Config, logger *slog.Logger) (Source, error)

// SinkFactory creates a speaker Sink, and with it a fresh playback Context.
type SinkFactory func(cfg Config, logger *slog.Logger) (Sink, error)

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"frame_ms", cfg.FrameDuration().Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendWAV:
		return NewWAVSource(cfg, logger), nil
	case BackendDevice:
		return newDeviceSource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
// A wav source pairs with a mock sink since there is no file output.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if cfg.Backend == BackendWAV {
		cfg.Backend = BackendMock
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = detectBestBackend()
	}

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	switch backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendDevice:
		return newDeviceSink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// detectBestBackend returns the best available backend for this build.
func detectBestBackend() Backend {
	if deviceAvailable {
		return BackendDevice
	}
	return BackendMock
}

// AvailableBackends returns the list of backends available in this build.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock, BackendWAV}
	if deviceAvailable {
		backends = append(backends, BackendDevice)
	}
	return backends
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoBackendAvailable = errors.New("no capture backend available")

// Config describes one fixed-length microphone recording written as mono
// 16-bit PCM WAV.
type Config struct {
	OutputPath string
	Duration   time.Duration
	SampleRate int
	Input      string
	Format     string
	Logger     *zap.Logger
}

func (c Config) validate() error {
	if strings.TrimSpace(c.OutputPath) == "" {
		return errors.New("output path is required")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("capture duration must be positive, got %s", c.Duration)
	}
	return nil
}

type Backend interface {
	Name() string
	Available() bool
	Record(ctx context.Context, cfg Config) error
}

func DefaultBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{pipewireBackend{}, arecordBackend{}, ffmpegBackend{goos: goos}}
	case "darwin":
		return []Backend{ffmpegBackend{goos: goos}}
	default:
		return nil
	}
}

// SelectBackend returns preferred when it is named and available, otherwise
// the first available backend in priority order.
func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() != preferred {
				continue
			}
			if !backend.Available() {
				return nil, fmt.Errorf("requested backend %q is not available", preferred)
			}
			return backend, nil
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}
	return nil, ErrNoBackendAvailable
}

// Recorder captures clips into a scratch directory and hands them back as
// in-memory sample buffers.
type Recorder struct {
	Backend    Backend
	ScratchDir string
	SampleRate int
	Input      string
	Logger     *zap.Logger
}

func NewRecorder(preferred, scratchDir string, sampleRate int, logger *zap.Logger) (*Recorder, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	backend, err := SelectBackend(backends, preferred)
	if err != nil {
		return nil, err
	}
	return &Recorder{Backend: backend, ScratchDir: scratchDir, SampleRate: sampleRate, Logger: logger}, nil
}

// Clip records for d and returns the decoded samples. The intermediate WAV
// file never outlives the call.
func (r *Recorder) Clip(ctx context.Context, d time.Duration) (audio.Asset, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := r.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return audio.Asset{}, fmt.Errorf("create capture directory: %w", err)
	}

	path := filepath.Join(dir, "capture-"+uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove capture file", zap.String("path", path), zap.Error(err))
		}
	}()

	cfg := Config{OutputPath: path, Duration: d, SampleRate: defaultSampleRate(r.SampleRate), Input: r.Input, Logger: logger}
	logger.Debug("capturing audio", zap.String("backend", r.Backend.Name()), zap.Duration("duration", d))
	if err := r.Backend.Record(ctx, cfg); err != nil {
		return audio.Asset{}, fmt.Errorf("%s: %w", r.Backend.Name(), err)
	}

	samples, rate, err := audio.ReadWAVSamples(path)
	if err != nil {
		return audio.Asset{}, fmt.Errorf("read captured audio: %w", err)
	}
	return audio.Asset{Samples: samples, SampleRate: rate}, nil
}

func defaultSampleRate(value int) int {
	if value <= 0 {
		return 16000
	}
	return value
}

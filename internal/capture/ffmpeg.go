package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

type inputCandidate struct {
	format string
	input  string
}

// ffmpegBackend records through PulseAudio or ALSA on Linux and
// AVFoundation on macOS.
type ffmpegBackend struct {
	goos string
}

func (ffmpegBackend) Name() string {
	return "ffmpeg"
}

func (ffmpegBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

func (b ffmpegBackend) candidates(cfg Config) []inputCandidate {
	if cfg.Format != "" {
		input := cfg.Input
		if input == "" {
			input = "default"
		}
		return []inputCandidate{{format: cfg.Format, input: input}}
	}

	if b.goos == "darwin" {
		input := cfg.Input
		if input == "" {
			input = ":0"
		}
		return []inputCandidate{{format: "avfoundation", input: input}}
	}

	input := cfg.Input
	if input == "" {
		input = "default"
	}
	return []inputCandidate{{format: "pulse", input: input}, {format: "alsa", input: input}}
}

func (b ffmpegBackend) Record(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return err
	}

	var errs []error
	for _, candidate := range b.candidates(cfg) {
		args := []string{
			"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
			"-f", candidate.format, "-i", candidate.input,
			"-t", durationSeconds(cfg.Duration),
			"-ac", "1",
			"-ar", strconv.Itoa(defaultSampleRate(cfg.SampleRate)),
			"-c:a", "pcm_s16le",
			cfg.OutputPath,
		}

		cmd := exec.Command("ffmpeg", args...)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr

		err := runTimedCommand(ctx, cmd, cfg.Duration, cfg.Logger)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		errs = append(errs, fmt.Errorf("ffmpeg (%s/%s): %w", candidate.format, candidate.input, err))
	}

	return errors.Join(errs...)
}

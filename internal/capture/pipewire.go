package capture

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// pipewireBackend records through pw-record. It has no duration flag, so the
// timed runner interrupts it once the clip is long enough.
type pipewireBackend struct{}

func (pipewireBackend) Name() string {
	return "pw-record"
}

func (pipewireBackend) Available() bool {
	return commandAvailable("pw-record")
}

func (pipewireBackend) Record(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return err
	}

	args := []string{"--rate", strconv.Itoa(defaultSampleRate(cfg.SampleRate)), "--channels", "1", "--format", "s16"}
	if cfg.Input != "" {
		args = append(args, "--target", cfg.Input)
	}
	args = append(args, cfg.OutputPath)

	cmd := exec.Command("pw-record", args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return runTimedCommand(ctx, cmd, cfg.Duration, cfg.Logger)
}

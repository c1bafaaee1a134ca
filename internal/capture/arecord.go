package capture

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

type arecordBackend struct{}

func (arecordBackend) Name() string {
	return "arecord"
}

func (arecordBackend) Available() bool {
	return commandAvailable("arecord")
}

func (arecordBackend) Record(ctx context.Context, cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil {
		return err
	}

	args := []string{"-q", "-d", durationSeconds(cfg.Duration), "-f", "S16_LE", "-r", strconv.Itoa(defaultSampleRate(cfg.SampleRate)), "-c", "1"}
	if cfg.Input != "" {
		args = append(args, "-D", cfg.Input)
	}
	args = append(args, cfg.OutputPath)

	cmd := exec.Command("arecord", args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return runTimedCommand(ctx, cmd, cfg.Duration, cfg.Logger)
}

package capture

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// stopGrace bounds how long a recorder may take to flush its file after the
// interrupt before it is killed.
var stopGrace = 500 * time.Millisecond

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func durationSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return strconv.Itoa(max(secs, 1))
}

// runTimedCommand lets cmd record for duration, then interrupts it so the
// recorder can finalize its output. Context cancellation interrupts early and
// is reported as the context error.
func runTimedCommand(ctx context.Context, cmd *exec.Cmd, duration time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		sent := cmd.Process.Signal(os.Interrupt) == nil
		err := stop(cmd, done, logger)
		if err == nil || sent || stoppedBySignal(err, logger) {
			return nil
		}
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		_ = stop(cmd, done, logger)
		return ctx.Err()
	}
}

func stop(cmd *exec.Cmd, done <-chan error, logger *zap.Logger) error {
	grace := time.NewTimer(stopGrace)
	defer grace.Stop()

	select {
	case err := <-done:
		return err
	case <-grace.C:
		logger.Debug("recorder ignored interrupt; killing", zap.Int("pid", cmd.Process.Pid))
		_ = cmd.Process.Kill()
		return <-done
	}
}

func stoppedBySignal(err error, logger *zap.Logger) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return false
	}
	logger.Debug("recording process stopped by signal", zap.String("signal", status.Signal().String()))
	return true
}

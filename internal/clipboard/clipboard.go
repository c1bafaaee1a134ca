package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("no clipboard command available")

const defaultTimeout = 4 * time.Second

type commandSpec struct {
	name     string
	args     []string
	detached bool
}

// Copier pipes text into the platform clipboard tool.
type Copier struct {
	GOOS     string
	LookPath func(string) (string, error)
	Timeout  time.Duration
}

func New() *Copier {
	return &Copier{GOOS: runtime.GOOS, LookPath: exec.LookPath, Timeout: defaultTimeout}
}

// CopyText copies value using the tool available on the current system.
func CopyText(ctx context.Context, value string) error {
	return New().Copy(ctx, value)
}

func (c *Copier) Copy(ctx context.Context, value string) error {
	spec, err := c.detect()
	if err != nil {
		return err
	}
	if spec.detached {
		return copyDetached(spec, value)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	copyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, spec.name, spec.args...)
	cmd.Stdin = strings.NewReader(value)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return fmt.Errorf("copy to clipboard with %s: %w", spec.name, err)
	}
	return nil
}

func (c *Copier) detect() (commandSpec, error) {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	candidates := []commandSpec{
		{name: "wl-copy"},
		// xclip keeps running to own the selection.
		{name: "xclip", args: []string{"-selection", "clipboard", "-in", "-silent"}, detached: true},
	}
	if c.GOOS == "darwin" {
		candidates = []commandSpec{{name: "pbcopy"}}
	}

	for _, spec := range candidates {
		if _, err := lookPath(spec.name); err == nil {
			return spec, nil
		}
	}
	return commandSpec{}, ErrUnavailable
}

func copyDetached(spec commandSpec, value string) error {
	cmd := exec.Command(spec.name, spec.args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open clipboard stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start %s: %w", spec.name, err)
	}

	if _, err := io.WriteString(stdin, value); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return fmt.Errorf("write clipboard data: %w", err)
	}
	if err := stdin.Close(); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("close clipboard stdin: %w", err)
	}

	return cmd.Process.Release()
}

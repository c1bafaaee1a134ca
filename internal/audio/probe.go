package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
)

type Info struct {
	Size     int64
	Duration time.Duration
	Format   Format
}

type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// FileProber reads WAV durations from the header and asks ffprobe for
// everything else.
type FileProber struct {
	FFprobePath string
}

func NewFileProber() *FileProber {
	return &FileProber{FFprobePath: "ffprobe"}
}

func (p *FileProber) Probe(ctx context.Context, path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: stat %s: %v", ErrDecode, path, err)
	}
	if stat.IsDir() {
		return Info{}, fmt.Errorf("%w: %s is a directory", ErrDecode, path)
	}

	format, err := DetectFormat(path)
	if err != nil {
		return Info{}, err
	}

	info := Info{Size: stat.Size(), Format: format}
	if format == FormatWAV {
		info.Duration, err = wavDuration(path)
	} else {
		info.Duration, err = p.ffprobeDuration(ctx, path)
	}
	if err != nil {
		return Info{}, err
	}

	return info, nil
}

func wavDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open wav: %v", ErrDecode, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return 0, fmt.Errorf("%w: %w", ErrDecode, ErrInvalidWAV)
	}

	d, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: wav duration: %v", ErrDecode, err)
	}
	return d, nil
}

func (p *FileProber) ffprobeDuration(ctx context.Context, path string) (time.Duration, error) {
	bin := p.FFprobePath
	if bin == "" {
		bin = "ffprobe"
	}

	args := []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path}
	out, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDecode, bin, err)
	}

	return parseProbeDuration(string(out))
}

func parseProbeDuration(output string) (time.Duration, error) {
	value := strings.TrimSpace(output)
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse duration %q: %v", ErrDecode, value, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("%w: invalid duration %v", ErrDecode, seconds)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

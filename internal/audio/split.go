package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Segment is a contiguous time slice of a larger asset. Index defines the
// reassembly order.
type Segment struct {
	Index     int
	Path      string
	Start     time.Duration
	End       time.Duration
	Temporary bool
}

func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

const (
	// DefaultSegmentKbps is the MP3 bitrate segments are encoded at unless the
	// source is leaner.
	DefaultSegmentKbps = 128
	minSegmentKbps     = 8

	// MinTailLength is the shortest final segment the splitter emits. Shorter
	// remainders are folded into the previous segment.
	MinTailLength = 500 * time.Millisecond
)

// Encoder materializes the [start, start+length) slice of src into dst.
// maxKbps caps the output bitrate; 0 leaves the encoder default.
type Encoder interface {
	Extract(ctx context.Context, src, dst string, start, length time.Duration, maxKbps int) error
}

// FFmpegEncoder writes mono MP3 slices.
type FFmpegEncoder struct {
	Path string
	Kbps int
}

func NewFFmpegEncoder() *FFmpegEncoder {
	return &FFmpegEncoder{Path: "ffmpeg", Kbps: DefaultSegmentKbps}
}

func (e *FFmpegEncoder) Extract(ctx context.Context, src, dst string, start, length time.Duration, maxKbps int) error {
	bin := e.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	kbps := e.Kbps
	if kbps <= 0 {
		kbps = DefaultSegmentKbps
	}
	if maxKbps > 0 {
		kbps = max(min(kbps, maxKbps), minSegmentKbps)
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", src,
		"-vn", "-ac", "1",
		"-c:a", "libmp3lame", "-b:a", strconv.Itoa(kbps) + "k",
		dst,
	}

	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("ffmpeg extract %s: %w (%s)", filepath.Base(dst), err, msg)
		}
		return fmt.Errorf("ffmpeg extract %s: %w", filepath.Base(dst), err)
	}
	return nil
}

type Splitter struct {
	Prober  Prober
	Encoder Encoder
	Logger  *zap.Logger
}

func NewSplitter(prober Prober, encoder Encoder, logger *zap.Logger) *Splitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{Prober: prober, Encoder: encoder, Logger: logger}
}

// Split divides the asset at path into segments no larger than maxChunkBytes,
// estimated proportionally from the asset's byte rate. Segment files are
// written to scratchDir; an asset already within budget comes back as a
// single segment pointing at path itself.
func (s *Splitter) Split(ctx context.Context, path string, maxChunkBytes int64, scratchDir string) ([]Segment, error) {
	if maxChunkBytes <= 0 {
		return nil, fmt.Errorf("max chunk bytes must be positive, got %d", maxChunkBytes)
	}

	info, err := s.Prober.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if info.Size <= maxChunkBytes {
		s.log().Debug("asset within chunk budget", zap.String("audio", path), zap.Int64("bytes", info.Size))
		return []Segment{{Index: 0, Path: path, End: info.Duration}}, nil
	}

	if info.Size <= 0 || info.Duration <= 0 {
		return nil, fmt.Errorf("%w: cannot split %s (size %d, duration %s)", ErrDecode, path, info.Size, info.Duration)
	}

	step := SegmentLength(info.Size, info.Duration, maxChunkBytes)
	kbps := SourceKbps(info.Size, info.Duration)
	if scratchDir == "" {
		return nil, errors.New("scratch directory is required")
	}

	s.log().Info("splitting audio",
		zap.String("audio", path),
		zap.Int64("bytes", info.Size),
		zap.Duration("duration", info.Duration),
		zap.Duration("segment", step),
		zap.Int("max_kbps", kbps),
	)

	var segments []Segment
	for start := time.Duration(0); start < info.Duration; start += step {
		end := min(start+step, info.Duration)
		if rest := info.Duration - end; rest > 0 && rest < MinTailLength {
			end = info.Duration
		}
		segment := Segment{
			Index:     len(segments),
			Path:      filepath.Join(scratchDir, fmt.Sprintf("segment_%03d.mp3", len(segments))),
			Start:     start,
			End:       end,
			Temporary: true,
		}

		if err := s.Encoder.Extract(ctx, path, segment.Path, segment.Start, segment.Duration(), kbps); err != nil {
			removeSegments(append(segments, segment))
			return nil, fmt.Errorf("extract segment %d: %w", segment.Index, err)
		}
		segments = append(segments, segment)
		if end == info.Duration {
			break
		}
	}

	return segments, nil
}

// SegmentLength returns the per-segment duration for an asset of size bytes
// lasting total, rounded up to whole milliseconds and never below one.
func SegmentLength(size int64, total time.Duration, maxChunkBytes int64) time.Duration {
	ms := int64(math.Ceil(float64(maxChunkBytes) * float64(total.Milliseconds()) / float64(size)))
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// SourceKbps is the average bitrate of the source in kbit/s, rounded down.
// Re-encoded segments never exceed it, so a segment stays proportional to
// the bytes it was cut for.
func SourceKbps(size int64, total time.Duration) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int(float64(size) * 8 / total.Seconds() / 1000)
}

func (s *Splitter) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func removeSegments(segments []Segment) {
	for _, segment := range segments {
		if segment.Temporary {
			_ = os.Remove(segment.Path)
		}
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

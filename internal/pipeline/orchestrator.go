package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/schedule"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultMaxRequestBytes is the hard upload ceiling of hosted whisper APIs.
	DefaultMaxRequestBytes int64 = 25 << 20
	// DefaultTargetChunkBytes leaves headroom for re-encoding overhead.
	DefaultTargetChunkBytes int64 = 20 << 20
)

// ErrSegmentTooLarge is returned when a re-encoded segment still exceeds the
// request ceiling.
var ErrSegmentTooLarge = errors.New("segment exceeds request ceiling")

// ErrNoSpeech is returned when every segment of an asset transcribed to
// empty text.
var ErrNoSpeech = errors.New("no speech detected in audio file")

// SegmentError reports the segment whose transcription failed.
type SegmentError struct {
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

type Transcriber interface {
	Transcribe(ctx context.Context, src stt.Source, language string) (stt.Result, error)
}

type Splitter interface {
	Split(ctx context.Context, path string, maxChunkBytes int64, scratchDir string) ([]audio.Segment, error)
}

type Options struct {
	MaxRequestBytes  int64
	TargetChunkBytes int64
	Language         string
	ScratchRoot      string
	Scheduler        schedule.Scheduler
	// OnSegment is called after each segment finishes, possibly from several
	// goroutines when the scheduler is concurrent.
	OnSegment func(done, total int)
	Logger    *zap.Logger
}

// Orchestrator turns an audio file of any size into one transcription,
// splitting it when it exceeds the per-request ceiling.
type Orchestrator struct {
	engine   Transcriber
	splitter Splitter
	opts     Options
}

func New(engine Transcriber, splitter Splitter, opts Options) (*Orchestrator, error) {
	if engine == nil {
		return nil, errors.New("transcriber is required")
	}
	if splitter == nil {
		return nil, errors.New("splitter is required")
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if opts.TargetChunkBytes <= 0 {
		opts.TargetChunkBytes = min(DefaultTargetChunkBytes, opts.MaxRequestBytes*4/5)
	}
	if opts.TargetChunkBytes >= opts.MaxRequestBytes {
		return nil, fmt.Errorf("target chunk size %d must be smaller than request ceiling %d", opts.TargetChunkBytes, opts.MaxRequestBytes)
	}
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = os.TempDir()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Sequential{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Orchestrator{engine: engine, splitter: splitter, opts: opts}, nil
}

// TranscribeAsset transcribes the file at path. Files within the request
// ceiling go to the engine once and its result is returned unchanged. Larger
// files are split into a per-call scratch directory that is removed before
// returning, whatever the outcome.
func (o *Orchestrator) TranscribeAsset(ctx context.Context, path string) (stt.Result, error) {
	path = filepath.Clean(path)
	requestID := uuid.NewString()
	logger := o.opts.Logger.With(zap.String("request", requestID), zap.String("audio", path))

	info, err := os.Stat(path)
	if err != nil {
		return stt.Result{}, fmt.Errorf("%w: %v", audio.ErrDecode, err)
	}
	if info.IsDir() {
		return stt.Result{}, fmt.Errorf("%w: %s is a directory", audio.ErrDecode, path)
	}
	format, err := audio.DetectFormat(path)
	if err != nil {
		return stt.Result{}, err
	}
	logger = logger.With(zap.String("format", string(format)))

	if info.Size() <= o.opts.MaxRequestBytes {
		logger.Debug("fast path", zap.Int64("bytes", info.Size()))
		return o.engine.Transcribe(ctx, stt.FileSource(path), o.opts.Language)
	}

	logger.Info("audio exceeds request ceiling; splitting",
		zap.Int64("bytes", info.Size()),
		zap.Int64("max_bytes", o.opts.MaxRequestBytes),
		zap.Int64("target_bytes", o.opts.TargetChunkBytes),
	)

	scratch := filepath.Join(o.opts.ScratchRoot, "voxlate-"+requestID)
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return stt.Result{}, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory", zap.String("path", scratch), zap.Error(err))
		}
	}()

	segments, err := o.splitter.Split(ctx, path, o.opts.TargetChunkBytes, scratch)
	if err != nil {
		return stt.Result{}, err
	}
	if err := o.checkSegmentSizes(segments); err != nil {
		logger.Warn("segments exceed request ceiling", zap.Error(err))
		return stt.Result{}, err
	}

	started := time.Now()
	results := make([]stt.Result, len(segments))
	var done atomic.Int64

	err = o.opts.Scheduler.Run(ctx, len(segments), func(ctx context.Context, i int) error {
		segment := segments[i]
		result, err := o.engine.Transcribe(ctx, stt.FileSource(segment.Path), o.opts.Language)
		if segment.Temporary {
			_ = os.Remove(segment.Path)
		}
		if err != nil {
			if !errors.Is(err, stt.ErrTranscription) {
				err = fmt.Errorf("%w: %w", stt.ErrTranscription, err)
			}
			return &SegmentError{Index: segment.Index, Err: err}
		}

		results[i] = result
		finished := int(done.Add(1))
		logger.Info("segment transcribed",
			zap.Int("segment", segment.Index),
			zap.Int("done", finished),
			zap.Int("total", len(segments)),
			zap.Int("chars", len(result.Text)),
		)
		if o.opts.OnSegment != nil {
			o.opts.OnSegment(finished, len(segments))
		}
		return nil
	})
	if err != nil {
		logger.Warn("chunked transcription failed", zap.Error(err))
		return stt.Result{}, err
	}

	result := Aggregate(results, o.opts.Language)
	logger.Info("chunked transcription finished",
		zap.Int("segments", len(segments)),
		zap.Float64("confidence", result.Confidence),
		zap.Float64("duration_seconds", result.Duration),
		zap.Duration("elapsed", time.Since(started)),
	)

	if result.Text == "" {
		return stt.Result{}, ErrNoSpeech
	}
	return result, nil
}

func (o *Orchestrator) checkSegmentSizes(segments []audio.Segment) error {
	for _, segment := range segments {
		info, err := os.Stat(segment.Path)
		if err != nil {
			return fmt.Errorf("stat segment %d: %w", segment.Index, err)
		}
		if info.Size() > o.opts.MaxRequestBytes {
			return &SegmentError{
				Index: segment.Index,
				Err:   fmt.Errorf("%w: %d bytes > %d", ErrSegmentTooLarge, info.Size(), o.opts.MaxRequestBytes),
			}
		}
	}
	return nil
}

// Aggregate folds per-segment results in index order. Text joins non-empty
// segment texts with one space; confidence averages only segments that
// produced text; duration sums every segment.
func Aggregate(results []stt.Result, language string) stt.Result {
	texts := make([]string, 0, len(results))
	confidences := make([]float64, 0, len(results))
	durations := make([]float64, 0, len(results))

	out := stt.Result{Language: language}
	for _, r := range results {
		durations = append(durations, r.Duration)

		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		confidences = append(confidences, r.Confidence)
		if out.Language == "" {
			out.Language = r.Language
		}
	}

	out.Text = strings.Join(texts, " ")
	if len(confidences) > 0 {
		out.Confidence = stat.Mean(confidences, nil)
	}
	if len(durations) > 0 {
		out.Duration = floats.Sum(durations)
	}
	return out
}

package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/retry"
	"go.uber.org/zap"
)

// Source is either a file reference or an in-memory mono sample buffer.
type Source struct {
	Path       string
	Samples    []float32
	SampleRate int
}

func FileSource(path string) Source {
	return Source{Path: path}
}

func SampleSource(samples []float32, sampleRate int) Source {
	return Source{Samples: samples, SampleRate: sampleRate}
}

// Engine performs single-shot transcriptions against a Service.
type Engine struct {
	Service    Service
	Prober     audio.Prober
	Logger     *zap.Logger
	FP16       bool
	Retries    int
	RetryDelay time.Duration
}

func NewEngine(service Service, prober audio.Prober, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Service: service, Prober: prober, Logger: logger, RetryDelay: 500 * time.Millisecond}
}

// Transcribe sends src to the service exactly once (plus configured retries)
// and derives confidence and duration from the typed response.
func (e *Engine) Transcribe(ctx context.Context, src Source, language string) (Result, error) {
	if e.Service == nil {
		return Result{}, fmt.Errorf("%w: no speech-to-text service configured", ErrTranscription)
	}

	req, err := e.buildRequest(src, language)
	if err != nil {
		return Result{}, err
	}

	started := time.Now()
	var resp Response
	policy := retry.Policy{Attempts: e.Retries + 1, Delay: e.RetryDelay, Logger: e.log()}
	err = policy.Do(ctx, "transcription", func(ctx context.Context) error {
		r, err := e.Service.Transcribe(ctx, req)
		if err != nil {
			return err
		}
		if err := r.Validate(); err != nil {
			return retry.Permanent(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTranscription) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %s: %w", ErrTranscription, e.Service.Name(), err)
	}

	result := Result{
		Text:       strings.TrimSpace(resp.Text),
		Language:   resp.Language,
		Confidence: Confidence(resp.Segments),
		Duration:   e.duration(ctx, src, resp),
	}
	if result.Language == "" {
		result.Language = language
	}

	e.log().Debug("transcription finished",
		zap.String("service", e.Service.Name()),
		zap.Int("sub_segments", len(resp.Segments)),
		zap.Float64("confidence", result.Confidence),
		zap.Float64("duration_seconds", result.Duration),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (e *Engine) buildRequest(src Source, language string) (Request, error) {
	req := Request{Language: language, FP16: e.FP16}

	switch {
	case src.Path != "":
		req.Path = src.Path
	case len(src.Samples) > 0:
		data, err := audio.EncodeWAV(src.Samples, src.SampleRate)
		if err != nil {
			return Request{}, fmt.Errorf("%w: encode samples: %w", ErrTranscription, err)
		}
		req.Data = data
		req.FileName = "audio.wav"
	default:
		return Request{}, fmt.Errorf("%w: empty audio source", ErrTranscription)
	}

	return req, nil
}

// duration prefers the service report, then the source itself. It never fails.
func (e *Engine) duration(ctx context.Context, src Source, resp Response) float64 {
	if resp.Duration != nil {
		return *resp.Duration
	}

	if src.Path == "" {
		return audio.Asset{Samples: src.Samples, SampleRate: src.SampleRate}.Duration().Seconds()
	}

	if e.Prober == nil {
		return 0
	}
	info, err := e.Prober.Probe(ctx, src.Path)
	if err != nil {
		e.log().Debug("duration probe failed", zap.String("audio", src.Path), zap.Error(err))
		return 0
	}
	return info.Duration.Seconds()
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

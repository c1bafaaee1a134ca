package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/fmueller/voxlate/internal/store"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/fmueller/voxlate/internal/translate"
	"go.uber.org/zap"
)

var ErrEmptyText = errors.New("text to translate is empty")

type AssetTranscriber interface {
	TranscribeAsset(ctx context.Context, path string) (stt.Result, error)
}

type SourceTranscriber interface {
	Transcribe(ctx context.Context, src stt.Source, language string) (stt.Result, error)
}

type Translator interface {
	Translate(ctx context.Context, text, source, target string) translate.Outcome
}

// Result is what one run hands back to the caller. Stored is false when no
// gateway is configured.
type Result struct {
	Transcript stt.Result
	Outcome    translate.Outcome
	Record     store.Record
	Stored     bool
}

// Workflow runs audio or text through transcription, translation and
// persistence for a fixed language pair.
type Workflow struct {
	Assets         AssetTranscriber
	Engine         SourceTranscriber
	Translator     Translator
	Gateway        store.Gateway
	SourceLanguage string
	TargetLanguage string
	Logger         *zap.Logger
	Now            func() time.Time
}

func (w *Workflow) ProcessFile(ctx context.Context, path string) (Result, error) {
	if w.Assets == nil {
		return Result{}, errors.New("asset transcriber is not configured")
	}

	transcript, err := w.Assets.TranscribeAsset(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return w.finish(ctx, transcript)
}

// ProcessSamples transcribes an in-memory capture, as produced by the live
// microphone loop.
func (w *Workflow) ProcessSamples(ctx context.Context, samples []float32, sampleRate int) (Result, error) {
	if w.Engine == nil {
		return Result{}, errors.New("transcription engine is not configured")
	}

	transcript, err := w.Engine.Transcribe(ctx, stt.SampleSource(samples, sampleRate), w.SourceLanguage)
	if err != nil {
		return Result{}, err
	}
	return w.finish(ctx, transcript)
}

// TranslateText translates text typed by the user between an explicit
// language pair. The service sees the trimmed text; the record keeps the
// input verbatim with zero duration and confidence.
func (w *Workflow) TranslateText(ctx context.Context, text, source, target string) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{}, ErrEmptyText
	}
	if source == "" {
		source = w.SourceLanguage
	}
	if target == "" {
		target = w.TargetLanguage
	}

	outcome := w.Translator.Translate(ctx, trimmed, source, target)
	return w.persist(ctx, stt.Result{Text: text, Language: source}, outcome, source, target)
}

func (w *Workflow) finish(ctx context.Context, transcript stt.Result) (Result, error) {
	transcript.Text = strings.TrimSpace(transcript.Text)
	if transcript.Text == "" {
		return Result{}, pipeline.ErrNoSpeech
	}

	w.log().Debug("transcript ready",
		zap.String("language", transcript.Language),
		zap.Float64("confidence", transcript.Confidence),
		zap.Float64("duration_seconds", transcript.Duration),
		zap.String("preview", preview(transcript.Text)),
	)

	outcome := w.Translator.Translate(ctx, transcript.Text, w.SourceLanguage, w.TargetLanguage)
	return w.persist(ctx, transcript, outcome, w.SourceLanguage, w.TargetLanguage)
}

func (w *Workflow) persist(ctx context.Context, transcript stt.Result, outcome translate.Outcome, source, target string) (Result, error) {
	status := store.StatusCompleted
	if outcome.Degraded() {
		status = store.StatusDegraded
		w.log().Warn("translation degraded; keeping source text", zap.Error(outcome.Reason))
	}

	record := store.NewRecord(w.now(), source, target, transcript.Text, outcome.Text, transcript.Duration, transcript.Confidence, status)
	result := Result{Transcript: transcript, Outcome: outcome, Record: record}
	if w.Gateway == nil {
		return result, nil
	}

	id, err := w.Gateway.Insert(ctx, record)
	if err != nil {
		return result, fmt.Errorf("store translation: %w", err)
	}
	result.Record.ID = id
	result.Stored = true

	w.log().Info("translation stored",
		zap.Int64("id", id),
		zap.String("source", source),
		zap.String("target", target),
		zap.String("status", string(status)),
	)
	return result, nil
}

func (w *Workflow) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w *Workflow) log() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= 80 {
		return text
	}
	return string(runes[:80]) + "..."
}

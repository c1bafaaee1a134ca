package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/voxlate/internal/schedule"
	"go.uber.org/zap"
)

const DefaultTemperature = 0.3

var ErrMalformedResponse = errors.New("malformed translation response")

type Status string

const (
	// StatusOK means every chunk came back from the service.
	StatusOK Status = "ok"
	// StatusDegraded means the service failed and Text holds the untranslated input.
	StatusDegraded Status = "degraded"
)

// Outcome is the result of one translation call. A degraded outcome carries
// the original text plus the reason the service call failed.
type Outcome struct {
	Text   string
	Status Status
	Reason error
	Chunks int
}

func (o Outcome) Degraded() bool {
	return o.Status == StatusDegraded
}

// Request is one chunk sent to the translation service.
type Request struct {
	System      string
	User        string
	Temperature float64
}

type Service interface {
	Translate(ctx context.Context, req Request) (string, error)
}

type Engine struct {
	Service     Service
	ChunkChars  int
	Temperature float64
	Scheduler   schedule.Scheduler
	Logger      *zap.Logger
}

func NewEngine(service Service, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Service:     service,
		ChunkChars:  DefaultChunkChars,
		Temperature: DefaultTemperature,
		Scheduler:   schedule.Sequential{},
		Logger:      logger,
	}
}

// Translate converts text from source to target chunk by chunk. Blank input
// returns "" without calling the service. Any service failure yields a
// degraded outcome holding the original text instead of an error.
func (e *Engine) Translate(ctx context.Context, text, source, target string) Outcome {
	if strings.TrimSpace(text) == "" {
		e.log().Warn("received empty text for translation")
		return Outcome{Status: StatusOK}
	}

	chunks := SplitText(text, e.ChunkChars)
	e.log().Info("translating",
		zap.String("source", source),
		zap.String("target", target),
		zap.Int("chars", len([]rune(text))),
		zap.Int("chunks", len(chunks)),
	)

	started := time.Now()
	translated := make([]string, len(chunks))
	scheduler := e.Scheduler
	if scheduler == nil {
		scheduler = schedule.Sequential{}
	}

	err := scheduler.Run(ctx, len(chunks), func(ctx context.Context, i int) error {
		if e.Service == nil {
			return errors.New("no translation service configured")
		}
		out, err := e.Service.Translate(ctx, Request{
			System:      SystemPrompt(source, target),
			User:        UserPrompt(chunks[i], source, target),
			Temperature: e.Temperature,
		})
		if err != nil {
			return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return fmt.Errorf("chunk %d/%d: %w: empty translation", i+1, len(chunks), ErrMalformedResponse)
		}
		translated[i] = out
		e.log().Debug("chunk translated", zap.Int("chunk", i+1), zap.Int("chars", len([]rune(out))))
		return nil
	})
	if err != nil {
		e.log().Error("translation failed; returning original text", zap.Error(err))
		return Outcome{Text: text, Status: StatusDegraded, Reason: err, Chunks: len(chunks)}
	}

	result := strings.Join(translated, " ")
	e.log().Info("translation finished", zap.Int("chars", len([]rune(result))), zap.Duration("elapsed", time.Since(started)))
	return Outcome{Text: result, Status: StatusOK, Chunks: len(chunks)}
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

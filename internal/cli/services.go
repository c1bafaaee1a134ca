package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/config"
	"github.com/fmueller/voxlate/internal/download"
	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/fmueller/voxlate/internal/platform"
	"github.com/fmueller/voxlate/internal/schedule"
	"github.com/fmueller/voxlate/internal/store"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/fmueller/voxlate/internal/translate"
	"github.com/fmueller/voxlate/internal/workflow"
	"go.uber.org/zap"
)

const segmentRetryDelay = time.Second

func (a *appState) buildWorkflow(ctx context.Context, onSegment func(done, total int)) (*workflow.Workflow, error) {
	engine, err := a.newEngine(ctx)
	if err != nil {
		return nil, err
	}
	orchestrator, err := a.newOrchestrator(engine, onSegment)
	if err != nil {
		return nil, err
	}
	translator, err := a.newTranslator()
	if err != nil {
		return nil, err
	}
	gateway, err := a.gatewayOrMemory(ctx)
	if err != nil {
		return nil, err
	}

	return &workflow.Workflow{
		Assets:         orchestrator,
		Engine:         engine,
		Translator:     translator,
		Gateway:        gateway,
		SourceLanguage: a.cfg.SourceLanguage,
		TargetLanguage: a.cfg.TargetLanguage,
		Logger:         a.log(),
		Now:            a.now,
	}, nil
}

func (a *appState) newService(ctx context.Context) (stt.Service, error) {
	switch a.cfg.Engine {
	case config.EngineLocal:
		location, err := a.ensureModelAvailable(ctx)
		if err != nil {
			return nil, err
		}
		return stt.NewBundledService(location.Path, a.log())
	default:
		return stt.NewAPIService(stt.APIConfig{
			APIKey:  a.cfg.APIKey,
			BaseURL: a.cfg.APIBaseURL,
			Model:   a.cfg.STTModel,
		})
	}
}

func (a *appState) newEngine(ctx context.Context) (*stt.Engine, error) {
	service, err := a.newService(ctx)
	if err != nil {
		return nil, err
	}

	engine := stt.NewEngine(service, audio.NewFileProber(), a.log())
	engine.FP16 = a.cfg.FP16
	engine.Retries = a.cfg.SegmentRetries
	engine.RetryDelay = segmentRetryDelay
	return engine, nil
}

func (a *appState) newOrchestrator(engine pipeline.Transcriber, onSegment func(done, total int)) (*pipeline.Orchestrator, error) {
	scratch, err := platform.ResolveScratchDir(a.cfg.ScratchDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch directory %s: %w", scratch, err)
	}

	splitter := audio.NewSplitter(audio.NewFileProber(), audio.NewFFmpegEncoder(), a.log())
	return pipeline.New(engine, splitter, pipeline.Options{
		MaxRequestBytes:  a.cfg.MaxRequestBytes,
		TargetChunkBytes: a.cfg.TargetChunkBytes,
		Language:         a.cfg.SourceLanguage,
		ScratchRoot:      scratch,
		Scheduler:        schedule.New(a.cfg.Concurrency),
		OnSegment:        onSegment,
		Logger:           a.log(),
	})
}

func (a *appState) newTranslator() (*translate.Engine, error) {
	service, err := translate.NewAPIService(translate.APIConfig{
		APIKey:  a.cfg.APIKey,
		BaseURL: a.cfg.APIBaseURL,
		Model:   a.cfg.TranslationModel,
	})
	if err != nil {
		return nil, err
	}

	engine := translate.NewEngine(service, a.log())
	engine.ChunkChars = a.cfg.TextChunkChars
	engine.Temperature = a.cfg.Temperature
	engine.Scheduler = schedule.New(a.cfg.Concurrency)
	return engine, nil
}

func (a *appState) openGateway(ctx context.Context) (store.Gateway, error) {
	if strings.TrimSpace(a.cfg.DatabaseURL) == "" {
		return nil, errors.New("translation history needs a database; set database_url or --database-url")
	}
	return store.OpenPostgres(ctx, a.cfg.DatabaseURL, a.log())
}

// gatewayOrMemory keeps results for the lifetime of the process when no
// database is configured.
func (a *appState) gatewayOrMemory(ctx context.Context) (store.Gateway, error) {
	if strings.TrimSpace(a.cfg.DatabaseURL) == "" {
		return store.NewMemoryStore(), nil
	}
	return a.openGateway(ctx)
}

func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (stt.Result, error) {
	engine, err := a.newEngine(ctx)
	if err != nil {
		return stt.Result{}, err
	}

	progress := newSegmentProgress(a.progressEnabled(), "Transcribing")
	defer progress.Stop()

	orchestrator, err := a.newOrchestrator(engine, progress.Update)
	if err != nil {
		return stt.Result{}, err
	}
	return orchestrator.TranscribeAsset(ctx, audioPath)
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.cfg.ModelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) ensureModelAvailable(ctx context.Context) (stt.ModelLocation, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return stt.ModelLocation{}, err
	}

	location, err := stt.LocateModel(a.cfg.Model, modelDir)
	if err != nil {
		return stt.ModelLocation{}, err
	}
	if !location.NeedsDownload {
		return location, nil
	}

	a.log().Info("model not found, downloading", zap.String("model", location.Model.Name), zap.String("destination", location.Path))
	if err := download.Fetch(ctx, download.Options{
		URL:            location.Model.URL(),
		Destination:    location.Path,
		ExpectedSHA256: location.Model.SHA256,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return stt.ModelLocation{}, fmt.Errorf("download model %q: %w", location.Model.Name, err)
	}

	location.NeedsDownload = false
	return location, nil
}

func sanitizeLanguage(input string) string {
	return strings.TrimSpace(strings.ToLower(input))
}

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/capture"
	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/fmueller/voxlate/internal/platform"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type captureOptions struct {
	duration time.Duration
	backend  string
	input    string
}

func newLiveCmd(app *appState) *cobra.Command {
	var (
		opts captureOptions
		once bool
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Capture microphone clips and translate each one until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.duration <= 0 {
				opts.duration = app.cfg.ChunkDuration
			}
			return app.runLive(cmd.Context(), cmd, opts, once)
		},
	}

	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Clip length, e.g. 10s; 0 uses chunk_duration from the config")
	cmd.Flags().BoolVar(&once, "once", false, "Capture and translate a single clip")
	cmd.Flags().StringVar(&opts.backend, "backend", "auto", "Capture backend: auto|pw-record|arecord|ffmpeg")
	cmd.Flags().StringVar(&opts.input, "input", "", "Input device, e.g. hw:1,0 (arecord), a node name (pw-record) or :1 (ffmpeg on macOS)")
	return cmd
}

func (a *appState) runLive(ctx context.Context, cmd *cobra.Command, opts captureOptions, once bool) error {
	wf, err := a.workflowFn(ctx, nil)
	if err != nil {
		return err
	}
	defer a.closeWorkflow(wf)

	a.log().Info("live translation started; press Ctrl+C to stop",
		zap.String("source", a.cfg.SourceLanguage),
		zap.String("target", a.cfg.TargetLanguage),
		zap.Duration("clip", opts.duration),
	)

	for clip := 1; ; clip++ {
		asset, err := a.captureFn(ctx, opts)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		stop := startSpinner(a.progressEnabled(), "Translating")
		result, err := wf.ProcessSamples(ctx, asset.Samples, asset.SampleRate)
		stop()

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, pipeline.ErrNoSpeech):
			a.log().Debug("clip contained no speech", zap.Int("clip", clip))
		default:
			if reportErr := a.report(ctx, cmd.ErrOrStderr(), result, err); reportErr != nil {
				a.log().Warn("clip failed", zap.Int("clip", clip), zap.Error(reportErr))
			}
		}

		if once {
			return nil
		}
	}
}

func (a *appState) captureClip(ctx context.Context, opts captureOptions) (audio.Asset, error) {
	scratch, err := platform.ResolveScratchDir(a.cfg.ScratchDir)
	if err != nil {
		return audio.Asset{}, err
	}

	recorder, err := capture.NewRecorder(opts.backend, scratch, a.cfg.SampleRate, a.log())
	if err != nil {
		return audio.Asset{}, err
	}
	recorder.Input = opts.input

	stop := startDurationProgress(a.progressEnabled(), "Listening", opts.duration)
	defer stop()
	return recorder.Clip(ctx, opts.duration)
}

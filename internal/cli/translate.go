package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/fmueller/voxlate/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranslateCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <audio-file>",
		Short: "Transcribe an audio file and translate the transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTranslate(cmd.Context(), cmd.ErrOrStderr(), args[0])
		},
	}
	bindSilenceFlags(cmd, app)
	return cmd
}

func newTextCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "text <text...>",
		Short: "Translate text from the source to the target language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wf, err := app.workflowFn(ctx, nil)
			if err != nil {
				return err
			}
			defer app.closeWorkflow(wf)

			stop := startSpinner(app.progressEnabled(), "Translating")
			result, err := wf.TranslateText(ctx, strings.Join(args, " "), app.cfg.SourceLanguage, app.cfg.TargetLanguage)
			stop()
			return app.report(ctx, cmd.ErrOrStderr(), result, err)
		},
	}
}

func bindSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent WAV audio and skip transcription")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

func (a *appState) runTranslate(ctx context.Context, errOut io.Writer, audioPath string) error {
	audioPath, err := checkAudioPath(audioPath)
	if err != nil {
		return err
	}
	if a.silentWAV(audioPath) {
		a.log().Warn(noSpeechHint())
		return nil
	}

	progress := newSegmentProgress(a.progressEnabled(), "Transcribing")
	defer progress.Stop()

	wf, err := a.workflowFn(ctx, progress.Update)
	if err != nil {
		return err
	}
	defer a.closeWorkflow(wf)

	result, err := wf.ProcessFile(ctx, audioPath)
	progress.Stop()
	if errors.Is(err, pipeline.ErrNoSpeech) {
		a.log().Warn(noSpeechHint(), zap.String("audio", audioPath))
		return nil
	}
	return a.report(ctx, errOut, result, err)
}

// report prints whatever the workflow produced, including a translation whose
// persistence failed, and returns err unchanged.
func (a *appState) report(ctx context.Context, errOut io.Writer, result workflow.Result, err error) error {
	if result.Record.SourceText == "" {
		return err
	}
	if result.Outcome.Degraded() {
		fmt.Fprintf(errOut, "warning: translation failed (%v); showing the untranslated text\n", result.Outcome.Reason)
	}
	if printErr := a.printResult(result); printErr != nil {
		return errors.Join(err, printErr)
	}
	if a.copyResult && !result.Outcome.Degraded() {
		if copyErr := a.copyFn(ctx, result.Record.TranslatedText); copyErr != nil {
			a.log().Warn("failed to copy translation to clipboard", zap.Error(copyErr))
		}
	}
	return err
}

func (a *appState) closeWorkflow(wf *workflow.Workflow) {
	if wf == nil || wf.Gateway == nil {
		return
	}
	closeGateway(a, wf.Gateway)
}

func (a *appState) silentWAV(audioPath string) bool {
	if !a.silenceGate || !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return false
	}

	silent, metrics, err := audio.IsSilentWAV(audioPath, a.silenceDBFS)
	if err != nil {
		a.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return false
	}
	if silent {
		a.log().Info("audio considered silent; skipping transcription",
			zap.String("audio", audioPath),
			zap.Float64("rms_dbfs", metrics.RMSdBFS),
			zap.Float64("peak_dbfs", metrics.PeakdBFS),
			zap.Float64("threshold_dbfs", a.silenceDBFS),
		)
	}
	return silent
}

func checkAudioPath(audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("audio file not found: %s is a directory", audioPath)
	}
	if _, err := audio.DetectFormat(audioPath); err != nil {
		return "", fmt.Errorf("%w (supported: wav, mp3, ogg, flac, m4a)", err)
	}
	return audioPath, nil
}

func noSpeechHint() string {
	return "No speech detected. Check the recording level and input device, then try again."
}

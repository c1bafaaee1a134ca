package cli

import (
	"errors"
	"fmt"

	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type transcriptView struct {
	Text            string  `json:"text"`
	Language        string  `json:"language"`
	Confidence      float64 `json:"confidence"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func newTranscribeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file of any size without translating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath, err := checkAudioPath(args[0])
			if err != nil {
				return err
			}
			if app.silentWAV(audioPath) {
				app.log().Warn(noSpeechHint())
				return nil
			}

			result, err := app.transcribeFn(cmd.Context(), audioPath)
			if errors.Is(err, pipeline.ErrNoSpeech) {
				app.log().Warn(noSpeechHint(), zap.String("audio", audioPath))
				return nil
			}
			if err != nil {
				return err
			}
			if result.Text == "" {
				app.log().Warn(noSpeechHint(), zap.String("audio", audioPath))
			}

			if app.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), transcriptView{
					Text:            result.Text,
					Language:        result.Language,
					Confidence:      result.Confidence,
					DurationSeconds: result.Duration,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}
	bindSilenceFlags(cmd, app)
	return cmd
}

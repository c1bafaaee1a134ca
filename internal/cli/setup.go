package cli

import (
	"fmt"

	"github.com/fmueller/voxlate/internal/download"
	"github.com/fmueller/voxlate/internal/stt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify the local whisper model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			location, err := stt.LocateModel(app.cfg.Model, modelDir)
			if err != nil {
				return err
			}
			if location.Custom {
				return fmt.Errorf("setup expects a named model (%v); got custom path %s", stt.LocalModelNames(), location.Path)
			}

			model := location.Model
			if !location.NeedsDownload {
				if err := download.VerifyFileChecksum(location.Path, model.SHA256); err != nil {
					app.log().Warn("model checksum verification failed; downloading fresh copy", zap.String("model", model.Name), zap.Error(err))
					location.NeedsDownload = true
				}
			}

			if !location.NeedsDownload {
				app.log().Info("model already present", zap.String("model", model.Name), zap.String("path", location.Path))
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", model.Name, location.Path)
				return nil
			}

			app.log().Info("downloading model", zap.String("model", model.Name), zap.String("path", location.Path))
			if err := download.Fetch(cmd.Context(), download.Options{
				URL:            model.URL(),
				Destination:    location.Path,
				ExpectedSHA256: model.SHA256,
				NoProgress:     app.noProgress,
				Logger:         app.log(),
			}); err != nil {
				return fmt.Errorf("download model %s: %w", model.Name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", model.Name, location.Path)
			return nil
		},
	}
}

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/fmueller/voxlate/internal/pipeline"
	"github.com/fmueller/voxlate/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(app *appState) *cobra.Command {
	var (
		delay       time.Duration
		deleteAfter bool
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Translate audio files as they are dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wf, err := app.workflowFn(ctx, nil)
			if err != nil {
				return err
			}
			defer app.closeWorkflow(wf)

			watcher, err := watch.New(watch.Options{
				Dir:         args[0],
				Delay:       delay,
				DeleteAfter: deleteAfter,
				Logger:      app.log(),
				Handler: func(ctx context.Context, path string) error {
					result, err := wf.ProcessFile(ctx, path)
					if errors.Is(err, pipeline.ErrNoSpeech) {
						app.log().Warn(noSpeechHint(), zap.String("audio", path))
						return nil
					}
					return app.report(ctx, cmd.ErrOrStderr(), result, err)
				},
			})
			if err != nil {
				return err
			}

			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", watch.DefaultDelay, "How long a file must stay unchanged before it is processed")
	cmd.Flags().BoolVar(&deleteAfter, "delete-after", false, "Delete audio files once they were translated")
	return cmd
}

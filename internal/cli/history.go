package cli

import (
	"fmt"
	"strconv"

	"github.com/fmueller/voxlate/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHistoryCmd(app *appState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored translations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			gateway, err := app.gatewayFn(ctx)
			if err != nil {
				return err
			}
			defer closeGateway(app, gateway)

			var records []store.Record
			if cmd.Flags().Changed("source") || cmd.Flags().Changed("target") {
				records, err = gateway.ByLanguagePair(ctx, app.cfg.SourceLanguage, app.cfg.TargetLanguage, limit)
			} else {
				records, err = gateway.All(ctx, limit)
			}
			if err != nil {
				return err
			}
			return app.printRecords(records)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of translations to list; 0 lists all")
	return cmd
}

func newShowCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid translation id %q", args[0])
			}

			ctx := cmd.Context()
			gateway, err := app.gatewayFn(ctx)
			if err != nil {
				return err
			}
			defer closeGateway(app, gateway)

			record, ok, err := gateway.ByID(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("translation #%d not found", id)
			}
			return app.printRecord(record)
		},
	}
}

func closeGateway(app *appState, gateway store.Gateway) {
	if err := gateway.Close(); err != nil {
		app.log().Warn("failed to close translation store", zap.Error(err))
	}
}

package cli

import (
	"fmt"

	"github.com/fmueller/voxlate/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current()
			if app.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
}

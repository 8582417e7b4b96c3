package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/getmockd/netmock/pkg/cli/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(out, map[string]string{
				"version":   Version,
				"commit":    Commit,
				"buildDate": BuildDate,
				"go":        runtime.Version(),
			})
		}
		fmt.Fprintf(out, "netmock %s (commit %s, built %s, %s)\n", Version, Commit, BuildDate, runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

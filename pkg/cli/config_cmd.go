package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/netmock/pkg/cli/internal/output"
)

var configShowSources bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after the config file, NETMOCK_* environment
variables and flags have been applied, as YAML (or JSON with --json).

With --sources, list the keys whose value did not come from the defaults
or the config file, and where the value came from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if configShowSources {
			keys := make([]string, 0, len(cfg.Sources))
			for k := range cfg.Sources {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if jsonOutput {
				return output.JSON(out, cfg.Sources)
			}
			w := output.Table(out)
			fmt.Fprintln(w, "KEY\tSOURCE")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\n", k, cfg.Sources[k])
			}
			return w.Flush()
		}

		if jsonOutput {
			return output.JSON(out, cfg)
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	configCmd.Flags().BoolVar(&configShowSources, "sources", false, "List overridden keys and their source")
	rootCmd.AddCommand(configCmd)
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/getmockd/netmock/pkg/cli/internal/output"
	"github.com/getmockd/netmock/pkg/definition"
)

// listItem is one definition as shown by list.
type listItem struct {
	Source   string `json:"source"`
	Method   string `json:"method"`
	Scope    string `json:"scope"`
	Path     string `json:"path"`
	Status   int    `json:"status"`
	Times    int    `json:"times,omitempty"`
	Persist  bool   `json:"persist,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list [pattern...]",
	Short: "List the definitions of definition files",
	Long: `List every definition found in the files matched by glob patterns, in
file order. Without patterns the definitions of the configuration file are
used.`,
	Example: `  netmock list 'mocks/*.yaml'
  netmock list --json mocks/users.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		patterns, err := definitionPatterns(cfg, args)
		if err != nil {
			return err
		}
		defs, err := definition.LoadGlob(patterns...)
		if err != nil {
			return err
		}

		items := make([]listItem, 0, len(defs))
		for i := range defs {
			items = append(items, newListItem(&defs[i]))
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(out, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "No definitions found")
			return nil
		}

		w := output.Table(out)
		fmt.Fprintln(w, "METHOD\tSCOPE\tPATH\tSTATUS\tTIMES\tSOURCE")
		for _, it := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", it.Method, it.Scope, it.Path, it.Status, timesLabel(it), it.Source)
		}
		return w.Flush()
	},
}

func newListItem(d *definition.Definition) listItem {
	// parsed definitions carry a valid status
	status, _ := d.StatusCode()
	return listItem{
		Source:   d.Source,
		Method:   d.MethodOrDefault(),
		Scope:    d.Scope,
		Path:     d.Path,
		Status:   status,
		Times:    d.Times,
		Persist:  d.Persist,
		Optional: d.Optional,
	}
}

func timesLabel(it listItem) string {
	switch {
	case it.Persist:
		return "persist"
	case it.Optional:
		return "optional"
	case it.Times > 0:
		return strconv.Itoa(it.Times)
	default:
		return "1"
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}

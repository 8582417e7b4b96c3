package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/netmock/pkg/cli/internal/output"
	"github.com/getmockd/netmock/pkg/definition"
	"github.com/getmockd/netmock/pkg/intercept"
	"github.com/getmockd/netmock/pkg/logging"
)

// validationResult is the outcome for one definition file.
type validationResult struct {
	File        string `json:"file"`
	Definitions int    `json:"definitions"`
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [pattern...]",
	Short: "Validate definition files without running a request",
	Long: `Validate definition files matched by glob patterns (** is supported).

Each file is checked for syntax, against the definition schema, and by
declaring its definitions on a scratch engine, so bad scopes, filters and
reply values are reported the way a test would see them.

Without patterns the definitions of the configuration file are used.`,
	Example: `  netmock validate 'testdata/**/*.yaml'
  netmock validate --json mocks/users.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		patterns, err := definitionPatterns(cfg, args)
		if err != nil {
			return err
		}
		files, err := definition.Expand(patterns...)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("%w: %s", ErrNoFilesMatched, strings.Join(patterns, " "))
		}

		engine := intercept.New(intercept.WithLogger(logging.New(cfg.Logging())))
		defer engine.Close()

		results := make([]validationResult, 0, len(files))
		failed := 0
		for _, file := range files {
			res := validateFile(engine, file)
			if !res.Valid {
				failed++
			}
			results = append(results, res)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := output.JSON(out, results); err != nil {
				return err
			}
		} else {
			for _, res := range results {
				if res.Valid {
					fmt.Fprintf(out, "ok    %s (%d definitions)\n", res.File, res.Definitions)
					continue
				}
				fmt.Fprintf(out, "FAIL  %s\n", res.File)
				for _, line := range strings.Split(res.Error, "\n") {
					fmt.Fprintf(out, "      %s\n", line)
				}
			}
		}

		if failed > 0 {
			return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d files invalid", failed, len(files))}
		}
		return nil
	},
}

func validateFile(engine *intercept.Engine, file string) validationResult {
	res := validationResult{File: file}
	defs, err := definition.ParseFile(file)
	if err != nil {
		res.Error = strings.TrimPrefix(err.Error(), file+": ")
		return res
	}
	res.Definitions = len(defs)

	_, err = engine.Define(defs)
	engine.Reset()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Valid = true
	return res
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

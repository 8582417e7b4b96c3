package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/netmock/pkg/config"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool
	logLevel   string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netmock",
	Short: "netmock checks and exercises HTTP interception definitions",
	Long: `netmock works with the definition files used by netmock-based tests.

Definitions can be validated against the schema, listed, and tried: a request
is run through an in-process interception engine loaded with the definitions
and the response that a test would see is printed.

Configuration can be provided via flags, environment variables (NETMOCK_*),
or a configuration file given with --config or NETMOCK_CONFIG.`,
	SilenceUsage:  true,
	SilenceErrors: true, // reported by Main
}

// Execute runs the root command and exits with its status.
func Execute() {
	os.Exit(Main())
}

// Main runs the root command with os.Args and returns the exit status.
func Main() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig returns the effective configuration: the config file if one
// is named, then NETMOCK_* overrides, then flags.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}

	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	config.LoadEnv(cfg)

	if logLevel != "" {
		cfg.Log.Level = logLevel
		cfg.SetSource("log.level", config.SourceFlag)
	}
	return cfg, nil
}

// definitionPatterns returns args, or the configured definition globs when
// no argument is given.
func definitionPatterns(cfg *config.Config, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(cfg.Definitions) > 0 {
		return cfg.Definitions, nil
	}
	return nil, ErrNoDefinitions
}

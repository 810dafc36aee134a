// Package cli implements the cobra-based CLI commands for container-sync.
//
// Each subcommand (start, stop, sync, clean, list, config, status) is
// defined in its own file within this package. This file defines the root
// command that serves as the parent for all subcommands and handles
// global flags.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shinji-kodama/container-sync/internal/config"
	"github.com/shinji-kodama/container-sync/internal/logging"
	"github.com/shinji-kodama/container-sync/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// It also switches log lines to the JSON encoder.
	jsonOutput bool

	// verbose enables debug logging and streams transfer tool output.
	verbose bool

	// configPath is the configuration file. When empty, the file is
	// located by searching the working directory and its parents.
	configPath string

	// configString is an inline configuration that takes precedence over
	// the file.
	configString string

	// envFile is the dotenv file seeding variables for interpolation.
	envFile string

	// logger is built in PersistentPreRunE once the flags are parsed.
	logger = zap.NewNop()

	// errWriter receives log lines and verbose transfer tool output.
	errWriter io.Writer = os.Stderr
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action. It provides help
// text, global flags and the logger every subcommand reports through.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "container-sync",
		Short: "Keep local directories in sync with Docker volumes",
		Long: `container-sync keeps local source directories in sync with named volumes
inside Docker containers.

Sync points are declared in container-sync.yml (or .json). Each sync point
gets its own sync container running an rsync daemon or a unison server,
and a watcher that pushes local changes as they happen.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			errWriter = cmd.ErrOrStderr()
			logger = logging.New(logging.Options{
				Verbose: verbose,
				JSON:    jsonOutput,
				Output:  errWriter,
			})
			if err := config.LoadDotEnv(envFile); err != nil {
				return model.WrapCLIError(model.ExitInvalidConfig, "failed to load environment", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the configuration file (default: search for container-sync.yml)")
	rootCmd.PersistentFlags().StringVar(&configString, "config-string", "",
		"Inline configuration, takes precedence over --config")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", config.DefaultEnvFile,
		"Dotenv file loaded before the configuration is interpolated")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewStopCommand())
	rootCmd.AddCommand(NewSyncCommand())
	rootCmd.AddCommand(NewCleanCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewStatusCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// CLIError types carry their own exit codes; other errors default to
// exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(os.Stderr, cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(os.Stderr, err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode; stdout is reserved for
		// successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// VerboseLog writes a debug line through the CLI logger. It only shows up
// with --verbose.
func VerboseLog(format string, args ...interface{}) {
	logger.Sugar().Debugf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// loadConfig runs the configuration pipeline for the global flags. An
// explicit --config is used as given; otherwise the file is located from
// the working directory unless --config-string makes it unnecessary.
func loadConfig() (*model.Config, error) {
	path := configPath
	if path == "" && configString == "" {
		located, err := config.Locate(".")
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigNotFound, "configuration not found", err)
		}
		path = located
	}
	VerboseLog("Loading configuration from %s", describeSource(path))

	return config.LoadConfig(config.LoadOptions{
		ConfigString: configString,
		ConfigPath:   path,
	})
}

func describeSource(path string) string {
	if configString != "" {
		return "--config-string"
	}
	return path
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

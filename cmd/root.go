// Package cmd provides the root command and command registration functionality
// for the guisu CLI application. It handles global flags, logging configuration,
// and command initialization.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/version"
	"github.com/spf13/cobra"
)

var (
	// logLevel stores the logging level flag value.
	logLevel string

	// logFormat stores the logging format flag value (text or json).
	logFormat string

	// logOutput stores the log output destination flag value (stdout or filename).
	logOutput string

	// verbose stores the count of -v flags (0, 1, or 2).
	verbose int

	// quiet stores the quiet mode flag value.
	quiet bool

	// logFile stores the opened log file handle when logging to a file.
	logFile *os.File

	// SourceDir, DestDir, and ConfigFile hold the resolved global paths
	// every subcommand needs, populated from flags or environment
	// variables in PersistentPreRunE.
	SourceDir  string
	DestDir    string
	ConfigFile string
	StateFile  string

	// DryRun, Force, and Interactive drive the applicator's conflict
	// handling and are shared by every command that reconciles state.
	DryRun      bool
	Force       bool
	Interactive bool

	// IncludePatterns and ExcludePatterns narrow a pass to a subset of
	// entry kinds (files, dirs, symlinks, templates, encrypted).
	IncludePatterns []string
	ExcludePatterns []string
)

// rootCmd is the root command for the guisu CLI application.
// It provides the main entry point and handles global configuration.
var rootCmd = &cobra.Command{
	Use:   "guisu",
	Short: "guisu reconciles a dotfiles source tree against a destination directory",
	Long: `guisu is a dotfiles reconciliation engine. It walks a source tree of
managed files, runs each through a content pipeline (decrypt, template render,
inline-secret expansion), and reconciles the result against a destination
directory using a three-way comparison against the last applied state.`,
	Example: `  # Show what would change without writing anything
  guisu status

  # Show a diff of pending changes
  guisu diff

  # Apply pending changes
  guisu apply

  # Apply, prompting on every conflict
  guisu apply --interactive

  # Add an existing file into the managed source tree
  guisu add ~/.gitconfig`,
	Version: version.VERSION,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Determine log level based on flags
		level := logLevel
		if quiet {
			level = "error"
		} else if verbose > 0 {
			// -v = info, -vv = debug
			if verbose >= 2 {
				level = "debug"
			} else {
				level = "info"
			}
		} else if level == "" {
			if envLevel := os.Getenv("GUISU_LOG_LEVEL"); envLevel != "" {
				level = envLevel
			} else {
				// Default to warn level when no verbose flag is set
				level = "warn"
			}
		}

		// Determine log output destination
		if logOutput == "" {
			if envOut := os.Getenv("GUISU_LOG_FILE"); envOut != "" {
				logOutput = envOut
			} else {
				logOutput = "stdout"
			}
		}

		var output io.Writer
		if logOutput == "stdout" {
			output = os.Stdout
		} else {
			// Clean and validate log file path to prevent directory traversal
			cleanPath := filepath.Clean(logOutput)
			absPath, err := filepath.Abs(cleanPath)
			if err != nil {
				return fmt.Errorf("error resolving log file path %s: %w", logOutput, err)
			}

			if filepath.Clean(absPath) != absPath {
				return fmt.Errorf("invalid log file path: %s", logOutput)
			}

			logFile, err = os.OpenFile(absPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
			if err != nil {
				return fmt.Errorf("error opening log file %s: %w", logOutput, err)
			}
			output = logFile
		}

		logger.Init(level, logFormat, output)

		if SourceDir == "" {
			SourceDir = os.Getenv("GUISU_SOURCE_DIR")
		}
		if DestDir == "" {
			DestDir = os.Getenv("GUISU_DEST_DIR")
		}
		if ConfigFile == "" {
			ConfigFile = os.Getenv("GUISU_CONFIG")
		}
		if StateFile == "" {
			StateFile = os.Getenv("GUISU_STATE_FILE")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Close log file if it was opened
		if logFile != nil {
			if err := logFile.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
			}
			logFile = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Register adds a subcommand to the root command.
// This function is called by subcommand packages during their init() functions
// to register themselves with the root command.
//
// Parameters:
//   - cmd: The Cobra command to register as a subcommand
func Register(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// GetRootCmd returns the root command instance.
// This is primarily useful for testing, allowing test code to access
// the root command structure.
//
// Returns the root Cobra command instance.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// Execute executes the root command and handles errors.
// It is the main entry point for the CLI application and should be called
// from the main package. On failure, it exits with the code named by a
// core.ExitError in the returned error's chain, or 1 if there is none.
// Cobra already prints error messages, so this function only handles exit codes.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var exitErr *core.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}

func init() {
	// Configure Cobra to handle errors gracefully
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	// Set custom version template to display version, commit, and date information.
	rootCmd.SetVersionTemplate(fmt.Sprintf("guisu %s (%s) %s\n", version.VERSION, version.COMMIT, version.DATE))

	// Set custom help template to show Examples after Flags
	rootCmd.SetHelpTemplate(`{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}
{{end}}{{if or .Runnable .HasSubCommands}}{{if .Runnable}}
Usage:
{{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set the logging level (debug, info, warn, error). Default: warn (only warnings and errors)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Set the logging format (text, json). Default: text")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "", "Set the log output destination (stdout or a filename). Default: stdout")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "Enable verbose output: -v for info level, -vv for debug level")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output (equivalent to --log-level=error)")

	// Reconciliation target flags
	rootCmd.PersistentFlags().StringVar(&SourceDir, "source-dir", "", "Source tree to reconcile from (default: $GUISU_SOURCE_DIR)")
	rootCmd.PersistentFlags().StringVar(&DestDir, "dest-dir", "", "Destination directory to reconcile into (default: $GUISU_DEST_DIR, usually $HOME)")
	rootCmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Path to the source tree's config file (default: $GUISU_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&StateFile, "state-file", "", "Path to the persistent state database (default: $GUISU_STATE_FILE, or the XDG state directory)")

	// Conflict handling flags
	rootCmd.PersistentFlags().BoolVar(&DryRun, "dry-run", false, "Show what would change without writing anything")
	rootCmd.PersistentFlags().BoolVarP(&Force, "force", "f", false, "Override every conflict without prompting")
	rootCmd.PersistentFlags().BoolVarP(&Interactive, "interactive", "i", false, "Prompt on every conflict instead of skipping it")
	rootCmd.PersistentFlags().StringSliceVar(&IncludePatterns, "include", nil, "Restrict the pass to these entry kinds: files, dirs, symlinks, templates, encrypted")
	rootCmd.PersistentFlags().StringSliceVar(&ExcludePatterns, "exclude", nil, "Exclude these entry kinds from the pass: files, dirs, symlinks, templates, encrypted")
}

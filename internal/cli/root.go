package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/catom/internal/logging"
)

// RootOptions holds global flags for all commands, after the config file
// has been merged in.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogLevel   string
	Journal    string

	// Logger is built in PersistentPreRunE from Verbose and LogLevel.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the catom CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "catom",
		Short: "catom - typed attributes with change notification",
		Long: `Compile CUE schemas into entity types and drive their instances
through scripted scenarios, printing every change notification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", defaultFormat, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: ./catom.yaml)")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load merges the config file under the flags and builds the logger.
func (o *RootOptions) load(cmd *cobra.Command) error {
	v, err := loadConfig(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := bindFlag(v, cfgKeyFormat, cmd.Flags().Lookup("format")); err != nil {
		return err
	}
	if err := bindFlag(v, cfgKeyJournal, cmd.Flags().Lookup("journal")); err != nil {
		return err
	}

	o.Format = v.GetString(cfgKeyFormat)
	o.LogLevel = v.GetString(cfgKeyLogLevel)
	o.Journal = v.GetString(cfgKeyJournal)
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log_level", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = logging.NewWriter(cmd.ErrOrStderr(), level)
	slog.SetDefault(o.Logger)
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// logger returns the configured logger, or a discarding one when the
// command runs without PersistentPreRunE (as in unit tests of a subcommand).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

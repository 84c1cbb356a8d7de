// internal/cli/root.go
package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string

	// Logger is built from LogLevel before any command runs.
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the nvstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nvstore",
		Short: "Non-volatile storage engine for a breaker trip unit",
		Long: `nvstore drives the Flash/FRAM storage engine of a trip unit: waveform
captures, calibration blocks, the demand log and redundant records, all
serviced one slice per tick through the request/acknowledge handshake.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(opts.LogLevel)
			if err != nil {
				return err
			}
			opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRegionsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// logger is the configured logger, or the default one when the command
// runs without its root.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
	return l, nil
}

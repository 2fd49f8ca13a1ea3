// Command compatprobe finds the published versions of a library that
// downstream projects stay compatible with, by running each project's test
// suite against successive versions in a sandbox.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	// Listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, shutting down...", "signal", sig)
		cancel()
	}()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags are bound to v, which also
// reads COMPATPROBE_* environment variables.
func newRootCmd(v *viper.Viper) *cobra.Command {
	v.SetEnvPrefix("COMPATPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "compatprobe",
		Short: "Probe which library versions downstream projects are compatible with",
		Long: `compatprobe runs the test suites of downstream projects against every
published version of a library, from the version each project currently
depends on to the newest one, and records where compatibility breaks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path := v.GetString("env-file"); path != "" {
				if err := godotenv.Load(path); err != nil {
					return fmt.Errorf("loading env file: %w", err)
				}
			}
			return setupLogging(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetString("log-format"))
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "log level (debug|info|warn|error)")
	flags.String("log-format", "text", "log format (text|json)")
	flags.String("env-file", "", "load environment variables from a dotenv file")
	mustBind(v, flags.Lookup("log-level"), flags.Lookup("log-format"), flags.Lookup("env-file"))

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newWindowCmd(v))
	root.AddCommand(newSummaryCmd(v))
	return root
}

// setupLogging installs the default slog logger.
func setupLogging(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	var handler slog.Handler
	switch format {
	case "text", "":
		logger := log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(lvl),
		})
		handler = logger
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func mustBind(v *viper.Viper, flags ...*pflag.Flag) {
	for _, f := range flags {
		if err := v.BindPFlag(f.Name, f); err != nil {
			panic(fmt.Sprintf("binding %s flag: %v", f.Name, err))
		}
	}
}

package cmd

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"remapflame/internal/config"
	"remapflame/internal/errors"
	"remapflame/internal/log"
)

const usageLine = "remapflame path/to/methods.csv flamegraph.svg"

// reportedError marks an error that was already written to the run logger.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// NewRootCommand builds the remapflame command. Each call returns an
// independent command with its own viper instance.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "remapflame <mapping-file> <flame-graph>",
		Short: "Rewrite obfuscated method names in a flame graph",
		Long: `Remapflame reads a CSV mapping of obfuscated to readable method names and
rewrites every ":::func..." frame label in a flame graph SVG. The result is
written next to the input as <name>-remapped.svg; the input is never modified.

With --pprof the target is parsed as a pprof profile instead, its function
names are remapped and the result is written as <stem>-remapped.pb.gz.

Examples:
  remapflame methods.csv flamegraph.svg
  remapflame --watch methods.csv flamegraph.svg
  remapflame --pprof --dry-run --log-level debug methods.csv cpu.pb.gz`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errors.NewConfigError(fmt.Sprintf("missing / wrong arguments (got %d): %s", len(args), usageLine), nil)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			cfg.MappingFile = args[0]
			cfg.TargetFile = args[1]
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := log.New(cmd.ErrOrStderr(), cfg.SlogLevel(), cfg.LogFormat)
			if err := executeRemap(cmd.Context(), cfg, logger); err != nil {
				logger.Error("remap failed", slog.String("error", err.Error()))
				return reportedError{err}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML config file (only read when given)")
	flags.String("marker", config.DefaultMarker, "literal prefix of remappable tokens")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", string(config.LogFormatAuto), "log format (auto, text, json)")
	flags.Bool("backup", false, "back up an existing output file before replacing it")
	flags.Bool("watch", false, "re-run whenever the flame graph changes")
	flags.Bool("dry-run", false, "transform and report without writing the output file")
	flags.Bool("pprof", false, "treat the target as a pprof profile and remap its function names")

	_ = v.BindPFlag(config.KeyMarker, flags.Lookup("marker"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = v.BindPFlag(config.KeyBackup, flags.Lookup("backup"))
	_ = v.BindPFlag(config.KeyWatch, flags.Lookup("watch"))
	_ = v.BindPFlag(config.KeyDryRun, flags.Lookup("dry-run"))
	_ = v.BindPFlag(config.KeyPprof, flags.Lookup("pprof"))

	cmd.MarkFlagsMutuallyExclusive("watch", "dry-run")

	return cmd
}

// Execute runs the root command and exits with status 1 on any error.
// Errors raised before the run logger exists, such as a wrong argument
// count, are reported through a fallback stderr logger.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		var reported reportedError
		if !goerrors.As(err, &reported) {
			log.Fallback().Error(err.Error())
		}
		stop()
		os.Exit(1)
	}
}

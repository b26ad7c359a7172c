package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag    string
	logLevelFlag  string
	logPrettyFlag bool
	traceFlag     bool
	noColorFlag   bool
)

// Loaded once per invocation by the root pre-run hook.
var (
	appConfig *config.Config
	appLogger = zerolog.Nop()
	tracing   *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:   "hitwire",
	Short: "Send HTTP requests and see every hop.",
	Long: `hitwire sends fully resolved HTTP requests and records every attempt
of each one: redirects it followed, digest challenges it answered and the
exact headers it sent after signing.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HITWIRE_CONFIG", ""), "Path to config file (env: HITWIRE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", getEnvString("HITWIRE_LOG_LEVEL", ""), "Log level: trace, debug, info, warn, error, disabled (env: HITWIRE_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&logPrettyFlag, "log-pretty", getEnvBool("HITWIRE_LOG_PRETTY", false), "Human-readable log output (env: HITWIRE_LOG_PRETTY)")
	rootCmd.PersistentFlags().BoolVar(&traceFlag, "trace", getEnvBool("HITWIRE_TRACE", false), "Print OpenTelemetry spans to stderr (env: HITWIRE_TRACE)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITWIRE_NO_COLOR", false), "Disable colored output (env: HITWIRE_NO_COLOR)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}
	appConfig = cfg

	level := cfg.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	appLogger = logger.New(level, logPrettyFlag || cfg.Log.Pretty, os.Stderr)

	if traceFlag {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		tracing = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		otel.SetTracerProvider(tracing)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if tracing == nil {
		return nil
	}
	return tracing.Shutdown(context.Background())
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run every request in request files",
	Long: `Run the requests defined in YAML request files. Each request is sent
independently with its own redirects, auth state and timeline.

Examples:
  hitwire run api.yaml
  hitwire run ./requests/ --concurrency 10 --rate 20
  hitwire run api.yaml --name users -v
  hitwire run api.yaml --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	runEngine       engineFlags
	nameFlag        string
	verboseFlag     int
	bailFlag        bool
	outputFlag      string
	outputFileFlag  string
	concurrencyFlag int
	rateFlag        float64
	watchFlag       bool
)

func init() {
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only requests whose name contains this text")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output with the attempt timeline")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITWIRE_OUTPUT", "console"), "Output format: console, json (env: HITWIRE_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITWIRE_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITWIRE_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("HITWIRE_BAIL", false), "Stop starting requests after the first failure (env: HITWIRE_BAIL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("HITWIRE_CONCURRENCY", 0), "Requests in flight at once (default from config) (env: HITWIRE_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITWIRE_RATE", 0), "Maximum request starts per second (default from config) (env: HITWIRE_RATE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")

	runEngine.register(runCmd)
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatSend(result *runner.RequestResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(format string, w io.Writer, verbose bool, opts ...output.ConsoleOption) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "", "console":
		opts = append([]output.ConsoleOption{
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColorFlag),
		}, opts...)
		return output.NewConsoleFormatter(opts...), nil
	default:
		return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("unknown output format %q (use console or json)", format)}
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	outWriter := cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		outWriter = f
	}

	files, err := collectFiles(args)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}
	if len(files) == 0 {
		return &exitError{code: ExitUsageError, err: errNoFiles}
	}

	clientOpts, err := runEngine.clientOptions(appConfig)
	if err != nil {
		return err
	}

	store, err := runEngine.openHistory(appConfig)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	cfg := &runner.Config{
		ClientOptions: clientOpts,
		Concurrency:   appConfig.Concurrency,
		Rate:          appConfig.Rate,
		NameFilter:    nameFlag,
		Bail:          bailFlag,
		Logger:        appLogger,
	}
	if concurrencyFlag > 0 {
		cfg.Concurrency = concurrencyFlag
	}
	if rateFlag > 0 {
		cfg.Rate = rateFlag
	}
	if store != nil {
		cfg.Recorder = store
	}
	r := runner.NewRunner(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runAll := func(ctx context.Context) (*runSummary, error) {
		formatter, err := newFormatter(outputFlag, outWriter, verboseFlag > 0)
		if err != nil {
			return nil, err
		}
		summary := runFiles(ctx, r, files, formatter)
		if flushable, ok := formatter.(Flushable); ok {
			if err := flushable.Flush(summary.duration); err != nil {
				return nil, fmt.Errorf("error writing output: %w", err)
			}
		}
		return summary, nil
	}

	summary, err := runAll(ctx)
	if err != nil {
		return err
	}

	if !watchFlag {
		return summary.err()
	}

	return watch(ctx, cmd, args, files, func() {
		if _, err := runAll(ctx); err != nil {
			appLogger.Error().Err(err).Msg("re-run failed")
		}
	})
}

type runSummary struct {
	failed     int
	cancelled  int
	loadFailed int
	duration   time.Duration
}

func (s *runSummary) err() error {
	switch {
	case s.cancelled > 0:
		return &exitError{code: ExitCancelled, err: errReported}
	case s.loadFailed > 0:
		return &exitError{code: ExitParseError, err: errReported}
	case s.failed > 0:
		return &exitError{code: ExitRequestFailure, err: errReported}
	}
	return nil
}

func runFiles(ctx context.Context, r *runner.Runner, files []string, formatter Formatter) *runSummary {
	summary := &runSummary{}
	start := time.Now()

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		result, err := r.RunFile(ctx, file)
		if err != nil {
			formatter.FormatError(err)
			summary.loadFailed++
			if bailFlag {
				break
			}
			continue
		}

		formatter.FormatResult(result)
		summary.failed += result.Failed
		summary.cancelled += result.Cancelled

		if bailFlag && result.Failed > 0 {
			break
		}
	}

	summary.duration = time.Since(start)
	return summary
}

func watch(ctx context.Context, cmd *cobra.Command, args, files []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				appLogger.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
			}
			watchedDirs[dir] = true
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounced re-runs are serialised through this channel.
	changed := make(chan string, 1)
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) && isRequestFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				name := event.Name
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					select {
					case changed <- name:
					default:
					}
				})
			}

		case name := <-changed:
			fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running...\n\n", name)
			rerun()
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			appLogger.Warn().Err(err).Msg("watcher error")
		}
	}
}

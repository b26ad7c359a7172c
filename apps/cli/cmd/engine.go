package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

var errNoFiles = errors.New("no .yaml or .yml request files found")

// engineFlags are the network flags shared by send and run.
type engineFlags struct {
	timeout      string
	proxy        string
	insecure     bool
	noFollow     bool
	maxRedirects int
	outputDir    string
	historyDB    string
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.timeout, "timeout", getEnvString("HITWIRE_TIMEOUT", ""), "Per-attempt timeout, e.g. 30s or 1m (env: HITWIRE_TIMEOUT)")
	cmd.Flags().StringVar(&f.proxy, "proxy", getEnvString("HITWIRE_PROXY", ""), "Proxy URL for HTTP requests (env: HITWIRE_PROXY)")
	cmd.Flags().BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITWIRE_INSECURE", false), "Disable SSL certificate validation (env: HITWIRE_INSECURE)")
	cmd.Flags().BoolVar(&f.noFollow, "no-follow", false, "Return redirects instead of following them")
	cmd.Flags().IntVar(&f.maxRedirects, "max-redirects", -1, "Maximum redirects per request (default from config)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", getEnvString("HITWIRE_OUTPUT_DIR", ""), "Save response bodies in this directory (env: HITWIRE_OUTPUT_DIR)")
	cmd.Flags().StringVar(&f.historyDB, "history-db", getEnvString("HITWIRE_HISTORY_DB", ""), "Record requests in this sqlite database (env: HITWIRE_HISTORY_DB)")
}

// clientOptions layers flags over the loaded config.
func (f *engineFlags) clientOptions(cfg *config.Config) ([]http.ClientOption, error) {
	timeout := cfg.Timeout
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", f.timeout, err)}
		}
		timeout = d
	}

	maxRedirects := cfg.MaxRedirects
	if f.maxRedirects >= 0 {
		maxRedirects = f.maxRedirects
	}

	proxy := cfg.Proxy
	if f.proxy != "" {
		proxy = f.proxy
	}

	opts := []http.ClientOption{
		http.WithLogger(appLogger),
		http.WithTimeout(timeout),
		http.WithFollowRedirects(cfg.GetFollowRedirects() && !f.noFollow),
		http.WithMaxRedirects(maxRedirects),
		http.WithValidateSSL(cfg.GetValidateSSL() && !f.insecure),
		http.WithProxy(proxy),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}

	dir := cfg.ResponseDir
	if f.outputDir != "" {
		dir = f.outputDir
	}
	if dir != "" {
		opts = append(opts, http.WithResponseDir(dir))
	}
	return opts, nil
}

// openHistory returns nil when history is disabled.
func (f *engineFlags) openHistory(cfg *config.Config) (*history.Store, error) {
	db := cfg.HistoryDB
	if f.historyDB != "" {
		db = f.historyDB
	}
	if db == "" {
		return nil, nil
	}
	store, err := history.Open(db)
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}
	return store, nil
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isRequestFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if isRequestFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isRequestFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range config.ConfigFilenames {
		if base == name {
			return false
		}
	}
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

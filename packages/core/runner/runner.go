package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

const (
	// DefaultConcurrency is the default number of logical requests in flight
	DefaultConcurrency = 5
)

// Recorder stores finished logical requests. *history.Store satisfies it.
type Recorder interface {
	Save(ctx context.Context, rec history.Record, timeline []http.TimelineEntry) (string, error)
}

type Runner struct {
	client  *http.Client
	config  *Config
	limiter *rate.Limiter
}

type Config struct {
	ClientOptions []http.ClientOption
	// Concurrency caps logical requests in flight; 1 runs them in file order.
	Concurrency int
	// Rate caps request starts per second; 0 is unlimited.
	Rate       float64
	NameFilter string
	// Bail stops starting new requests after the first failure.
	Bail     bool
	Recorder Recorder
	Logger   zerolog.Logger
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{Logger: zerolog.Nop()}
	}

	r := &Runner{
		client: http.NewClient(append([]http.ClientOption{http.WithLogger(cfg.Logger)}, cfg.ClientOptions...)...),
		config: cfg,
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

type RunResult struct {
	File      string
	Results   []*RequestResult
	Duration  time.Duration
	Succeeded int
	Failed    int
	Cancelled int
	Skipped   int
	Stats     Stats
}

type RequestResult struct {
	Name       string
	Skipped    bool
	SkipReason string
	Request    *http.Request
	Result     *http.Result
	Captures   map[string]any
	Error      error
	Duration   time.Duration
	// HistoryID is set when the request was recorded.
	HistoryID string
}

// Response is the final response, if any.
func (r *RequestResult) Response() *http.Response {
	if r.Result == nil {
		return nil
	}
	return r.Result.Response
}

// Failed reports whether the request ended in an error other than
// cancellation.
func (r *RequestResult) Failed() bool {
	return r.Error != nil && !http.IsCancelled(r.Error)
}

// Send executes a single logical request outside a file.
func (r *Runner) Send(ctx context.Context, req *http.Request, captures []capture.Capture) *RequestResult {
	return r.runRequest(ctx, &FileRequest{Request: *req, Captures: captures})
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, file), nil
}

// Run executes every request in the file. Each logical request has its own
// auth state, timeline and cancellation; results keep file order.
func (r *Runner) Run(ctx context.Context, file *File) *RunResult {
	start := time.Now()
	result := &RunResult{File: file.Path}
	if result.File == "" {
		result.File = file.Name
	}

	var selected []*FileRequest
	for _, req := range file.Requests {
		if r.config.NameFilter != "" && !strings.Contains(req.Name, r.config.NameFilter) {
			result.Results = append(result.Results, &RequestResult{
				Name:       req.Name,
				Skipped:    true,
				SkipReason: "filtered out",
			})
			result.Skipped++
			continue
		}
		selected = append(selected, req)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*RequestResult, len(selected))
	var (
		g      errgroup.Group
		mu     sync.Mutex
		bailed bool
	)
	g.SetLimit(concurrency)

	for i, req := range selected {
		i, req := i, req // per-iteration copies (go directive < 1.22)
		g.Go(func() error {
			mu.Lock()
			stop := bailed
			mu.Unlock()
			if stop {
				results[i] = &RequestResult{Name: req.Name, Skipped: true, SkipReason: "bail"}
				return nil
			}

			res := r.runRequest(ctx, req)
			results[i] = res
			if res.Failed() && r.config.Bail {
				mu.Lock()
				bailed = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := newStatsRecorder()
	for _, res := range results {
		result.Results = append(result.Results, res)
		switch {
		case res.Skipped:
			result.Skipped++
		case res.Error == nil:
			result.Succeeded++
		case http.IsCancelled(res.Error):
			result.Cancelled++
		default:
			result.Failed++
		}
		if resp := res.Response(); resp != nil {
			stats.record(resp.Duration)
		}
	}
	result.Stats = stats.snapshot()
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) runRequest(ctx context.Context, req *FileRequest) *RequestResult {
	res := &RequestResult{Name: req.Name, Request: &req.Request}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			res.Error = &http.CancelledError{Err: err}
			return res
		}
	}

	res.Result, res.Error = r.client.Execute(ctx, &req.Request)
	if resp := res.Response(); resp != nil && len(req.Captures) > 0 {
		res.Captures = capture.ExtractAll(resp, req.Captures)
	}

	if r.config.Recorder != nil {
		rec := history.NewRecord(&req.Request, res.Result, res.Error)
		// Persist even when the caller has cancelled.
		id, err := r.config.Recorder.Save(context.WithoutCancel(ctx), rec, res.Result.Timeline.Entries())
		if err != nil {
			r.config.Logger.Warn().Err(err).Str("request", req.Name).Msg("saving history")
		}
		res.HistoryID = id
	}
	return res
}

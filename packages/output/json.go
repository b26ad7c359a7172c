package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	hithttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary   `json:"summary"`
	Requests []JSONRequest `json:"requests"`
	Stats    *JSONStats    `json:"stats,omitempty"`
	Duration float64       `json:"duration"`
	Time     string        `json:"time"`
}

type JSONSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
}

// JSONStats holds latency percentiles in milliseconds.
type JSONStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// JSONRequest is one logical request with its outcome.
type JSONRequest struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name"`
	File       string         `json:"file,omitempty"`
	Method     string         `json:"method,omitempty"`
	URL        string         `json:"url,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skipReason,omitempty"`
	Cancelled  bool           `json:"cancelled,omitempty"`
	Duration   float64        `json:"duration"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  string         `json:"errorKind,omitempty"`
	Response   *JSONResponse  `json:"response,omitempty"`
	Timeline   []JSONAttempt  `json:"timeline,omitempty"`
	Captures   map[string]any `json:"captures,omitempty"`
}

type JSONResponse struct {
	StatusCode   int                 `json:"statusCode"`
	Status       string              `json:"status"`
	URL          string              `json:"url"`
	Headers      map[string][]string `json:"headers,omitempty"`
	Encoding     string              `json:"encoding"`
	Size         int64               `json:"size"`
	BodyLocation string              `json:"bodyLocation,omitempty"`
	Duration     float64             `json:"duration"`
}

// JSONAttempt is one timeline entry.
type JSONAttempt struct {
	Timestamp       string              `json:"timestamp"`
	Method          string              `json:"method"`
	URL             string              `json:"url"`
	RequestHeaders  []hithttp.Header    `json:"requestHeaders,omitempty"`
	StatusCode      int                 `json:"statusCode,omitempty"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty"`
	Info            string              `json:"info,omitempty"`
	Error           string              `json:"error,omitempty"`
	Duration        float64             `json:"duration"`
}

// JSONFormatter accumulates results and writes them on Flush.
type JSONFormatter struct {
	writer   io.Writer
	requests []JSONRequest
	stats    *JSONStats
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:   os.Stdout,
		requests: make([]JSONRequest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatSend(r *runner.RequestResult) {
	f.requests = append(f.requests, toJSONRequest("", r))
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.requests = append(f.requests, toJSONRequest(result.File, r))
	}
	if s := result.Stats; s.Count > 0 {
		f.stats = &JSONStats{
			Count: s.Count,
			Min:   millis(s.Min),
			Mean:  millis(s.Mean),
			P50:   millis(s.P50),
			P90:   millis(s.P90),
			P99:   millis(s.P99),
			Max:   millis(s.Max),
		}
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual request results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	summary := JSONSummary{Total: len(f.requests)}
	for _, r := range f.requests {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Cancelled:
			summary.Cancelled++
		case r.Error != "":
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Requests: f.requests,
		Stats:    f.stats,
		Duration: millis(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func toJSONRequest(file string, r *runner.RequestResult) JSONRequest {
	out := JSONRequest{
		Name:     r.Name,
		File:     file,
		Skipped:  r.Skipped,
		Duration: millis(r.Duration),
	}
	if r.SkipReason != "" && r.SkipReason != "filtered out" {
		out.SkipReason = r.SkipReason
	}
	if r.Request != nil {
		out.Method = r.Request.Method
		out.URL = r.Request.URL
	}
	if r.Error != nil {
		out.Error = r.Error.Error()
		out.ErrorKind = hithttp.ErrorKind(r.Error)
		out.Cancelled = hithttp.IsCancelled(r.Error)
	}
	if len(r.Captures) > 0 {
		out.Captures = r.Captures
	}
	if r.Result == nil {
		return out
	}

	out.ID = r.Result.ID
	for _, e := range r.Result.Timeline.Entries() {
		out.Timeline = append(out.Timeline, JSONAttempt{
			Timestamp:       e.Timestamp.Format(time.RFC3339Nano),
			Method:          e.RequestMethod,
			URL:             e.RequestURL,
			RequestHeaders:  e.RequestHeaders,
			StatusCode:      e.StatusCode,
			ResponseHeaders: e.ResponseHeaders,
			Info:            e.Info,
			Error:           e.Error,
			Duration:        millis(e.Duration),
		})
	}
	if resp := r.Result.Response; resp != nil {
		out.Response = &JSONResponse{
			StatusCode:   resp.StatusCode,
			Status:       resp.Status,
			URL:          resp.URL,
			Headers:      resp.Headers,
			Encoding:     resp.Encoding,
			Size:         resp.Size,
			BodyLocation: resp.BodyLocation,
			Duration:     millis(resp.Duration),
		}
	}
	return out
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

package output

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	hithttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

// maxBodyDisplay caps how much of a response body the console prints.
const maxBodyDisplay = 4096

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case []string:
		return strings.Join(val, ", ")
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer   io.Writer
	verbose  bool
	noColor  bool
	showBody bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer:   os.Stdout,
		showBody: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose prints the full timeline and response headers.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func WithBody(show bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.showBody = show
	}
}

// FormatSend prints a single logical request: outcome, timeline, body and
// captures.
func (f *ConsoleFormatter) FormatSend(r *runner.RequestResult) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	resp := r.Response()
	switch {
	case r.Error != nil && hithttp.IsCancelled(r.Error):
		fmt.Fprintf(f.writer, "%s\n", color.YellowString("Cancelled"))
	case r.Error != nil:
		fmt.Fprintf(f.writer, "%s %v\n", color.RedString("Error:"), r.Error)
	case resp != nil:
		fmt.Fprintf(f.writer, "%s %s\n", f.statusColor(resp.StatusCode)(resp.Status), cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
	}

	if r.Result != nil {
		entries := r.Result.Timeline.Entries()
		if f.verbose || len(entries) > 1 {
			fmt.Fprintf(f.writer, "\n%s\n", bold("Timeline:"))
			for i, e := range entries {
				f.formatEntry(i+1, e)
			}
		}
	}

	if resp == nil {
		return
	}

	if f.verbose {
		fmt.Fprintf(f.writer, "\n%s\n", bold("Headers:"))
		names := make([]string, 0, len(resp.Headers))
		for name := range resp.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range resp.Headers[name] {
				fmt.Fprintf(f.writer, "  %s: %s\n", faint(name), v)
			}
		}
		if resp.BodyLocation != "" {
			fmt.Fprintf(f.writer, "\n%s %s\n", bold("Saved to:"), resp.BodyLocation)
		}
	}

	if f.showBody {
		body := resp.BodyString()
		if len(body) > maxBodyDisplay {
			body = body[:maxBodyDisplay] + faint(fmt.Sprintf("\n... %d bytes total", resp.Size))
		}
		if body != "" {
			fmt.Fprintf(f.writer, "\n%s\n", body)
		}
	}

	f.formatCaptures(r.Captures)
}

func (f *ConsoleFormatter) formatEntry(n int, e hithttp.TimelineEntry) {
	faint := color.New(color.Faint).SprintFunc()

	status := faint("---")
	if e.StatusCode != 0 {
		status = f.statusColor(e.StatusCode)(fmt.Sprintf("%d", e.StatusCode))
	}
	fmt.Fprintf(f.writer, "  %d. %s %s %s %s\n", n, e.RequestMethod, e.RequestURL, status, faint(fmt.Sprintf("(%dms)", e.Duration.Milliseconds())))
	if e.Info != "" {
		fmt.Fprintf(f.writer, "     %s\n", e.Info)
	}
	if e.Error != "" {
		fmt.Fprintf(f.writer, "     %s\n", color.RedString(e.Error))
	}
	if f.verbose {
		for _, h := range e.RequestHeaders {
			fmt.Fprintf(f.writer, "     > %s: %s\n", faint(h.Name), h.Value)
		}
	}
}

func (f *ConsoleFormatter) formatCaptures(captures map[string]any) {
	if len(captures) == 0 {
		return
	}
	names := make([]string, 0, len(captures))
	for name := range captures {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(f.writer, "\n%s\n", color.New(color.Bold).Sprint("Captures:"))
	for _, name := range names {
		fmt.Fprintf(f.writer, "  %s = %s\n", name, formatValue(captures[name], 100))
	}
}

func (f *ConsoleFormatter) statusColor(code int) func(a ...interface{}) string {
	switch {
	case code >= http.StatusInternalServerError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case code >= http.StatusBadRequest:
		return color.New(color.FgRed).SprintFunc()
	case code >= http.StatusMultipleChoices:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+result.File))

	for _, r := range result.Results {
		if r.Skipped {
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		}

		if r.Error != nil {
			if hithttp.IsCancelled(r.Error) {
				fmt.Fprintf(f.writer, "  %s %s %s\n", yellow("○"), r.Name, yellow("(cancelled)"))
				continue
			}
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name, red(fmt.Sprintf("(%v)", r.Error)))
			continue
		}

		resp := r.Response()
		fmt.Fprintf(f.writer, "  %s %s %s %s\n", green("✓"), r.Name,
			f.statusColor(resp.StatusCode)(fmt.Sprintf("%d", resp.StatusCode)),
			cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose {
			for i, e := range r.Result.Timeline.Entries() {
				f.formatEntry(i+1, e)
			}
			if len(r.Captures) > 0 {
				f.formatCaptures(r.Captures)
			}
		}
	}

	fmt.Fprintf(f.writer, "\nRequests: ")
	if result.Succeeded > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d succeeded", result.Succeeded)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Cancelled > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d cancelled", result.Cancelled)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Results))

	if s := result.Stats; s.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: min %s  p50 %s  p90 %s  p99 %s  max %s\n",
			formatDuration(s.Min), formatDuration(s.P50), formatDuration(s.P90), formatDuration(s.P99), formatDuration(s.Max))
	}
	fmt.Fprintf(f.writer, "Time:  %dms\n\n", result.Duration.Milliseconds())
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitwire"), version)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

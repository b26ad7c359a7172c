package output

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitwire/packages/history"
	hithttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

// FormatHistory prints one line per recorded request, newest first.
func (f *ConsoleFormatter) FormatHistory(records []history.Record) {
	faint := color.New(color.Faint).SprintFunc()

	if len(records) == 0 {
		fmt.Fprintf(f.writer, "No requests recorded\n")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(f.writer, "%s  %s  %-7s %s %s %s\n",
			faint(rec.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			rec.ID,
			rec.Method,
			f.recordOutcome(rec),
			rec.URL,
			faint(fmt.Sprintf("(%d attempts, %dms)", rec.Attempts, rec.DurationMs)))
	}
}

// FormatRecord prints a stored request with its timeline.
func (f *ConsoleFormatter) FormatRecord(rec *history.Record, timeline []hithttp.TimelineEntry) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "%s %s\n", bold("Request:"), rec.ID)
	if rec.Name != "" {
		fmt.Fprintf(f.writer, "%s %s\n", bold("Name:"), rec.Name)
	}
	fmt.Fprintf(f.writer, "%s %s %s\n", bold("Sent:"), rec.Method, rec.URL)
	fmt.Fprintf(f.writer, "%s %s\n", bold("Outcome:"), f.recordOutcome(*rec))
	if rec.Error != "" {
		fmt.Fprintf(f.writer, "%s %s\n", bold("Error:"), rec.Error)
	}
	if rec.BodyLocation != "" {
		fmt.Fprintf(f.writer, "%s %s\n", bold("Saved to:"), rec.BodyLocation)
	}

	fmt.Fprintf(f.writer, "\n%s\n", bold("Timeline:"))
	for i, e := range timeline {
		f.formatEntry(i+1, e)
	}
}

func (f *ConsoleFormatter) recordOutcome(rec history.Record) string {
	switch rec.ErrorKind {
	case "":
		return f.statusColor(rec.StatusCode)(fmt.Sprintf("%d", rec.StatusCode))
	case hithttp.KindCancelled:
		return color.YellowString(rec.ErrorKind)
	default:
		return color.RedString(rec.ErrorKind)
	}
}

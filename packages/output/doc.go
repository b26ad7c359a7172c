// Package output renders request results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output with the attempt timeline
//   - JSON: Machine-readable JSON output, written on Flush
//
// A cancelled request is reported as cancelled, never as a failure.
package output

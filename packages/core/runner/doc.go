// Package runner executes request files.
//
// A request file is YAML holding fully resolved logical requests. The runner
// sends them through one http.Client with bounded concurrency and optional
// rate pacing, extracts captures from each final response, records results
// in history, and summarises response times.
package runner

// Package cmd implements the hitwire CLI commands using Cobra.
//
// Available commands:
//   - send: Send one request and show its attempt timeline
//   - run: Execute every request in YAML request files
//   - validate: Check request files without sending them
//   - list: Display the requests defined in files
//   - history: List and inspect recorded requests
//   - init: Create a config file and an example request file
//   - version: Show hitwire version information
//
// Flags fall back to HITWIRE_* environment variables, then to the config
// file found by config.LoadConfig.
package cmd

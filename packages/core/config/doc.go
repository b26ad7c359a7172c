// Package config loads hitwire configuration.
//
// Defaults are layered under a single config file (YAML or JSON), searched
// for in the working directory under the names in ConfigFilenames, and the
// result is validated before use.
package config

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitwire project",
	Long: `Initialize a new hitwire project in the current directory.

This creates:
  - hitwire.yaml    - Configuration file
  - requests.yaml   - Example request file

Examples:
  hitwire init
  hitwire init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

const exampleRequests = `name: example
requests:
  - name: health
    url: http://localhost:3000/health
    captures:
      - name: status
        source: status

  - name: create resource
    method: POST
    url: http://localhost:3000/resources
    headers:
      - name: Content-Type
        value: application/json
    body:
      mode: json
      raw: '{"name": "Test Resource"}'
    captures:
      - name: resourceId
        source: body
        path: id

  - name: protected
    url: http://localhost:3000/admin
    auth:
      mode: digest
      digest:
        username: admin
        password: secret
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hitwire.yaml")
	exampleFile := filepath.Join(cwd, "requests.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return &exitError{code: ExitUsageError, err: fmt.Errorf("file already exists: %s (use --force to overwrite)", f)}
			}
		}
	}

	configContent := map[string]any{
		"timeout":         "30s",
		"followRedirects": true,
		"maxRedirects":    25,
		"validateSSL":     true,
		"concurrency":     5,
		"responseDir":     ".hitwire/responses",
		"historyDB":       ".hitwire/history.db",
		"headers": map[string]string{
			"Accept": "*/*",
		},
		"log": map[string]any{
			"level": "warn",
		},
	}

	configYAML, err := yaml.Marshal(configContent)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleRequests), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitwire project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitwire run requests.yaml' to send the example requests.\n")

	return nil
}

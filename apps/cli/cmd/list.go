package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List the requests in request files",
	Long: `List all requests defined in request files.

Examples:
  hitwire list api.yaml
  hitwire list ./requests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	if len(files) == 0 {
		return &exitError{code: ExitUsageError, err: errNoFiles}
	}

	for _, file := range files {
		f, err := runner.LoadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, req := range f.Requests {
			method := strings.ToUpper(req.Method)
			if method == "" {
				method = "GET"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s %s)\n", req.Name, method, req.URL)
			if req.Auth.Mode != "" && req.Auth.Mode != http.AuthNone {
				fmt.Fprintf(cmd.OutOrStdout(), "    auth: %s\n", req.Auth.Mode)
			}
		}
	}

	return nil
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/core/runner"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>",
	Short: "Validate request files without sending them",
	Long: `Validate request files without sending anything. Every request must
parse, name a usable URL and build a wire description.

Examples:
  hitwire validate api.yaml
  hitwire validate ./requests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return &exitError{code: ExitUsageError, err: err}
	}

	if len(files) == 0 {
		return &exitError{code: ExitUsageError, err: errNoFiles}
	}

	hasErrors := false
	for _, file := range files {
		if err := validateFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return &exitError{code: ExitParseError, err: errors.New("validation failed")}
	}

	return nil
}

func validateFile(path string) error {
	f, err := runner.LoadFile(path)
	if err != nil {
		return err
	}
	var errs []error
	for _, req := range f.Requests {
		if _, err := http.BuildDescription(&req.Request); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.Name, err))
		}
	}
	return errors.Join(errs...)
}

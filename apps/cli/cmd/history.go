package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded requests",
	Long: `Inspect requests recorded in the history database (historyDB in the
config file, --history-db or HITWIRE_HISTORY_DB).

Examples:
  hitwire history list --limit 20
  hitwire history list --errors
  hitwire history show 0b6c7c1e-4f0e-4c1a-9d1b-3f0d5c2e8a11`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded requests, newest first",
	Args:  cobra.NoArgs,
	RunE:  historyListCommand,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded request with its timeline",
	Args:  cobra.ExactArgs(1),
	RunE:  historyShowCommand,
}

var (
	historyDBFlag     string
	historyLimitFlag  uint64
	historyMethodFlag string
	historyErrorsFlag bool
	historyJSONFlag   bool
)

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBFlag, "history-db", getEnvString("HITWIRE_HISTORY_DB", ""), "History sqlite database (env: HITWIRE_HISTORY_DB)")
	historyCmd.PersistentFlags().BoolVar(&historyJSONFlag, "json", false, "Print JSON")

	historyListCmd.Flags().Uint64Var(&historyLimitFlag, "limit", 50, "Maximum records to list (0 for all)")
	historyListCmd.Flags().StringVar(&historyMethodFlag, "method", "", "Only requests with this method")
	historyListCmd.Flags().BoolVar(&historyErrorsFlag, "errors", false, "Only requests that ended in an error")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func openHistoryStore() (*history.Store, error) {
	f := engineFlags{historyDB: historyDBFlag}
	store, err := f.openHistory(appConfig)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, &exitError{code: ExitConfigError, err: errors.New("no history database configured")}
	}
	return store, nil
}

func historyListCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), history.ListOptions{
		Limit:     historyLimitFlag,
		Method:    historyMethodFlag,
		ErrorOnly: historyErrorsFlag,
	})
	if err != nil {
		return err
	}

	if historyJSONFlag {
		return writeJSON(cmd, records)
	}
	output.NewConsoleFormatter(output.WithWriter(cmd.OutOrStdout()), output.WithNoColor(noColorFlag)).FormatHistory(records)
	return nil
}

func historyShowCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, timeline, err := store.Get(cmd.Context(), args[0])
	if errors.Is(err, history.ErrNotFound) {
		return &exitError{code: ExitUsageError, err: fmt.Errorf("no recorded request %s", args[0])}
	}
	if err != nil {
		return err
	}

	if historyJSONFlag {
		return writeJSON(cmd, struct {
			*history.Record
			Timeline []http.TimelineEntry `json:"timeline"`
		}{rec, timeline})
	}
	output.NewConsoleFormatter(output.WithWriter(cmd.OutOrStdout()), output.WithNoColor(noColorFlag)).FormatRecord(rec, timeline)
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

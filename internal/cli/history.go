package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/cubist/internal/monitor"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// HistoryEntry is one row of the history command's data.
type HistoryEntry struct {
	ExecutionID int64  `json:"execution_id"`
	ParentID    int64  `json:"parent_id,omitempty"`
	TraceID     string `json:"trace_id"`
	Purpose     string `json:"purpose"`
	Message     string `json:"message,omitempty"`
	State       string `json:"state"`
	StartedAt   string `json:"started_at"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	Error       string `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent executions from the execution log",
		Long: `List executions recorded by the monitor, most recent first.

Example:
  cubist history --db ./executions.db --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "execution log database (overrides monitor.database)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of executions (0 for all)")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	database := opts.Database
	if database == "" {
		database = opts.Settings.Monitor.Database
	}
	if database == "" {
		return NewExitError(ExitCommandError, "no execution log: pass --db or set monitor.database")
	}

	store, err := monitor.Open(database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open execution log", err)
	}
	defer store.Close()

	records, err := store.History(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read execution log", err)
	}

	entries := make([]HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = HistoryEntry{
			ExecutionID: r.ExecutionID,
			ParentID:    r.ParentID,
			TraceID:     r.TraceID,
			Purpose:     r.Purpose,
			Message:     r.Message,
			State:       r.State,
			StartedAt:   r.Started.Format("2006-01-02T15:04:05.000Z07:00"),
			ElapsedMS:   r.Elapsed.Milliseconds(),
			Error:       r.Error,
		}
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(entries, "")
	}
	return writeHistoryTable(cmd, entries)
}

func writeHistoryTable(cmd *cobra.Command, entries []HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No executions recorded.")
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPARENT\tSTATE\tELAPSED\tPURPOSE\tTRACE\tMESSAGE")
	for _, e := range entries {
		msg := e.Message
		if e.Error != "" {
			msg = strings.TrimSpace(msg + " (" + e.Error + ")")
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%dms\t%s\t%s\t%s\n",
			e.ExecutionID, e.ParentID, e.State, e.ElapsedMS, e.Purpose, e.TraceID, msg)
	}
	return tw.Flush()
}

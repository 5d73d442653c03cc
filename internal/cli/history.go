package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fort-nix/nbtest/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions

	limit int
}

// RunInfo is the JSON shape for one history entry.
type RunInfo struct {
	ID        string `json:"id"`
	Scenario  string `json:"scenario"`
	Mode      string `json:"mode"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration"`
	Status    string `json:"status"`
	OutPath   string `json:"out_path,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded test runs",
		Long: `List runs recorded in the history database, newest first.
Recording only happens when historyDB is set in the config file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if opts.Config.HistoryDB == "" {
		return NewExitError(ExitCommandError, "no history database configured (set historyDB in the config file)")
	}

	st, err := store.Open(opts.Config.HistoryDB)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot open history database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.limit)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot list runs", err)
	}

	infos := make([]RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, RunInfo{
			ID:        run.ID,
			Scenario:  run.Scenario,
			Mode:      run.Mode,
			StartedAt: run.StartedAt.Format(time.RFC3339),
			Duration:  run.Duration.Round(time.Millisecond).String(),
			Status:    run.Status,
			OutPath:   run.OutPath,
		})
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(CLIResponse{Status: "ok", Data: infos})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSCENARIO\tMODE\tSTATUS\tDURATION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.StartedAt, info.Scenario, info.Mode, info.Status, info.Duration)
	}
	return w.Flush()
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/triggersim/internal/channel"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Kinds    string // optional - comma-separated kinds to keep
	Trigger  string // optional - keep entries naming this trigger
	Channel  string // optional - keep entries on this channel
}

// TraceResult holds the trace of one stored run.
type TraceResult struct {
	Run   ir.RunRecord    `json:"run"`
	Trace []ir.TraceEntry `json:"trace"`
	Stats TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for a run trace.
type TraceStats struct {
	TotalEntries int            `json:"total_entries"`
	Deliveries   int            `json:"deliveries"`
	Fires        int            `json:"fires"`
	ByKind       map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show stored runs and their traces",
		Long: `Show runs stored by "run --db" or the shell.

Without a run id, lists every stored run. With a run id, prints the run's
trace entries in order, followed by summary statistics.

Examples:
  triggersim trace --db ./triggersim.db
  triggersim trace --db ./triggersim.db 0190f6c2-...
  triggersim trace --db ./triggersim.db 0190f6c2-... --kind fire,schedule
  triggersim trace --db ./triggersim.db 0190f6c2-... --trigger A --format json
  triggersim trace --db ./triggersim.db 0190f6c2-... --channel power`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Kinds, "kind", "", "filter to entry kinds (comma-separated)")
	cmd.Flags().StringVar(&opts.Trigger, "trigger", "", "filter to entries naming a trigger")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "filter to entries on a channel")

	return cmd
}

// openStore opens the database named by flag or config.
func openStore(opts *RootOptions, flagPath string) (*store.Store, error) {
	path := flagPath
	if path == "" {
		path = opts.config().Store.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		return outputRuns(formatter, runs)
	}

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	entries, err := st.QueryTrace(ctx, traceQuery(opts, runID))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := TraceResult{Run: run, Trace: entries, Stats: traceStats(entries)}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// traceQuery builds the store query for the command's filters.
func traceQuery(opts *TraceOptions, runID string) store.TraceQuery {
	q := store.TraceQuery{RunID: runID, Trigger: opts.Trigger, Channel: opts.Channel}
	for _, k := range channel.Parse(opts.Kinds) {
		q.Kinds = append(q.Kinds, ir.TraceKind(k))
	}
	return q
}

func traceStats(entries []ir.TraceEntry) TraceStats {
	stats := TraceStats{TotalEntries: len(entries), ByKind: make(map[string]int)}
	for _, e := range entries {
		stats.ByKind[string(e.Kind)]++
		switch e.Kind {
		case ir.TraceDeliver:
			stats.Deliveries++
		case ir.TraceFire, ir.TraceManualFire:
			stats.Fires++
		}
	}
	return stats
}

// outputRuns lists stored runs.
func outputRuns(formatter *OutputFormatter, runs []ir.RunRecord) error {
	if formatter.IsJSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs stored.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %-14s T=%-8s steps=%-5d layout=%s\n",
			r.ID, r.Outcome, formatTime(r.FinalTime), r.Steps, truncateID(r.LayoutHash))
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Outcome: %s at T=%s after %d step(s)\n",
		result.Run.Outcome, formatTime(result.Run.FinalTime), result.Run.Steps)
	if verbose {
		fmt.Fprintf(w, "Layout: %s\n", result.Run.LayoutHash)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, e := range result.Trace {
		fmt.Fprintf(w, "  [%d] T=%s %s\n", e.Seq, formatTime(e.Time), describeEntry(e))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Entries: %d\n", result.Stats.TotalEntries)
	fmt.Fprintf(w, "  Deliveries:    %d\n", result.Stats.Deliveries)
	fmt.Fprintf(w, "  Fires:         %d\n", result.Stats.Fires)
	if verbose {
		kinds := make([]string, 0, len(result.Stats.ByKind))
		for k := range result.Stats.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-14s %d\n", k+":", result.Stats.ByKind[k])
		}
	}
	return nil
}

// describeEntry renders the non-empty fields of an entry.
func describeEntry(e ir.TraceEntry) string {
	parts := []string{strings.ToUpper(string(e.Kind))}
	if e.Trigger != "" {
		parts = append(parts, e.Trigger)
	}
	if e.Channel != "" {
		parts = append(parts, fmt.Sprintf("'%s'", e.Channel))
	}
	if e.Source != "" {
		parts = append(parts, "from "+e.Source)
	}
	if e.Detail != "" {
		parts = append(parts, "("+e.Detail+")")
	}
	return strings.Join(parts, " ")
}

// truncateID shortens a long id or hash for display.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

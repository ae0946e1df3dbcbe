package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/playdwh/internal/history"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs and their statements",
		Long: `List the most recent runs recorded in the history database, newest
first. Given a run ID, list the statements that run executed.

Runs are only recorded when history.path is set.`,
		Example: `  # List the last 20 runs
  playdwh history --history .playdwh/history.db

  # Show the statements of one run
  playdwh history 0b6f3c4e-8a61-4d2b-9f0e-2f1d7c9a1e55`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if cc.Cfg.History.Path == "" {
		return errors.New("run history is disabled; set history.path or pass --history")
	}
	if opts.Limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", opts.Limit)
	}

	ctx := cmd.Context()
	store, err := history.Open(ctx, cc.Cfg.History.Path, cc.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	r := cc.Renderer
	if len(args) == 1 {
		stmts, err := store.Statements(ctx, args[0])
		if err != nil {
			return err
		}
		if ok, err := r.Structured(stmts); ok {
			return err
		}
		r.Header(1, "Run "+args[0])
		rows := make([][]string, 0, len(stmts))
		for _, s := range stmts {
			rows = append(rows, []string{
				strconv.Itoa(s.Seq), string(s.Phase), s.Name, string(s.Status), s.Duration.String(), s.Error,
			})
		}
		r.Table([]string{"#", "Phase", "Statement", "Status", "Duration", "Error"}, rows)
		return nil
	}

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if ok, err := r.Structured(runs); ok {
		return err
	}
	if len(runs) == 0 {
		r.Muted("No runs recorded")
		return nil
	}
	r.Header(1, "Runs")
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.CompletedAt != nil {
			duration = run.CompletedAt.Sub(run.StartedAt).String()
		}
		rows = append(rows, []string{
			run.ID,
			run.Command,
			run.Warehouse,
			string(run.Status),
			run.StartedAt.Local().Format(time.DateTime),
			duration,
			strconv.Itoa(run.Statements),
		})
	}
	r.Table([]string{"ID", "Command", "Warehouse", "Status", "Started", "Duration", "Statements"}, rows)
	return nil
}

package commands

import (
	"time"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate every table",
		Long: `Drop every staging and star schema table if it exists, then create them
all empty. Tables are dropped with the fact table first and created with the
dimensions first.`,
		Example: `  # Recreate the tables on the configured cluster
  playdwh reset

  # Recreate them in a local DuckDB file
  playdwh reset --warehouse duckdb`,
		Aliases: []string{"create-tables"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReset(cmd)
		},
	}
}

func runReset(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	start := time.Now()

	s, err := cc.openSession(ctx, "reset", false)
	if err != nil {
		return err
	}
	err = s.Reset(ctx)
	tables := len(s.Registry().Tables())
	if err = s.finish(ctx, err); err != nil {
		return err
	}

	return renderRunResult(cc, RunResult{
		Command:   "reset",
		Warehouse: cc.Cfg.Cluster.Type,
		Tables:    tables,
		Duration:  time.Since(start).Round(time.Millisecond),
		RunID:     s.runID,
	}, "Tables recreated")
}

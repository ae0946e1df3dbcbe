package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Reset bool
}

// RunResult is the structured outcome of reset and run.
type RunResult struct {
	Command   string        `json:"command" yaml:"command"`
	Warehouse string        `json:"warehouse" yaml:"warehouse"`
	Tables    int           `json:"tables" yaml:"tables"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	RunID     string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load staging tables and populate the star schema",
		Long: `Copy the activity log and song catalog into the staging tables, then
populate the users, song, artist, time and songplay tables from them.

The tables must already exist. Use --reset to drop and recreate them first.`,
		Example: `  # Load into existing tables
  playdwh run

  # Recreate every table, then load
  playdwh run --reset

  # Check every source location before copying
  playdwh run --preflight`,
		Aliases: []string{"etl"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "Drop and recreate every table before loading")
	cmd.Flags().Bool("preflight", false, "Check every source location before any copy is issued")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	start := time.Now()

	name := "run"
	if opts.Reset {
		name = "run --reset"
	}
	s, err := cc.openSession(ctx, name, cc.Cfg.Warehouse.Preflight)
	if err != nil {
		return err
	}
	if opts.Reset {
		err = s.Full(ctx)
	} else {
		err = s.Run(ctx)
	}
	tables := len(s.Registry().Tables())
	if err = s.finish(ctx, err); err != nil {
		return err
	}

	return renderRunResult(cc, RunResult{
		Command:   name,
		Warehouse: cc.Cfg.Cluster.Type,
		Tables:    tables,
		Duration:  time.Since(start).Round(time.Millisecond),
		RunID:     s.runID,
	}, "Star schema loaded")
}

func renderRunResult(cc *CommandContext, res RunResult, message string) error {
	r := cc.Renderer
	if ok, err := r.Structured(res); ok {
		return err
	}
	r.Success(fmt.Sprintf("%s in %s (%d tables, %s)", message, res.Duration, res.Tables, res.Warehouse))
	if res.RunID != "" {
		r.Muted("Recorded as run " + res.RunID)
	}
	return nil
}

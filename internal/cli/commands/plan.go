package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/playdwh/internal/cli/output"
	"github.com/leapstack-labs/playdwh/internal/pipeline"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/spf13/cobra"
)

// PlanOptions holds options for the plan command.
type PlanOptions struct {
	Phases []string
}

// PlanOutput is the structured form of a rendered plan.
type PlanOutput struct {
	Warehouse  string           `json:"warehouse" yaml:"warehouse"`
	Statements []core.Statement `json:"statements" yaml:"statements"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	opts := &PlanOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the SQL statements without connecting",
		Long: `Render every statement the pipeline would issue, in execution order,
for the configured warehouse. Nothing is executed and no connection is made.`,
		Example: `  # Show the full plan for Redshift
  playdwh plan

  # Show only the copy statements
  playdwh plan --phase copy

  # Show the DuckDB rendering as JSON
  playdwh plan --warehouse duckdb -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Phases, "phase", "p", nil, "Phases to render: drop, create, copy, insert (default all)")

	return cmd
}

func parsePhases(names []string) ([]core.Phase, error) {
	var phases []core.Phase
	for _, n := range names {
		p := core.Phase(strings.ToLower(strings.TrimSpace(n)))
		if !slices.Contains(core.Phases(), p) {
			return nil, fmt.Errorf("unknown phase %q (valid: drop, create, copy, insert)", n)
		}
		if !slices.Contains(phases, p) {
			phases = append(phases, p)
		}
	}
	// Keep execution order regardless of flag order.
	slices.SortFunc(phases, func(a, b core.Phase) int {
		return slices.Index(core.Phases(), a) - slices.Index(core.Phases(), b)
	})
	return phases, nil
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	phases, err := parsePhases(opts.Phases)
	if err != nil {
		return err
	}
	if err := cc.resolveSecrets(cmd.Context()); err != nil {
		return err
	}
	pcfg, err := cc.Cfg.PipelineConfig()
	if err != nil {
		return err
	}
	stmts, err := pipeline.Plan(pcfg, phases...)
	if err != nil {
		return err
	}

	out := PlanOutput{Warehouse: cc.Cfg.Cluster.Type, Statements: stmts}
	r := cc.Renderer
	if ok, err := r.Structured(out); ok {
		return err
	}
	renderPlan(r, out)
	return nil
}

func renderPlan(r *output.Renderer, plan PlanOutput) {
	markdown := r.EffectiveMode() == output.ModeMarkdown
	styles := r.Styles()

	r.Header(1, fmt.Sprintf("Plan (%s, %d statements)", plan.Warehouse, len(plan.Statements)))
	var phase core.Phase
	for _, s := range plan.Statements {
		if s.Phase != phase {
			phase = s.Phase
			if !markdown {
				r.Println()
			}
			r.Header(2, output.Title(string(phase)))
		}
		if markdown {
			r.Println(output.FormatHeader(3, s.Name))
			r.Println()
			r.Println(output.FormatCodeBlock("sql", s.SQL+";"))
			r.Println()
			continue
		}
		r.Println(styles.Muted.Render("-- " + s.Name))
		r.Println(styles.Code.Render(s.SQL + ";"))
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/playdwh/internal/cli/output"
	"github.com/leapstack-labs/playdwh/internal/jsonpaths"
	"github.com/leapstack-labs/playdwh/internal/objstore"
	"github.com/leapstack-labs/playdwh/internal/pipeline"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/spf13/cobra"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Connect bool
}

// CheckStatus is the outcome of one check.
type CheckStatus string

// Check statuses.
const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// CheckResult is one line of the check report.
type CheckResult struct {
	Name   string      `json:"name" yaml:"name"`
	Status CheckStatus `json:"status" yaml:"status"`
	Detail string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// CheckReport is the structured output of the check command.
type CheckReport struct {
	Warehouse string        `json:"warehouse" yaml:"warehouse"`
	Checks    []CheckResult `json:"checks" yaml:"checks"`
	Failed    int           `json:"failed" yaml:"failed"`
}

func (r *CheckReport) add(name string, err error) bool {
	res := CheckResult{Name: name, Status: CheckPassed}
	if err != nil {
		res.Status = CheckFailed
		res.Detail = err.Error()
		r.Failed++
	}
	r.Checks = append(r.Checks, res)
	return err == nil
}

func (r *CheckReport) skip(name, reason string) {
	r.Checks = append(r.Checks, CheckResult{Name: name, Status: CheckSkipped, Detail: reason})
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and source locations",
		Long: `Validate the configuration, confirm every source location exists and,
when a JSONPaths document is configured, that it selects the staging_event
columns in order. With --connect, also connect to the warehouse and verify
that every table exists with its declared columns.`,
		Example: `  # Check configuration and sources
  playdwh check

  # Also verify the tables on the cluster
  playdwh check --connect`,
		Aliases: []string{"doctor"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Connect, "connect", false, "Connect to the warehouse and verify the tables")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	report := buildCheckReport(cmd.Context(), cc, opts)

	r := cc.Renderer
	if ok, err := r.Structured(report); ok {
		if err != nil {
			return err
		}
	} else {
		renderCheckReport(r, report)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d checks failed", report.Failed, len(report.Checks))
	}
	return nil
}

func buildCheckReport(ctx context.Context, cc *CommandContext, opts *CheckOptions) *CheckReport {
	cfg := cc.Cfg
	report := &CheckReport{Warehouse: cfg.Cluster.Type}

	if !report.add("secrets", cc.resolveSecrets(ctx)) {
		return report
	}
	pcfg, err := cfg.PipelineConfig()
	if err == nil {
		_, err = pipeline.Registry(pcfg, cc.Logger)
	}
	if !report.add("configuration", err) {
		return report
	}

	store, err := cc.objectStore(ctx)
	if !report.add("object store", err) {
		return report
	}
	report.add("log_data", store.Check(ctx, cfg.S3.LogData))
	report.add("song_data", store.Check(ctx, cfg.S3.SongData))
	if cfg.S3.LogJSONPath == "" || cfg.S3.LogJSONPath == schema.AutoFormat {
		report.skip("log_jsonpath", "records are matched by column name")
	} else {
		report.add("log_jsonpath", checkJSONPaths(ctx, store, cfg.S3.LogJSONPath))
	}

	if !opts.Connect {
		report.skip("tables", "use --connect to verify")
		return report
	}
	if !report.add("connection settings", cfg.ValidateConnection()) {
		return report
	}
	p, err := pipeline.Open(ctx, pcfg, cc.Logger)
	if !report.add("connection", err) {
		return report
	}
	report.add("tables", errors.Join(p.Verify(ctx), p.Close()))
	return report
}

// checkJSONPaths fetches the document and checks it against the staging_event
// columns.
func checkJSONPaths(ctx context.Context, store *objstore.Store, location string) error {
	data, err := store.Get(ctx, location)
	if err != nil {
		return err
	}
	doc, err := jsonpaths.Parse(data)
	if err != nil {
		return err
	}
	return doc.Validate(stagingEventKeys())
}

func stagingEventKeys() []string {
	for _, t := range schema.Tables() {
		if t.Name != schema.StagingEvent {
			continue
		}
		keys := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			keys = append(keys, c.SourceKey())
		}
		return keys
	}
	return nil
}

func renderCheckReport(r *output.Renderer, report *CheckReport) {
	styles := r.Styles()
	markdown := r.EffectiveMode() == output.ModeMarkdown

	r.Header(1, fmt.Sprintf("Check (%s)", report.Warehouse))
	for _, c := range report.Checks {
		line := c.Name
		if c.Detail != "" {
			line += ": " + c.Detail
		}
		switch c.Status {
		case CheckPassed:
			r.Success(line)
		case CheckFailed:
			r.Error(line)
		default:
			if markdown {
				r.Println("- " + line + " _(skipped)_")
			} else {
				r.Println(styles.Muted.Render("- " + line))
			}
		}
	}
	if !markdown {
		r.Println()
	}
	total := len(report.Checks)
	if report.Failed == 0 {
		r.Success(fmt.Sprintf("All %d checks passed or skipped", total))
	}
}

// Package transform populates the dimension and fact tables from staging.
package transform

import (
	"context"

	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/pkg/core"
)

// Stage executes the insert statements of a registry.
type Stage struct {
	reg    *schema.Registry
	runner *runner.Runner
}

// New creates a transform stage. A nil runner uses a default one.
func New(reg *schema.Registry, r *runner.Runner) *Stage {
	if r == nil {
		r = runner.New(nil)
	}
	return &Stage{reg: reg, runner: r}
}

// InsertAll runs the inserts in their declared order: users, song, artist,
// time, then songplay. The first failure is returned as a *core.TransformError.
func (s *Stage) InsertAll(ctx context.Context, session runner.Session) error {
	return s.runner.Run(ctx, session, core.PhaseInsert, s.reg.InsertStatements(), func(stmt core.Statement, err error) error {
		return &core.TransformError{Table: stmt.Table, Err: err}
	})
}

// Package loader bulk-copies source records into the staging tables.
package loader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"golang.org/x/sync/errgroup"
)

// SourceChecker reports whether a source location holds at least one object.
type SourceChecker interface {
	Check(ctx context.Context, location string) error
}

// Loader executes the copy statements of a registry.
type Loader struct {
	reg       *schema.Registry
	runner    *runner.Runner
	preflight SourceChecker
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPreflight checks every source location before any copy is issued.
func WithPreflight(c SourceChecker) Option {
	return func(l *Loader) { l.preflight = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a loader. A nil runner uses a default one.
func New(reg *schema.Registry, r *runner.Runner, opts ...Option) *Loader {
	l := &Loader{reg: reg, runner: r}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.runner == nil {
		l.runner = runner.New(l.logger)
	}
	return l
}

// CopyAll copies staging_event then staging_song. A failed copy is returned
// as a *core.LoadError and nothing after it runs.
func (l *Loader) CopyAll(ctx context.Context, session runner.Session) error {
	if l.preflight != nil {
		if err := l.Preflight(ctx); err != nil {
			return err
		}
	}

	locations := make(map[string]string)
	for _, src := range l.reg.Sources() {
		locations[src.Table] = src.Location
	}
	return l.runner.Run(ctx, session, core.PhaseCopy, l.reg.CopyStatements(), func(stmt core.Statement, err error) error {
		return &core.LoadError{Table: stmt.Table, Source: locations[stmt.Table], Err: err}
	})
}

// Preflight checks every source location, and the JSONPaths document when one
// is configured, concurrently. It returns the first failure as a
// *core.LoadError. Without a checker it does nothing.
func (l *Loader) Preflight(ctx context.Context) error {
	if l.preflight == nil {
		return nil
	}
	type check struct{ table, location string }
	var checks []check
	for _, src := range l.reg.Sources() {
		checks = append(checks, check{src.Table, src.Location})
		if src.Format != schema.AutoFormat {
			checks = append(checks, check{src.Table, src.Format})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			if err := l.preflight.Check(gctx, c.location); err != nil {
				return &core.LoadError{Table: c.table, Source: c.location, Err: fmt.Errorf("preflight: %w", err)}
			}
			l.logger.Debug("source reachable", slog.String("table", c.table), slog.String("source", c.location))
			return nil
		})
	}
	return g.Wait()
}

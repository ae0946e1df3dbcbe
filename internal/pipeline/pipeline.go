// Package pipeline wires the schema registry, bulk loader and transform stage
// to a single warehouse session.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/playdwh/internal/loader"
	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/internal/transform"
	"github.com/leapstack-labs/playdwh/pkg/adapter"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"

	// Register warehouse adapters and their dialects.
	_ "github.com/leapstack-labs/playdwh/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/playdwh/pkg/adapters/redshift"
)

// DefaultWarehouse is used when Warehouse.Type is empty.
const DefaultWarehouse = "redshift"

// Config holds everything needed to build and run a pipeline.
type Config struct {
	Warehouse core.WarehouseConfig
	Schema    schema.Config
	Commit    runner.CommitPolicy

	// Checker, when set, checks every source location before any copy is issued.
	Checker loader.SourceChecker
	// Observer is notified of every executed statement.
	Observer runner.Observer
}

// Pipeline owns one warehouse session. Close must be called on every path.
type Pipeline struct {
	session   adapter.Adapter
	reg       *schema.Registry
	loader    *loader.Loader
	transform *transform.Stage
	logger    *slog.Logger
}

// Registry validates cfg and renders its statements for the configured
// warehouse type. It does not connect.
func Registry(cfg Config, logger *slog.Logger) (*schema.Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	typ := warehouseType(cfg.Warehouse)
	d, ok := dialect.Get(typ)
	if !ok {
		return nil, &adapter.UnknownAdapterError{Type: typ, Available: dialect.List()}
	}
	r := newRunner(cfg, logger)
	return schema.New(cfg.Schema, d, schema.WithRunner(r), schema.WithLogger(logger))
}

// Plan returns the statements of the given phases in execution order, or of
// every phase when none are given, without connecting.
func Plan(cfg Config, phases ...core.Phase) ([]core.Statement, error) {
	reg, err := Registry(cfg, nil)
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		phases = core.Phases()
	}
	var out []core.Statement
	for _, p := range phases {
		out = append(out, reg.Statements(p)...)
	}
	return out, nil
}

// Open validates cfg, then opens the warehouse session. Nothing is left
// open when Open fails.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.Warehouse.Type = warehouseType(cfg.Warehouse)

	r := newRunner(cfg, logger)
	d, ok := dialect.Get(cfg.Warehouse.Type)
	if !ok {
		return nil, &adapter.UnknownAdapterError{Type: cfg.Warehouse.Type, Available: adapter.ListAdapters()}
	}
	reg, err := schema.New(cfg.Schema, d, schema.WithRunner(r), schema.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	session, err := adapter.NewAdapter(cfg.Warehouse, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse adapter: %w", err)
	}
	logger.Debug("connecting to warehouse", slog.String("type", cfg.Warehouse.Type), slog.String("host", cfg.Warehouse.Host))
	if err := session.Connect(ctx, cfg.Warehouse); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	var lopts []loader.Option
	lopts = append(lopts, loader.WithLogger(logger))
	if cfg.Checker != nil {
		lopts = append(lopts, loader.WithPreflight(cfg.Checker))
	}

	logger.Info("warehouse connected",
		slog.String("type", cfg.Warehouse.Type),
		slog.String("commit", r.Policy().String()))
	return &Pipeline{
		session:   session,
		reg:       reg,
		loader:    loader.New(reg, r, lopts...),
		transform: transform.New(reg, r),
		logger:    logger,
	}, nil
}

func warehouseType(cfg core.WarehouseConfig) string {
	if cfg.Type == "" {
		return DefaultWarehouse
	}
	return strings.ToLower(cfg.Type)
}

func newRunner(cfg Config, logger *slog.Logger) *runner.Runner {
	opts := []runner.Option{runner.WithCommitPolicy(cfg.Commit)}
	if cfg.Observer != nil {
		opts = append(opts, runner.WithObserver(cfg.Observer))
	}
	return runner.New(logger, opts...)
}

// Registry returns the schema registry the pipeline executes.
func (p *Pipeline) Registry() *schema.Registry { return p.reg }

// Session returns the open warehouse session.
func (p *Pipeline) Session() adapter.Adapter { return p.session }

// Reset drops and recreates every table.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.reg.DropAll(ctx, p.session); err != nil {
		return err
	}
	if err := p.reg.CreateAll(ctx, p.session); err != nil {
		return err
	}
	p.logger.Info("tables reset", slog.Int("tables", len(p.reg.Tables())))
	return nil
}

// Run loads the staging tables and populates the star schema.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.loader.CopyAll(ctx, p.session); err != nil {
		return err
	}
	if err := p.transform.InsertAll(ctx, p.session); err != nil {
		return err
	}
	p.logger.Info("star schema loaded")
	return nil
}

// Full runs Reset then Run.
func (p *Pipeline) Full(ctx context.Context) error {
	if err := p.Reset(ctx); err != nil {
		return err
	}
	return p.Run(ctx)
}

// Preflight checks the source locations without touching the warehouse.
func (p *Pipeline) Preflight(ctx context.Context) error {
	return p.loader.Preflight(ctx)
}

// Verify checks that every table exists with its declared columns.
func (p *Pipeline) Verify(ctx context.Context) error {
	return p.reg.Verify(ctx, p.session)
}

// Close closes the warehouse session.
func (p *Pipeline) Close() error {
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	if err != nil {
		return fmt.Errorf("failed to close warehouse session: %w", err)
	}
	return nil
}

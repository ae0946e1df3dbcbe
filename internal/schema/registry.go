// Package schema is the catalog of warehouse tables and the ordered statement
// lists that drop, create, load and populate them.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

// dropOrder is the order tables are dropped in. The fact table goes before
// the dimensions it references.
var dropOrder = []string{StagingEvent, StagingSong, Songplay, Users, Song, Artist, Time}

// Registry renders and executes the statement lists for one configuration
// and dialect. It holds no connection.
type Registry struct {
	cfg    Config
	d      *dialect.Dialect
	tables []Table
	runner *runner.Runner
	logger *slog.Logger

	drop, create, copies, insert []core.Statement
}

// Option configures a Registry.
type Option func(*Registry)

// WithRunner sets the statement runner used by DropAll and CreateAll.
func WithRunner(r *runner.Runner) Option {
	return func(reg *Registry) { reg.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(reg *Registry) { reg.logger = l }
}

// New validates cfg against d and renders every statement list.
func New(cfg Config, d *dialect.Dialect, opts ...Option) (*Registry, error) {
	if d == nil {
		return nil, &core.SchemaError{Op: "configure", Err: dialect.ErrDialectRequired}
	}
	if err := cfg.Validate(d); err != nil {
		return nil, &core.SchemaError{Op: "configure", Err: err}
	}

	r := &Registry{cfg: cfg, d: d, tables: Tables()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.runner == nil {
		r.runner = runner.New(r.logger)
	}

	if err := checkCreateOrder(r.tables); err != nil {
		return nil, err
	}
	if err := checkDropOrder(r.tables, dropOrder); err != nil {
		return nil, err
	}
	if err := checkInsertOrder(r.tables, inserts); err != nil {
		return nil, err
	}

	for _, name := range dropOrder {
		t, _ := r.table(name)
		r.drop = append(r.drop, dropTable(d, t)...)
	}
	for _, t := range r.tables {
		r.create = append(r.create, createTable(d, t)...)
	}
	for _, src := range r.sources() {
		r.copies = append(r.copies, r.copyStatement(src))
	}
	for _, spec := range inserts {
		r.insert = append(r.insert, core.Statement{
			Phase: core.PhaseInsert,
			Table: spec.table,
			Name:  "insert_" + spec.table,
			SQL:   spec.sql(d, r.cfg),
		})
	}
	return r, nil
}

// Dialect returns the dialect statements are rendered for.
func (r *Registry) Dialect() *dialect.Dialect { return r.d }

// Config returns the validated configuration, defaults filled in.
func (r *Registry) Config() Config { return r.cfg }

// Tables returns the table definitions in creation order.
func (r *Registry) Tables() []Table { return slices.Clone(r.tables) }

// Sources returns the staging tables and their source locations in copy order.
func (r *Registry) Sources() []Source { return r.sources() }

// DropStatements returns DROP TABLE IF EXISTS for every table.
func (r *Registry) DropStatements() []core.Statement { return slices.Clone(r.drop) }

// CreateStatements returns CREATE TABLE for every table, staging tables first
// and the fact table last.
func (r *Registry) CreateStatements() []core.Statement { return slices.Clone(r.create) }

// CopyStatements returns one bulk copy per staging table.
func (r *Registry) CopyStatements() []core.Statement { return slices.Clone(r.copies) }

// InsertStatements returns the five inserts, dimensions first and songplay last.
func (r *Registry) InsertStatements() []core.Statement { return slices.Clone(r.insert) }

// Statements returns the statements of one phase.
func (r *Registry) Statements(p core.Phase) []core.Statement {
	switch p {
	case core.PhaseDrop:
		return r.DropStatements()
	case core.PhaseCreate:
		return r.CreateStatements()
	case core.PhaseCopy:
		return r.CopyStatements()
	case core.PhaseInsert:
		return r.InsertStatements()
	default:
		return nil
	}
}

// DropAll drops every table. Drops are IF EXISTS, so DropAll succeeds on an
// empty warehouse.
func (r *Registry) DropAll(ctx context.Context, session runner.Session) error {
	return r.runner.Run(ctx, session, core.PhaseDrop, r.drop, schemaErr("drop"))
}

// CreateAll creates every table. It fails if a table already exists.
func (r *Registry) CreateAll(ctx context.Context, session runner.Session) error {
	return r.runner.Run(ctx, session, core.PhaseCreate, r.create, schemaErr("create"))
}

func schemaErr(op string) runner.WrapFunc {
	return func(stmt core.Statement, err error) error {
		return &core.SchemaError{Op: op, Table: stmt.Table, Err: err}
	}
}

// Catalog reads table metadata from the warehouse.
type Catalog interface {
	TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error)
}

// Verify checks that every table exists with its declared columns in order.
func (r *Registry) Verify(ctx context.Context, session Catalog) error {
	for _, t := range r.tables {
		meta, err := session.TableMetadata(ctx, t.Name)
		if err != nil {
			return &core.SchemaError{Op: "verify", Table: t.Name, Err: err}
		}
		if len(meta.Columns) != len(t.Columns) {
			return &core.SchemaError{Op: "verify", Table: t.Name,
				Err: fmt.Errorf("has %d columns, want %d", len(meta.Columns), len(t.Columns))}
		}
		for i, c := range t.Columns {
			if meta.Columns[i].Name != c.Name {
				return &core.SchemaError{Op: "verify", Table: t.Name,
					Err: fmt.Errorf("column %d is %q, want %q", i+1, meta.Columns[i].Name, c.Name)}
			}
		}
		r.logger.Debug("table verified", slog.String("table", t.Name), slog.Int("columns", len(meta.Columns)))
	}
	return nil
}

func (r *Registry) table(name string) (Table, bool) {
	for _, t := range r.tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// checkCreateOrder requires every foreign key to reference a table created earlier.
func checkCreateOrder(tables []Table) error {
	created := make(map[string]bool, len(tables))
	for _, t := range tables {
		for _, ref := range t.References() {
			if !created[ref] {
				return &core.SchemaError{Op: "order", Table: t.Name,
					Err: fmt.Errorf("references %s, which is created later", ref)}
			}
		}
		created[t.Name] = true
	}
	return nil
}

// checkDropOrder requires order to name every table once and to drop each
// table before the tables it references.
func checkDropOrder(tables []Table, order []string) error {
	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}
	if len(order) != len(tables) {
		return &core.SchemaError{Op: "order", Err: fmt.Errorf("drop order names %d tables, want %d", len(order), len(tables))}
	}
	dropped := make(map[string]bool, len(order))
	for _, name := range order {
		t, ok := byName[name]
		if !ok || dropped[name] {
			return &core.SchemaError{Op: "order", Table: name, Err: fmt.Errorf("unknown or repeated table in drop order")}
		}
		for _, ref := range t.References() {
			if dropped[ref] {
				return &core.SchemaError{Op: "order", Table: name,
					Err: fmt.Errorf("dropped after %s, which it references", ref)}
			}
		}
		dropped[name] = true
	}
	return nil
}

// checkInsertOrder requires each insert's inputs, and the targets of its
// foreign keys, to be populated before it runs. Staging tables are populated
// by the copy phase.
func checkInsertOrder(tables []Table, specs []insertSpec) error {
	byName := make(map[string]Table, len(tables))
	populated := make(map[string]bool, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
		if t.Kind == KindStaging {
			populated[t.Name] = true
		}
	}
	for _, spec := range specs {
		t, ok := byName[spec.table]
		if !ok {
			return &core.SchemaError{Op: "order", Table: spec.table, Err: fmt.Errorf("insert into unknown table")}
		}
		deps := append(slices.Clone(spec.reads), t.References()...)
		for _, dep := range deps {
			if !populated[dep] {
				return &core.SchemaError{Op: "order", Table: spec.table,
					Err: fmt.Errorf("depends on %s, which is populated later", dep)}
			}
		}
		populated[spec.table] = true
	}
	return nil
}

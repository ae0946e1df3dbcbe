// Package redshift provides the Amazon Redshift warehouse adapter for playdwh.
// Redshift speaks the PostgreSQL wire protocol, so the session is opened
// through the pgx database/sql driver.
package redshift

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/leapstack-labs/playdwh/pkg/adapter"
	"github.com/leapstack-labs/playdwh/pkg/adapters/redshift/dialect"
	"github.com/leapstack-labs/playdwh/pkg/core"
	sqldialect "github.com/leapstack-labs/playdwh/pkg/dialect"
)

// DefaultPort is the port Redshift clusters listen on unless configured otherwise.
const DefaultPort = 5439

// Adapter implements the adapter.Adapter interface for Redshift.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new Redshift adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the Redshift dialect.
func (a *Adapter) Dialect() *sqldialect.Dialect {
	return dialect.Redshift
}

// Connect opens a single-connection session to the cluster.
func (a *Adapter) Connect(ctx context.Context, cfg core.WarehouseConfig) error {
	a.Logger.Debug("connecting to redshift",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", BuildDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to open redshift connection: %w", err)
	}
	return a.attach(ctx, db, cfg)
}

// attach configures db as the adapter's session. It takes ownership of db and
// closes it on failure.
func (a *Adapter) attach(ctx context.Context, db *sql.DB, cfg core.WarehouseConfig) error {
	// Session settings such as statement_timeout only hold on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping redshift: %w", err)
	}

	if cfg.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET statement_timeout TO %d", cfg.StatementTimeout.Milliseconds())
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to set statement timeout: %w", err)
		}
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// TableMetadata reads a table's columns from information_schema.
func (a *Adapter) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return a.TableMetadataCommon(ctx, table, dialect.Redshift)
}

// BuildDSN constructs a libpq key/value connection string for the cluster.
// Values are single-quoted so passwords may contain spaces or quotes. The
// simple query protocol is used because Redshift rejects parts of the
// extended protocol that pgx relies on for statement caching.
func BuildDSN(cfg core.WarehouseConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	opts := map[string]string{
		"sslmode":                 "require",
		"default_query_exec_mode": "simple_protocol",
	}
	for k, v := range cfg.Options {
		opts[k] = v
	}

	parts := []string{
		"host=" + dsnValue(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + dsnValue(cfg.Database),
	}
	if cfg.Username != "" {
		parts = append(parts, "user="+dsnValue(cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+dsnValue(opts[k]))
	}
	return strings.Join(parts, " ")
}

func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)

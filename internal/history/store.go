// Package history records pipeline runs and their statements in a local
// SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/pkg/core"

	_ "modernc.org/sqlite" // sqlite driver
)

// RunStatus is the outcome of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one CLI invocation that touched the warehouse.
type Run struct {
	ID          string     `json:"id" yaml:"id"`
	Command     string     `json:"command" yaml:"command"`
	Warehouse   string     `json:"warehouse" yaml:"warehouse"`
	Status      RunStatus  `json:"status" yaml:"status"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	Statements  int        `json:"statements" yaml:"statements"`
}

// StatementRecord is one executed statement of a run.
type StatementRecord struct {
	Seq      int           `json:"seq" yaml:"seq"`
	Phase    core.Phase    `json:"phase" yaml:"phase"`
	Table    string        `json:"table" yaml:"table"`
	Name     string        `json:"name" yaml:"name"`
	Status   RunStatus     `json:"status" yaml:"status"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store is a run history database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One connection: an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("history database opened", slog.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun records a new running run and returns its ID.
func (s *Store) StartRun(ctx context.Context, command, warehouse string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, warehouse, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, command, warehouse, string(RunStatusRunning), s.now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	s.logger.Debug("run started", slog.String("id", id), slog.String("command", command))
	return id, nil
}

// CompleteRun marks a run succeeded, or failed when runErr is non-nil.
func (s *Store) CompleteRun(ctx context.Context, id string, runErr error) error {
	status := RunStatusSucceeded
	var msg *string
	if runErr != nil {
		status = RunStatusFailed
		m := runErr.Error()
		msg = &m
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), s.now().UTC().UnixMilli(), msg, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// Observer returns a runner observer that records statements under runID.
func (s *Store) Observer(runID string) runner.Observer {
	return &recorder{store: s, runID: runID}
}

type recorder struct {
	store *Store
	runID string
}

func (r *recorder) ObserveStatement(ctx context.Context, res runner.Result) {
	status := RunStatusSucceeded
	var msg *string
	if res.Err != nil {
		status = RunStatusFailed
		m := res.Err.Error()
		msg = &m
	}
	// The run's context may already be canceled; the record is still wanted.
	_, err := r.store.db.ExecContext(context.WithoutCancel(ctx),
		`INSERT INTO statements (run_id, seq, phase, table_name, name, status, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, res.Seq, string(res.Statement.Phase), res.Statement.Table, res.Statement.Name,
		string(status), res.Duration.Milliseconds(), msg)
	if err != nil {
		r.store.logger.Warn("failed to record statement",
			slog.String("run", r.runID), slog.String("statement", res.Statement.Name), slog.String("error", err.Error()))
	}
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.command, r.warehouse, r.status, r.started_at, r.completed_at, r.error,
		       (SELECT COUNT(*) FROM statements st WHERE st.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			status    string
			started   int64
			completed sql.NullInt64
			errMsg    sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Warehouse, &status, &started, &completed, &errMsg, &run.Statements); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Status = RunStatus(status)
		run.StartedAt = time.UnixMilli(started).UTC()
		if completed.Valid {
			t := time.UnixMilli(completed.Int64).UTC()
			run.CompletedAt = &t
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ErrRunNotFound is returned by Statements for an unknown run.
var ErrRunNotFound = errors.New("run not found")

// Statements returns the statements recorded for a run, in execution order.
func (s *Store) Statements(ctx context.Context, runID string) ([]StatementRecord, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, phase, table_name, name, status, duration_ms, error
		FROM statements WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StatementRecord
	for rows.Next() {
		var (
			rec    StatementRecord
			phase  string
			status string
			ms     int64
			errMsg sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &phase, &rec.Table, &rec.Name, &status, &ms, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		rec.Phase = core.Phase(phase)
		rec.Status = RunStatus(status)
		rec.Duration = time.Duration(ms) * time.Millisecond
		rec.Error = errMsg.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statements: %w", err)
	}
	return out, nil
}

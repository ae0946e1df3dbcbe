// Package runner executes ordered statement lists against a single warehouse
// session. It is shared by the schema, loader and transform stages.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/playdwh/pkg/adapter"
	"github.com/leapstack-labs/playdwh/pkg/core"
)

// CommitPolicy controls transaction boundaries.
type CommitPolicy int

const (
	// CommitPerStatement commits after every statement. A failure leaves the
	// statements before it applied.
	CommitPerStatement CommitPolicy = iota
	// CommitPerPhase runs each phase in one transaction and rolls it back on failure.
	CommitPerPhase
)

func (p CommitPolicy) String() string {
	switch p {
	case CommitPerStatement:
		return "statement"
	case CommitPerPhase:
		return "phase"
	default:
		return fmt.Sprintf("CommitPolicy(%d)", int(p))
	}
}

// ParseCommitPolicy parses "statement" or "phase". Empty means statement.
func ParseCommitPolicy(s string) (CommitPolicy, error) {
	switch s {
	case "", "statement":
		return CommitPerStatement, nil
	case "phase":
		return CommitPerPhase, nil
	default:
		return 0, fmt.Errorf("unknown commit policy %q (want statement or phase)", s)
	}
}

// Session is the part of a warehouse adapter the runner needs.
type Session interface {
	Begin(ctx context.Context) (adapter.Tx, error)
}

// Result describes one executed statement.
type Result struct {
	Seq       int
	Statement core.Statement
	Started   time.Time
	Duration  time.Duration
	// Err is the unwrapped driver error, nil on success.
	Err error
}

// Observer is notified after every statement, successful or not.
type Observer interface {
	ObserveStatement(ctx context.Context, r Result)
}

// WrapFunc converts a statement failure into the caller's error type.
type WrapFunc func(stmt core.Statement, err error) error

// Runner executes statements one at a time. It is not safe for concurrent use.
type Runner struct {
	logger   *slog.Logger
	policy   CommitPolicy
	observer Observer
	now      func() time.Time
	seq      int
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommitPolicy sets the commit policy.
func WithCommitPolicy(p CommitPolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithObserver registers an observer for executed statements.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// New creates a runner. If logger is nil, a discard logger is used.
func New(logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the runner's commit policy.
func (r *Runner) Policy() CommitPolicy { return r.policy }

// Run executes stmts in order and stops at the first failure, which is
// returned through wrap.
func (r *Runner) Run(ctx context.Context, session Session, phase core.Phase, stmts []core.Statement, wrap WrapFunc) error {
	if wrap == nil {
		wrap = func(_ core.Statement, err error) error { return err }
	}
	log := r.logger.With(slog.String("phase", string(phase)))
	log.Info("phase started", slog.Int("statements", len(stmts)), slog.String("commit", r.policy.String()))
	started := r.now()

	var err error
	if r.policy == CommitPerPhase {
		err = r.runInTx(ctx, session, log, stmts, wrap)
	} else {
		err = r.runEach(ctx, session, log, stmts, wrap)
	}
	if err != nil {
		log.Error("phase failed", slog.String("error", err.Error()))
		return err
	}
	log.Info("phase completed", slog.Duration("duration", r.now().Sub(started)))
	return nil
}

func (r *Runner) runEach(ctx context.Context, session Session, log *slog.Logger, stmts []core.Statement, wrap WrapFunc) error {
	for _, stmt := range stmts {
		if err := r.exec(ctx, session, nil, log, stmt); err != nil {
			return wrap(stmt, err)
		}
	}
	return nil
}

func (r *Runner) runInTx(ctx context.Context, session Session, log *slog.Logger, stmts []core.Statement, wrap WrapFunc) error {
	if len(stmts) == 0 {
		return nil
	}
	tx, err := session.Begin(ctx)
	if err != nil {
		return wrap(stmts[0], err)
	}
	for _, stmt := range stmts {
		if err := r.exec(ctx, session, tx, log, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Warn("rollback failed", slog.String("error", rbErr.Error()))
			}
			return wrap(stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrap(stmts[len(stmts)-1], fmt.Errorf("commit: %w", err))
	}
	return nil
}

// exec runs one statement. With a nil tx the statement gets its own
// transaction and is committed before returning.
func (r *Runner) exec(ctx context.Context, session Session, tx adapter.Tx, log *slog.Logger, stmt core.Statement) error {
	r.seq++
	res := Result{Seq: r.seq, Statement: stmt, Started: r.now()}

	err := ctx.Err()
	if err == nil {
		if tx != nil {
			err = tx.Exec(ctx, stmt.SQL)
		} else {
			err = execCommit(ctx, session, stmt.SQL)
		}
	}
	res.Duration = r.now().Sub(res.Started)
	res.Err = err

	attrs := []any{
		slog.String("table", stmt.Table),
		slog.String("statement", stmt.Name),
		slog.Duration("duration", res.Duration),
	}
	if err != nil {
		log.Error("statement failed", append(attrs, slog.String("error", err.Error()))...)
	} else {
		log.Info("statement executed", attrs...)
	}
	log.Debug("statement text", slog.String("statement", stmt.Name), slog.String("sql", stmt.SQL))

	if r.observer != nil {
		r.observer.ObserveStatement(ctx, res)
	}
	return err
}

func execCommit(ctx context.Context, session Session, sql string) error {
	tx, err := session.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.Exec(ctx, sql); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

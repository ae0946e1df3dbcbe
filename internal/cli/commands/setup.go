package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/playdwh/internal/cli/config"
	"github.com/leapstack-labs/playdwh/internal/cli/output"
	"github.com/leapstack-labs/playdwh/internal/history"
	"github.com/leapstack-labs/playdwh/internal/objstore"
	"github.com/leapstack-labs/playdwh/internal/pipeline"
	"github.com/leapstack-labs/playdwh/internal/secrets"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from the configuration and logger
// stored by the root command.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetConfig(cmd.Context())
	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// resolveSecrets replaces ssm: references in the configuration. The SSM
// client is only created when a reference exists.
func (cc *CommandContext) resolveSecrets(ctx context.Context) error {
	if !cc.Cfg.HasSecretReferences() {
		return nil
	}
	r, err := secrets.NewFromConfig(ctx, cc.Cfg.S3.Region)
	if err != nil {
		return err
	}
	return cc.Cfg.ResolveSecrets(ctx, r)
}

// objectStore returns a store for the configured sources, with an S3 client
// only when one of them is on S3.
func (cc *CommandContext) objectStore(ctx context.Context) (*objstore.Store, error) {
	for _, loc := range []string{cc.Cfg.S3.LogData, cc.Cfg.S3.SongData, cc.Cfg.S3.LogJSONPath} {
		if objstore.IsS3(loc) {
			return objstore.NewFromConfig(ctx, cc.Cfg.S3.Region, cc.Logger)
		}
	}
	return objstore.New(nil, cc.Logger), nil
}

// session is an open pipeline plus the history run it records into.
type session struct {
	*pipeline.Pipeline
	history *history.Store
	runID   string
	logger  *slog.Logger
}

// openSession connects to the warehouse. When history is configured the run
// is recorded under command; finish must be called on every path.
func (cc *CommandContext) openSession(ctx context.Context, command string, preflight bool) (*session, error) {
	if err := cc.Cfg.ValidateConnection(); err != nil {
		return nil, err
	}
	if err := cc.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	pcfg, err := cc.Cfg.PipelineConfig()
	if err != nil {
		return nil, err
	}

	s := &session{logger: cc.Logger}
	if path := cc.Cfg.History.Path; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		store, err := history.Open(ctx, path, cc.Logger)
		if err != nil {
			return nil, err
		}
		id, err := store.StartRun(ctx, command, cc.Cfg.Cluster.Type)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		s.history, s.runID = store, id
		pcfg.Observer = store.Observer(id)
	}

	if preflight {
		store, err := cc.objectStore(ctx)
		if err != nil {
			return nil, s.finish(ctx, err)
		}
		pcfg.Checker = store
	}

	p, err := pipeline.Open(ctx, pcfg, cc.Logger)
	if err != nil {
		return nil, s.finish(ctx, err)
	}
	s.Pipeline = p
	return s, nil
}

// finish closes the session and completes the history run with runErr.
// It returns runErr joined with any close failure.
func (s *session) finish(ctx context.Context, runErr error) error {
	var closeErr error
	if s.Pipeline != nil {
		closeErr = s.Close()
	}
	if s.history != nil {
		if err := s.history.CompleteRun(context.WithoutCancel(ctx), s.runID, runErr); err != nil {
			s.logger.Warn("failed to record run", slog.String("run", s.runID), slog.String("error", err.Error()))
		}
		_ = s.history.Close()
	}
	return errors.Join(runErr, closeErr)
}

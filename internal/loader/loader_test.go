package loader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/internal/testutil"
	"github.com/leapstack-labs/playdwh/pkg/adapter"
	rsdialect "github.com/leapstack-labs/playdwh/pkg/adapters/redshift/dialect"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	mu      sync.Mutex
	missing map[string]bool
	checked []string
}

func (f *fakeChecker) Check(_ context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, location)
	if f.missing[location] {
		return errors.New("no objects under prefix")
	}
	return nil
}

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.New(schema.Config{
		RoleARN:     "arn:aws:iam::123456789012:role/dwhRole",
		LogData:     "s3://udacity-dend/log_data",
		LogJSONPath: "s3://udacity-dend/log_json_path.json",
		SongData:    "s3://udacity-dend/song_data",
	}, rsdialect.Redshift)
	require.NoError(t, err)
	return reg
}

func newSession(t *testing.T) (*adapter.BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &adapter.BaseSQLAdapter{DB: db}, mock
}

func TestCopyAll(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	session, mock := newSession(t)

	for _, s := range reg.CopyStatements() {
		mock.ExpectBegin()
		mock.ExpectExec(s.SQL).WillReturnResult(sqlmock.NewResult(0, 8056))
		mock.ExpectCommit()
	}

	l := New(reg, runner.New(testutil.NewTestLogger(t)))
	require.NoError(t, l.CopyAll(ctx, session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyAll_FailureStopsLoad(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	session, mock := newSession(t)

	copies := reg.CopyStatements()
	mock.ExpectBegin()
	mock.ExpectExec(copies[0].SQL).WillReturnError(errors.New("S3ServiceException:Access Denied"))
	mock.ExpectRollback()

	l := New(reg, nil)
	err := l.CopyAll(ctx, session)

	var loadErr *core.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, schema.StagingEvent, loadErr.Table)
	assert.Equal(t, "s3://udacity-dend/log_data", loadErr.Source)
	assert.Contains(t, err.Error(), "Access Denied")
	assert.NoError(t, mock.ExpectationsWereMet(), "staging_song must not be copied")
}

func TestPreflight(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	t.Run("all reachable", func(t *testing.T) {
		checker := &fakeChecker{}
		l := New(reg, nil, WithPreflight(checker))
		require.NoError(t, l.Preflight(ctx))
		assert.ElementsMatch(t, []string{
			"s3://udacity-dend/log_data",
			"s3://udacity-dend/log_json_path.json",
			"s3://udacity-dend/song_data",
		}, checker.checked)
	})

	t.Run("missing source aborts before the warehouse", func(t *testing.T) {
		session, mock := newSession(t)
		checker := &fakeChecker{missing: map[string]bool{"s3://udacity-dend/song_data": true}}
		l := New(reg, nil, WithPreflight(checker))

		err := l.CopyAll(ctx, session)
		var loadErr *core.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, schema.StagingSong, loadErr.Table)
		assert.Contains(t, err.Error(), "preflight: no objects under prefix")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no checker", func(t *testing.T) {
		assert.NoError(t, New(reg, nil).Preflight(ctx))
	})
}

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/pkg/adapter"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redshiftConfig() Config {
	return Config{
		Schema: schema.Config{
			RoleARN:     "arn:aws:iam::123456789012:role/dwhRole",
			LogData:     "s3://udacity-dend/log_data",
			LogJSONPath: "s3://udacity-dend/log_json_path.json",
			SongData:    "s3://udacity-dend/song_data",
			Region:      "us-west-2",
		},
	}
}

func TestPlan_Redshift(t *testing.T) {
	stmts, err := Plan(redshiftConfig())
	require.NoError(t, err)
	require.Len(t, stmts, 21)

	var phases []core.Phase
	for _, s := range stmts {
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
	}
	assert.Equal(t, core.Phases(), phases)

	assert.Equal(t, "drop_staging_event", stmts[0].Name)
	assert.Equal(t, "create_songplay", stmts[13].Name)
	assert.True(t, strings.HasPrefix(stmts[14].SQL, "COPY staging_event\n"))
	assert.Equal(t, "insert_songplay", stmts[20].Name)
}

func TestPlan_SelectedPhases(t *testing.T) {
	stmts, err := Plan(redshiftConfig(), core.PhaseCopy)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "copy_staging_event", stmts[0].Name)
	assert.Equal(t, "copy_staging_song", stmts[1].Name)
}

func TestPlan_DuckDBSequence(t *testing.T) {
	cfg := Config{
		Warehouse: core.WarehouseConfig{Type: "DuckDB"},
		Schema:    schema.Config{LogData: "/data/log/*.json", SongData: "/data/song/*.json"},
	}
	stmts, err := Plan(cfg, core.PhaseDrop, core.PhaseCreate)
	require.NoError(t, err)
	require.Len(t, stmts, 16)

	var names []string
	for _, s := range stmts {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "create_songplay_songplay_id_seq")
	assert.Contains(t, names, "drop_songplay_songplay_id_seq")
}

func TestPlan_InvalidConfig(t *testing.T) {
	cfg := redshiftConfig()
	cfg.Schema.RoleARN = ""
	cfg.Schema.LogData = "/local/path"

	_, err := Plan(cfg)
	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "configure", schemaErr.Op)

	var cfgErr *core.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "iam_role.arn")
	assert.Contains(t, err.Error(), "s3.log_data")
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown warehouse",
			cfg:  Config{Warehouse: core.WarehouseConfig{Type: "snowflake"}},
			check: func(t *testing.T, err error) {
				var unknown *adapter.UnknownAdapterError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, "snowflake", unknown.Type)
				assert.Contains(t, unknown.Available, "redshift")
			},
		},
		{
			name: "invalid schema config does not connect",
			cfg: Config{
				Warehouse: core.WarehouseConfig{Host: "unreachable.invalid"},
				Schema:    schema.Config{LogData: "s3://udacity-dend/log_data"},
			},
			check: func(t *testing.T, err error) {
				var cfgErr *core.ConfigError
				require.ErrorAs(t, err, &cfgErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Open(context.Background(), tt.cfg, nil)
			require.Error(t, err)
			assert.Nil(t, p)
			tt.check(t, err)
		})
	}
}

func TestRegistry_DefaultsToRedshift(t *testing.T) {
	reg, err := Registry(redshiftConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "redshift", reg.Dialect().Name)
	assert.Equal(t, schema.MatchTitleOrArtist, reg.Config().SongplayMatch)
}

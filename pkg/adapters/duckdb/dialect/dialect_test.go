package dialect

import (
	"testing"

	"github.com/leapstack-labs/playdwh/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDBRegistered(t *testing.T) {
	d, ok := dialect.Get("duckdb")
	require.True(t, ok)
	assert.Same(t, DuckDB, d)
	assert.Equal(t, "main", d.DefaultSchema)
	assert.True(t, d.LocalSources)
	assert.False(t, d.CredentialRequired)
}

func TestDuckDBCopy(t *testing.T) {
	src := dialect.CopySource{
		Table:    "staging_event",
		Location: "/data/log_data/*.json",
		Columns: []dialect.CopyColumn{
			{Name: "first_name", Source: "firstName", Type: dialect.TypeVarchar, Width: 32},
			{Name: "ts", Source: "ts", Type: dialect.TypeBigint},
			{Name: "length", Type: dialect.TypeDouble},
		},
		Credential: "ignored",
		Format:     "ignored",
	}

	want := `INSERT INTO "staging_event" ("first_name", "ts", "length")` + "\n" +
		`SELECT "firstName", CAST(NULLIF("ts", '') AS bigint), CAST(NULLIF("length", '') AS DOUBLE)` + "\n" +
		`FROM read_json('/data/log_data/*.json', format = 'auto', columns = {'firstName': 'VARCHAR', 'ts': 'VARCHAR', 'length': 'VARCHAR'})`

	assert.Equal(t, want, DuckDB.Copy(src))
}

func TestDuckDBEpochMillis(t *testing.T) {
	assert.Equal(t, "epoch_ms(se.ts)", DuckDB.EpochMillisToTimestamp("se.ts"))
}

func TestDuckDBIdentity(t *testing.T) {
	style, clause := DuckDB.Identity()
	assert.Equal(t, dialect.IdentitySequence, style)
	assert.Equal(t, "START 1", clause)
	assert.Equal(t, "songplay_songplay_id_seq", DuckDB.SequenceName("songplay", "songplay_id"))
	assert.Empty(t, DuckDB.TableSuffix())
}

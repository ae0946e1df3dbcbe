package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/internal/testutil"
	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// event is one activity log record as found in log_data.
func event(userID string, ts int64, level string, song, artist any) map[string]any {
	return map[string]any{
		"artist":        artist,
		"auth":          "Logged In",
		"firstName":     "Lily",
		"gender":        "F",
		"itemInSession": 0,
		"lastName":      "Koch",
		"length":        210.5,
		"level":         level,
		"location":      "Chicago-Naperville-Elgin, IL-IN-WI",
		"method":        "PUT",
		"page":          "NextSong",
		"registration":  1540910000000,
		"sessionId":     139,
		"song":          song,
		"status":        200,
		"ts":            ts,
		"userAgent":     "Mozilla/5.0 (X11; Linux x86_64)",
		"userId":        userID,
	}
}

// catalogSong is one song_data record.
func catalogSong(songID, title, artistID, artistName string) map[string]any {
	return map[string]any{
		"num_songs":        1,
		"artist_id":        artistID,
		"artist_latitude":  "41.88415",
		"artist_longitude": "-87.63241",
		"artist_location":  "Chicago, IL",
		"artist_name":      artistName,
		"song_id":          songID,
		"title":            title,
		"duration":         200.5,
		"year":             2018,
	}
}

type fixture struct {
	events []map[string]any
	songs  [][]map[string]any // one file per entry
}

func openScenario(t *testing.T, fx fixture, tweak ...func(*Config)) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteJSONLines(t, dir, "log_data/2018-11-events.json", fx.events...)
	for i, file := range fx.songs {
		testutil.WriteJSONLines(t, dir, filepath.Join("song_data", string(rune('A'+i))+".json"), file...)
	}

	cfg := Config{
		Warehouse: core.WarehouseConfig{Type: "duckdb"},
		Schema: schema.Config{
			LogData:  filepath.Join(dir, "log_data", "*.json"),
			SongData: filepath.Join(dir, "song_data", "*.json"),
		},
	}
	for _, fn := range tweak {
		fn(&cfg)
	}

	p, err := Open(context.Background(), cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// queryRow scans the first row of query into dest. The rows are closed
// before returning since the session holds a single connection.
func queryRow(t *testing.T, p *Pipeline, query string, dest ...any) {
	t.Helper()
	rows, err := p.Session().Query(context.Background(), query)
	require.NoError(t, err)
	next := rows.Next()
	var scanErr error
	if next {
		scanErr = rows.Scan(dest...)
	}
	rowsErr := rows.Err()
	require.NoError(t, rows.Close())
	require.NoError(t, rowsErr)
	require.True(t, next, "no rows for %s", query)
	require.NoError(t, scanErr)
}

func queryInt(t *testing.T, p *Pipeline, query string) int64 {
	t.Helper()
	var n int64
	queryRow(t, p, query, &n)
	return n
}

type factRow struct {
	startTime int64
	userID    sql.NullInt64
	songID    sql.NullString
	artistID  sql.NullString
}

func facts(t *testing.T, p *Pipeline) []factRow {
	t.Helper()
	rows, err := p.Session().Query(context.Background(),
		`SELECT start_time, user_id, song_id, artist_id FROM songplay ORDER BY start_time, songplay_id`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []factRow
	for rows.Next() {
		var r factRow
		require.NoError(t, rows.Scan(&r.startTime, &r.userID, &r.songID, &r.artistID))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	return out
}

func TestScenario_EndToEnd(t *testing.T) {
	ctx := context.Background()
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "paid", "X", "Y")},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	})

	require.NoError(t, p.Full(ctx))
	require.NoError(t, p.Verify(ctx))

	got := facts(t, p)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1541121934796), got[0].startTime)
	assert.Equal(t, int64(7), got[0].userID.Int64)
	assert.Equal(t, "S1", got[0].songID.String)
	assert.Equal(t, "A1", got[0].artistID.String)

	var hour, day, week, month, year, weekday int64
	queryRow(t, p, `SELECT "hour", "day", "week", "month", "year", weekday FROM "time" WHERE start_time = 1541121934796`,
		&hour, &day, &week, &month, &year, &weekday)
	assert.Equal(t, []int64{1, 2, 44, 11, 2018, 5}, []int64{hour, day, week, month, year, weekday})
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM "time"`))

	var level string
	queryRow(t, p, `SELECT "level" FROM users WHERE user_id = 7`, &level)
	assert.Equal(t, "paid", level)
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM artist WHERE artist_id = 'A1' AND latitude > 41.8`))
}

func TestScenario_LatestLevelWins(t *testing.T) {
	p := openScenario(t, fixture{
		events: []map[string]any{
			event("7", 1541121934000, "paid", "X", "Y"),
			event("7", 1541121932000, "free", "X", "Y"),
			event("7", 1541121933000, "free", "X", "Y"),
		},
		songs: [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	})
	require.NoError(t, p.Full(context.Background()))

	var level string
	queryRow(t, p, `SELECT "level" FROM users WHERE user_id = 7`, &level)
	assert.Equal(t, "paid", level)
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM users WHERE user_id = 7`))
	assert.Equal(t, int64(3), queryInt(t, p, `SELECT COUNT(*) FROM "time"`))
}

func TestScenario_DuplicateCatalogRows(t *testing.T) {
	song := catalogSong("S1", "X", "A1", "Y")
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "Z", "Q")},
		songs:  [][]map[string]any{{song}, {song}},
	})
	require.NoError(t, p.Full(context.Background()))

	assert.Equal(t, int64(2), queryInt(t, p, `SELECT COUNT(*) FROM staging_song`))
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM song`))
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM artist`))
}

func TestScenario_ConflictingCatalogRows(t *testing.T) {
	first := catalogSong("S1", "X", "A1", "Y")
	second := catalogSong("S1", "X", "A1", "Y")
	second["duration"] = 300.0

	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{first}, {second}},
	})
	err := p.Full(context.Background())
	require.Error(t, err)

	var te *core.TransformError
	require.True(t, errors.As(err, &te), "got %T: %v", err, err)
	assert.Equal(t, schema.Song, te.Table)
	assert.Contains(t, err.Error(), "S1")
}

func TestScenario_NonNumericLatitude(t *testing.T) {
	song := catalogSong("S1", "X", "A1", "Y")
	song["artist_latitude"] = "north"

	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{song}},
	})
	err := p.Full(context.Background())
	require.Error(t, err)

	var te *core.TransformError
	require.True(t, errors.As(err, &te), "got %T: %v", err, err)
	assert.Equal(t, schema.Artist, te.Table)

	var le *core.LoadError
	assert.False(t, errors.As(err, &le))
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM song`))
}

func TestScenario_SongplayMatch(t *testing.T) {
	fx := fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs: [][]map[string]any{{
			catalogSong("S1", "X", "A1", "Z"),
			catalogSong("S2", "W", "A2", "Y"),
		}},
	}

	t.Run("title or artist fans out", func(t *testing.T) {
		p := openScenario(t, fx)
		require.NoError(t, p.Full(context.Background()))

		got := facts(t, p)
		require.Len(t, got, 2)
		var songs []string
		for _, r := range got {
			songs = append(songs, r.songID.String)
		}
		assert.ElementsMatch(t, []string{"S1", "S2"}, songs)
	})

	t.Run("title and artist", func(t *testing.T) {
		p := openScenario(t, fx, func(c *Config) { c.Schema.SongplayMatch = schema.MatchTitleAndArtist })
		require.NoError(t, p.Full(context.Background()))

		got := facts(t, p)
		require.Len(t, got, 1)
		assert.False(t, got[0].songID.Valid)
		assert.False(t, got[0].artistID.Valid)
	})
}

func TestScenario_LoggedOutEvents(t *testing.T) {
	loggedOut := event("", 1541121935000, "free", nil, nil)
	loggedOut["page"] = "Home"
	loggedOut["auth"] = "Logged Out"

	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y"), loggedOut},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	})
	require.NoError(t, p.Full(context.Background()))

	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM staging_event WHERE user_id IS NULL`))
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM users`))

	got := facts(t, p)
	require.Len(t, got, 2)
	assert.False(t, got[1].userID.Valid)
	assert.False(t, got[1].songID.Valid)
}

func TestScenario_PrimaryKeysEnforced(t *testing.T) {
	ctx := context.Background()
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	})
	require.NoError(t, p.Full(ctx))

	err := p.Session().Exec(ctx, `INSERT INTO users VALUES (7, 'Lily', 'Koch', 'F', 'paid')`)
	require.Error(t, err)
	err = p.Session().Exec(ctx, `INSERT INTO songplay (start_time, user_id) VALUES (1, 7)`)
	require.Error(t, err, "start_time must reference time")
}

func TestScenario_ResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	})

	require.NoError(t, p.Full(ctx))
	require.NoError(t, p.Reset(ctx))
	require.NoError(t, p.Reset(ctx))
	require.NoError(t, p.Verify(ctx))

	for _, tbl := range p.Registry().Tables() {
		assert.Equal(t, int64(0), queryInt(t, p, `SELECT COUNT(*) FROM "`+tbl.Name+`"`), tbl.Name)
	}

	// The identity sequence restarts with the table.
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT MIN(songplay_id) FROM songplay`))
}

func TestScenario_CreateFailsOnExistingTables(t *testing.T) {
	ctx := context.Background()
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	})
	require.NoError(t, p.Reset(ctx))

	err := p.Registry().CreateAll(ctx, p.Session())
	var schemaErr *core.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "create", schemaErr.Op)
	assert.Equal(t, schema.StagingEvent, schemaErr.Table)
}

func TestScenario_MissingSource(t *testing.T) {
	ctx := context.Background()
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
	})
	require.NoError(t, p.Reset(ctx))

	err := p.Run(ctx)
	var loadErr *core.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, schema.StagingSong, loadErr.Table)
	assert.Equal(t, int64(1), queryInt(t, p, `SELECT COUNT(*) FROM staging_event`))
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, string) error { return errors.New("no objects found") }

func TestScenario_PreflightStopsBeforeCopy(t *testing.T) {
	ctx := context.Background()
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	}, func(c *Config) { c.Checker = failingChecker{} })
	require.NoError(t, p.Reset(ctx))

	err := p.Run(ctx)
	var loadErr *core.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "preflight")
	assert.Equal(t, int64(0), queryInt(t, p, `SELECT COUNT(*) FROM staging_event`))
}

type countingObserver struct {
	mu     sync.Mutex
	phases map[core.Phase]int
}

func (o *countingObserver) ObserveStatement(_ context.Context, res runner.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phases == nil {
		o.phases = make(map[core.Phase]int)
	}
	o.phases[res.Statement.Phase]++
}

func TestScenario_CommitPerPhaseWithObserver(t *testing.T) {
	obs := &countingObserver{}
	p := openScenario(t, fixture{
		events: []map[string]any{event("7", 1541121934796, "free", "X", "Y")},
		songs:  [][]map[string]any{{catalogSong("S1", "X", "A1", "Y")}},
	}, func(c *Config) {
		c.Commit = runner.CommitPerPhase
		c.Observer = obs
	})

	require.NoError(t, p.Full(context.Background()))
	assert.Len(t, facts(t, p), 1)
	assert.Equal(t, map[core.Phase]int{
		core.PhaseDrop:   8,
		core.PhaseCreate: 8,
		core.PhaseCopy:   2,
		core.PhaseInsert: 5,
	}, obs.phases)
}

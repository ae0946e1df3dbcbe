package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

// Source is a staging table together with the location it is copied from.
type Source struct {
	Table    string
	Location string
	// Format is the JSONPaths document location or "auto".
	Format string
}

func (r *Registry) sources() []Source {
	return []Source{
		{Table: StagingEvent, Location: r.cfg.LogData, Format: r.cfg.LogJSONPath},
		{Table: StagingSong, Location: r.cfg.SongData, Format: AutoFormat},
	}
}

func (r *Registry) copyStatement(src Source) core.Statement {
	t, _ := r.table(src.Table)
	cols := make([]dialect.CopyColumn, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, dialect.CopyColumn{Name: c.Name, Source: c.SourceKey(), Type: c.Type, Width: c.Width})
	}
	return core.Statement{
		Phase: core.PhaseCopy,
		Table: src.Table,
		Name:  "copy_" + src.Table,
		SQL: r.d.Copy(dialect.CopySource{
			Table:      src.Table,
			Columns:    cols,
			Location:   src.Location,
			Credential: r.cfg.RoleARN,
			Format:     src.Format,
			Region:     r.cfg.Region,
		}),
	}
}

// insertSpec is one set-based insert and the tables its SELECT reads.
type insertSpec struct {
	table string
	reads []string
	sql   func(d *dialect.Dialect, cfg Config) string
}

// inserts is the declared insert order: dimensions first, the fact table last.
var inserts = []insertSpec{
	{table: Users, reads: []string{StagingEvent}, sql: usersInsert},
	{table: Song, reads: []string{StagingSong}, sql: songInsert},
	{table: Artist, reads: []string{StagingSong}, sql: artistInsert},
	{table: Time, reads: []string{StagingEvent}, sql: timeInsert},
	{table: Songplay, reads: []string{StagingEvent, StagingSong}, sql: songplayInsert},
}

func insertInto(d *dialect.Dialect, table string, cols ...string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "))
}

// usersInsert keeps the level of each user's most recent event.
func usersInsert(d *dialect.Dialect, _ Config) string {
	return insertInto(d, Users, "user_id", "first_name", "last_name", "gender", "level") + `
SELECT DISTINCT user_id, first_name, last_name, gender,
    LAST_VALUE("level") OVER (
        PARTITION BY user_id
        ORDER BY ts ASC
        ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING
    ) AS "level"
FROM ` + d.QuoteIdent(StagingEvent) + `
WHERE user_id IS NOT NULL`
}

func songInsert(d *dialect.Dialect, _ Config) string {
	return insertInto(d, Song, "song_id", "title", "artist_id", "year", "duration") + `
SELECT DISTINCT song_id, title, artist_id, "year", duration
FROM ` + d.QuoteIdent(StagingSong) + `
WHERE song_id IS NOT NULL`
}

func artistInsert(d *dialect.Dialect, _ Config) string {
	double := d.TypeName(dialect.TypeDouble, 0)
	return insertInto(d, Artist, "artist_id", "name", "location", "latitude", "longitude") + `
SELECT DISTINCT artist_id, artist_name, artist_location,
    CAST(artist_latitude AS ` + double + `) AS latitude,
    CAST(artist_longitude AS ` + double + `) AS longitude
FROM ` + d.QuoteIdent(StagingSong) + `
WHERE artist_id IS NOT NULL`
}

// timeInsert decomposes each distinct event timestamp into calendar parts.
// Weekday is the day of week with Sunday as 0.
func timeInsert(d *dialect.Dialect, _ Config) string {
	return insertInto(d, Time, "start_time", "hour", "day", "week", "month", "year", "weekday") + `
SELECT ts,
    EXTRACT(hour FROM start_at),
    EXTRACT(day FROM start_at),
    EXTRACT(week FROM start_at),
    EXTRACT(month FROM start_at),
    EXTRACT(year FROM start_at),
    EXTRACT(dow FROM start_at)
FROM (
    SELECT DISTINCT ts, ` + d.EpochMillisToTimestamp("ts") + ` AS start_at
    FROM ` + d.QuoteIdent(StagingEvent) + `
    WHERE ts IS NOT NULL
) AS e`
}

// songplayInsert emits one row per (event, matching catalog row) pair.
// Events without a match keep NULL song and artist keys.
func songplayInsert(d *dialect.Dialect, cfg Config) string {
	on := "se.song = ss.title OR se.artist = ss.artist_name"
	if cfg.SongplayMatch == MatchTitleAndArtist {
		on = "se.song = ss.title AND se.artist = ss.artist_name"
	}
	return insertInto(d, Songplay, "start_time", "user_id", "level", "song_id", "artist_id",
		"session_id", "location", "user_agent") + `
SELECT se.ts, se.user_id, se."level", ss.song_id, ss.artist_id,
    se.session_id, se.location, se.user_agent
FROM ` + d.QuoteIdent(StagingEvent) + ` AS se
LEFT JOIN ` + d.QuoteIdent(StagingSong) + ` AS ss ON (` + on + `)`
}

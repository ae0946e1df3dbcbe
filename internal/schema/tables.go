package schema

import "github.com/leapstack-labs/playdwh/pkg/dialect"

// Kind classifies a table by its role in the pipeline.
type Kind int

const (
	// KindStaging tables receive raw records from object storage.
	KindStaging Kind = iota
	// KindDimension tables describe the entities of a song play.
	KindDimension
	// KindFact tables record one row per song play.
	KindFact
)

func (k Kind) String() string {
	switch k {
	case KindStaging:
		return "staging"
	case KindDimension:
		return "dimension"
	case KindFact:
		return "fact"
	default:
		return "unknown"
	}
}

// Column is a declared table column.
type Column struct {
	Name    string
	Type    dialect.ColumnType
	Width   int
	NotNull bool
	// Identity marks an auto-incrementing surrogate key.
	Identity bool
	// Source is the JSON key a staging column is read from. Empty means Name.
	Source string
}

// SourceKey returns the JSON key the column is loaded from.
func (c Column) SourceKey() string {
	if c.Source != "" {
		return c.Source
	}
	return c.Name
}

// ForeignKey references the primary key of another table.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// Table is a declarative table definition.
type Table struct {
	Name        string
	Kind        Kind
	Columns     []Column
	PrimaryKey  string
	ForeignKeys []ForeignKey
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// References returns the tables this table's foreign keys point at.
func (t Table) References() []string {
	refs := make([]string, 0, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		refs = append(refs, fk.RefTable)
	}
	return refs
}

// Table names.
const (
	StagingEvent = "staging_event"
	StagingSong  = "staging_song"
	Users        = "users"
	Song         = "song"
	Artist       = "artist"
	Time         = "time"
	Songplay     = "songplay"
)

func varchar(name string, width int) Column {
	return Column{Name: name, Type: dialect.TypeVarchar, Width: width}
}

func typed(name string, t dialect.ColumnType) Column {
	return Column{Name: name, Type: t}
}

func notNull(c Column) Column {
	c.NotNull = true
	return c
}

func from(c Column, key string) Column {
	c.Source = key
	return c
}

// Tables returns the seven table definitions in creation order.
func Tables() []Table {
	return []Table{
		{
			Name: StagingEvent,
			Kind: KindStaging,
			Columns: []Column{
				varchar("artist", 0),
				varchar("auth", 0),
				from(varchar("first_name", 0), "firstName"),
				varchar("gender", 1),
				from(typed("item_in_session", dialect.TypeInteger), "itemInSession"),
				from(varchar("last_name", 0), "lastName"),
				typed("length", dialect.TypeDecimal),
				varchar("level", 0),
				varchar("location", 0),
				varchar("method", 0),
				varchar("page", 0),
				typed("registration", dialect.TypeBigint),
				from(typed("session_id", dialect.TypeBigint), "sessionId"),
				varchar("song", 0),
				typed("status", dialect.TypeInteger),
				typed("ts", dialect.TypeBigint),
				from(varchar("user_agent", 0), "userAgent"),
				from(typed("user_id", dialect.TypeInteger), "userId"),
			},
		},
		{
			Name: StagingSong,
			Kind: KindStaging,
			Columns: []Column{
				typed("num_songs", dialect.TypeInteger),
				varchar("artist_id", 0),
				varchar("artist_latitude", 0),
				varchar("artist_longitude", 0),
				varchar("artist_location", 0),
				varchar("artist_name", 0),
				varchar("song_id", 0),
				varchar("title", 0),
				typed("duration", dialect.TypeDecimal),
				typed("year", dialect.TypeInteger),
			},
		},
		{
			Name: Users,
			Kind: KindDimension,
			Columns: []Column{
				notNull(typed("user_id", dialect.TypeInteger)),
				notNull(varchar("first_name", 32)),
				notNull(varchar("last_name", 32)),
				notNull(varchar("gender", 1)),
				notNull(varchar("level", 4)),
			},
			PrimaryKey: "user_id",
		},
		{
			Name: Song,
			Kind: KindDimension,
			Columns: []Column{
				notNull(varchar("song_id", 18)),
				notNull(varchar("title", 256)),
				notNull(varchar("artist_id", 18)),
				notNull(typed("year", dialect.TypeInteger)),
				typed("duration", dialect.TypeDecimal),
			},
			PrimaryKey: "song_id",
		},
		{
			Name: Artist,
			Kind: KindDimension,
			Columns: []Column{
				notNull(varchar("artist_id", 18)),
				varchar("name", 256),
				varchar("location", 256),
				typed("latitude", dialect.TypeDouble),
				typed("longitude", dialect.TypeDouble),
			},
			PrimaryKey: "artist_id",
		},
		{
			Name: Time,
			Kind: KindDimension,
			Columns: []Column{
				notNull(typed("start_time", dialect.TypeBigint)),
				notNull(typed("hour", dialect.TypeInteger)),
				notNull(typed("day", dialect.TypeInteger)),
				notNull(typed("week", dialect.TypeInteger)),
				notNull(typed("month", dialect.TypeInteger)),
				notNull(typed("year", dialect.TypeInteger)),
				notNull(typed("weekday", dialect.TypeInteger)),
			},
			PrimaryKey: "start_time",
		},
		{
			Name: Songplay,
			Kind: KindFact,
			Columns: []Column{
				{Name: "songplay_id", Type: dialect.TypeBigint, Identity: true},
				typed("start_time", dialect.TypeBigint),
				typed("user_id", dialect.TypeInteger),
				varchar("level", 4),
				varchar("song_id", 18),
				varchar("artist_id", 18),
				typed("session_id", dialect.TypeBigint),
				varchar("location", 64),
				varchar("user_agent", 256),
			},
			PrimaryKey: "songplay_id",
			ForeignKeys: []ForeignKey{
				{Column: "start_time", RefTable: Time, RefColumn: "start_time"},
				{Column: "user_id", RefTable: Users, RefColumn: "user_id"},
				{Column: "song_id", RefTable: Song, RefColumn: "song_id"},
				{Column: "artist_id", RefTable: Artist, RefColumn: "artist_id"},
			},
		},
	}
}

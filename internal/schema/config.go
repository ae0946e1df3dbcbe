package schema

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

// SongplayMatch selects how an event is matched to catalog rows when building songplay.
type SongplayMatch string

const (
	// MatchTitleOrArtist joins an event to every catalog row with the same title
	// or the same artist name. One event can produce several fact rows.
	MatchTitleOrArtist SongplayMatch = "title_or_artist"
	// MatchTitleAndArtist requires both the title and the artist name to match.
	MatchTitleAndArtist SongplayMatch = "title_and_artist"
)

// AutoFormat lets the warehouse map JSON keys to column names.
const AutoFormat = "auto"

// Config carries every value interpolated into statement text.
type Config struct {
	// RoleARN authorizes the warehouse to read the sources.
	RoleARN string
	// LogData is the location of the activity log records.
	LogData string
	// LogJSONPath is the JSONPaths document describing log records, or "auto".
	LogJSONPath string
	// SongData is the location of the song catalog records.
	SongData string
	// Region of the source bucket. Empty omits the REGION clause.
	Region string

	SongplayMatch SongplayMatch
}

var (
	s3URIPattern  = regexp.MustCompile(`^s3://[a-z0-9][a-z0-9.-]{1,61}[a-z0-9](/[^\x00-\x1f\x7f]*)?$`)
	roleARNRegexp = regexp.MustCompile(`^arn:aws[a-zA-Z-]*:iam::\d{12}:role/[\w+=,.@/-]{1,512}$`)
	regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d$`)
)

// IsS3URI reports whether s is a well-formed s3:// location.
func IsS3URI(s string) bool {
	return s3URIPattern.MatchString(s)
}

// Validate checks cfg for use with dialect d and fills defaults. Every
// problem is reported as a *core.ConfigError, joined with errors.Join.
func (c *Config) Validate(d *dialect.Dialect) error {
	if c.LogJSONPath == "" {
		c.LogJSONPath = AutoFormat
	}
	if c.SongplayMatch == "" {
		c.SongplayMatch = MatchTitleOrArtist
	}

	var errs []error
	switch {
	case c.RoleARN == "" && d.CredentialRequired:
		errs = append(errs, &core.ConfigError{Field: "iam_role.arn", Reason: "is required"})
	case c.RoleARN != "" && !roleARNRegexp.MatchString(c.RoleARN):
		errs = append(errs, &core.ConfigError{Field: "iam_role.arn", Value: c.RoleARN, Reason: "is not an IAM role ARN"})
	}

	errs = append(errs,
		checkLocation("s3.log_data", c.LogData, d),
		checkLocation("s3.song_data", c.SongData, d),
	)
	if c.LogJSONPath != AutoFormat {
		errs = append(errs, checkLocation("s3.log_jsonpath", c.LogJSONPath, d))
	}

	if c.Region != "" && !regionPattern.MatchString(c.Region) {
		errs = append(errs, &core.ConfigError{Field: "s3.region", Value: c.Region, Reason: "is not an AWS region name"})
	}

	switch c.SongplayMatch {
	case MatchTitleOrArtist, MatchTitleAndArtist:
	default:
		errs = append(errs, &core.ConfigError{
			Field:  "transform.songplay_match",
			Value:  string(c.SongplayMatch),
			Reason: "must be title_or_artist or title_and_artist",
		})
	}
	return errors.Join(errs...)
}

func checkLocation(field, value string, d *dialect.Dialect) error {
	if value == "" {
		return &core.ConfigError{Field: field, Reason: "is required"}
	}
	if IsS3URI(value) {
		return nil
	}
	if !d.LocalSources {
		return &core.ConfigError{Field: field, Value: value, Reason: "is not an s3:// URI"}
	}
	if strings.Contains(value, "://") {
		return &core.ConfigError{Field: field, Value: value, Reason: "is neither an s3:// URI nor a local path"}
	}
	if strings.ContainsFunc(value, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return &core.ConfigError{Field: field, Value: value, Reason: "contains control characters"}
	}
	if _, err := filepath.Match(value, ""); err != nil {
		return &core.ConfigError{Field: field, Value: value, Reason: "is not a valid path pattern"}
	}
	return nil
}

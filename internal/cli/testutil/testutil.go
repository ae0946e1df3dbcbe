// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/playdwh/internal/cli/config"
	fixtures "github.com/leapstack-labs/playdwh/internal/testutil"
	"github.com/spf13/cobra"
)

// SetupLocalProject writes a small activity log and song catalog to a
// temporary directory and returns a DuckDB configuration that loads them.
// Output defaults to markdown so results contain no ANSI codes.
func SetupLocalProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	fixtures.WriteJSONLines(t, dir, "log_data/2018/11/2018-11-13-events.json",
		event("8", 1542122400000, "free", "Intro", "The xx"),
		event("8", 1542126000000, "paid", "Unknown Song", "Nobody"),
		event("", 1542129600000, "free", nil, nil),
	)
	fixtures.WriteJSONLines(t, dir, "song_data/A/A/TRAABJL12903CDCF1A.json", map[string]any{
		"num_songs":        1,
		"artist_id":        "ARGSJW91187B9B1D6B",
		"artist_latitude":  "51.50632",
		"artist_longitude": "-0.12714",
		"artist_location":  "London, England",
		"artist_name":      "The xx",
		"song_id":          "SOGDBUF12A8C140FAA",
		"title":            "Intro",
		"duration":         127.63,
		"year":             2009,
	})

	return &config.Config{
		Cluster: config.ClusterConfig{Type: "duckdb", Path: filepath.Join(dir, "dwh.duckdb")},
		S3: config.S3Config{
			LogData:  filepath.Join(dir, "log_data", "*", "*", "*.json"),
			SongData: filepath.Join(dir, "song_data", "*", "*", "*.json"),
		},
		Warehouse:    config.WarehouseConfig{Commit: config.DefaultCommit},
		LogFormat:    config.DefaultLogFormat,
		OutputFormat: "markdown",
	}
}

func event(userID string, ts int64, level string, song, artist any) map[string]any {
	return map[string]any{
		"artist":        artist,
		"auth":          "Logged In",
		"firstName":     "Kaylee",
		"gender":        "F",
		"itemInSession": 1,
		"lastName":      "Summers",
		"length":        127.63,
		"level":         level,
		"location":      "Phoenix-Mesa-Scottsdale, AZ",
		"method":        "PUT",
		"page":          "NextSong",
		"registration":  1540344794796,
		"sessionId":     139,
		"song":          song,
		"status":        200,
		"ts":            ts,
		"userAgent":     "Mozilla/5.0 (Windows NT 6.1; WOW64)",
		"userId":        userID,
	}
}

// Result holds the captured output of a command execution.
type Result struct {
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// Output returns the captured stdout.
func (r *Result) Output() string { return r.Out.String() }

// ErrorOutput returns the captured stderr.
func (r *Result) ErrorOutput() string { return r.ErrOut.String() }

// ExecuteCommand runs cmd with args against cfg, capturing its output.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (*Result, error) {
	t.Helper()
	res := &Result{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	cmd.SetOut(res.Out)
	cmd.SetErr(res.ErrOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	ctx := config.NewContext(context.Background(), cfg, fixtures.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)
	return res, err
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteJSONLines writes records as newline-delimited JSON to dir/name,
// creating parent directories, and returns the file path.
func WriteJSONLines(t testing.TB, dir, name string, records ...map[string]any) string {
	t.Helper()
	var sb strings.Builder
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal fixture record: %v", err)
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return WriteFile(t, dir, name, sb.String())
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the file path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

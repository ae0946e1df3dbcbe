// Package jsonpaths reads Redshift JSONPaths documents, which map the fields
// of a JSON record to table columns by position.
package jsonpaths

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Document is a parsed JSONPaths file.
type Document struct {
	// Paths are the raw expressions in column order.
	Paths []string
	// Keys are the top-level record keys the paths select.
	Keys []string
}

var (
	bracketPath = regexp.MustCompile(`^\$\[\s*(?:'([^']+)'|"([^"]+)")\s*\]$`)
	dotPath     = regexp.MustCompile(`^\$\.([A-Za-z_][A-Za-z0-9_]*)$`)
)

// Parse decodes a JSONPaths document. Only top-level keys are supported;
// nested or array paths are rejected.
func Parse(data []byte) (*Document, error) {
	var raw struct {
		JSONPaths []string `json:"jsonpaths"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse jsonpaths: %w", err)
	}
	if raw.JSONPaths == nil {
		return nil, errors.New(`parse jsonpaths: missing "jsonpaths" array`)
	}

	doc := &Document{Paths: raw.JSONPaths, Keys: make([]string, 0, len(raw.JSONPaths))}
	for i, p := range raw.JSONPaths {
		key, err := KeyOf(p)
		if err != nil {
			return nil, fmt.Errorf("parse jsonpaths: path %d: %w", i+1, err)
		}
		doc.Keys = append(doc.Keys, key)
	}
	return doc, nil
}

// KeyOf returns the top-level key selected by a path expression such as
// $['artist'] or $.artist.
func KeyOf(path string) (string, error) {
	if m := bracketPath.FindStringSubmatch(path); m != nil {
		if m[1] != "" {
			return m[1], nil
		}
		return m[2], nil
	}
	if m := dotPath.FindStringSubmatch(path); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("unsupported path %q", path)
}

// MismatchError reports a document whose keys do not line up with the columns.
type MismatchError struct {
	Position int // 1-based; 0 when only the count differs
	Got      string
	Want     string
	GotLen   int
	WantLen  int
}

func (e *MismatchError) Error() string {
	if e.Position == 0 {
		return fmt.Sprintf("jsonpaths has %d paths, table has %d columns", e.GotLen, e.WantLen)
	}
	return fmt.Sprintf("jsonpaths position %d selects %q, column expects %q", e.Position, e.Got, e.Want)
}

// Validate checks that the document selects want, in order.
func (d *Document) Validate(want []string) error {
	if len(d.Keys) != len(want) {
		return &MismatchError{GotLen: len(d.Keys), WantLen: len(want)}
	}
	for i := range want {
		if d.Keys[i] != want[i] {
			return &MismatchError{Position: i + 1, Got: d.Keys[i], Want: want[i], GotLen: len(d.Keys), WantLen: len(want)}
		}
	}
	return nil
}

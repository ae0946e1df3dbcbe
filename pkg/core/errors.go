package core

import (
	"fmt"
	"strings"
)

// SchemaError reports a failed DDL statement or an inconsistent table catalog:
// a table created before a table it references, a table that already exists,
// or a declared execution order that violates a dependency.
type SchemaError struct {
	Op    string // "drop", "create", "verify", "order" or "configure"
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("schema %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("schema %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// LoadError reports a failed bulk copy into a staging table: an unreachable
// source, a rejected credential or a record that does not fit the column types.
type LoadError struct {
	Table  string
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("load %s from %s: %v", e.Table, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// TransformError reports a failed insert from staging into a dimension or fact table.
type TransformError struct {
	Table string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Table, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ConfigError reports a configuration value that cannot be used safely.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, redact(e.Field, e.Value), e.Reason)
}

func redact(field, value string) string {
	if strings.Contains(strings.ToLower(field), "password") {
		return "****"
	}
	return value
}

// Package dialect provides the SQL dialect definitions used to render the
// warehouse schema and load statements.
//
// This package contains the public contract for dialect definitions. Concrete
// dialects are registered from pkg/adapters/*/dialect packages, which have no
// database driver dependencies so that statements can be planned offline.
package dialect

import (
	"fmt"
	"strings"
)

// ColumnType is a logical column type rendered per dialect.
type ColumnType int

const (
	// TypeVarchar is a variable-length string, optionally with a width.
	TypeVarchar ColumnType = iota
	// TypeInteger is a 32-bit integer.
	TypeInteger
	// TypeBigint is a 64-bit integer.
	TypeBigint
	// TypeDecimal is an exact numeric with the dialect's default precision.
	TypeDecimal
	// TypeDouble is a double precision float.
	TypeDouble
)

// String returns the string representation of ColumnType.
func (t ColumnType) String() string {
	switch t {
	case TypeVarchar:
		return "varchar"
	case TypeInteger:
		return "integer"
	case TypeBigint:
		return "bigint"
	case TypeDecimal:
		return "decimal"
	case TypeDouble:
		return "double precision"
	default:
		return "unknown"
	}
}

// IdentityStyle describes how an auto-incrementing column is declared.
type IdentityStyle int

const (
	// IdentityInline declares the identity on the column itself (Redshift IDENTITY(seed, step)).
	IdentityInline IdentityStyle = iota
	// IdentitySequence backs the column with a separate sequence object.
	IdentitySequence
)

// CopyColumn maps one staging column to the key it is read from in a JSON record.
type CopyColumn struct {
	Name   string
	Source string
	Type   ColumnType
	Width  int
}

// CopySource describes a bulk copy of JSON records into a staging table.
type CopySource struct {
	Table    string
	Columns  []CopyColumn
	Location string
	// Credential authorizes the warehouse to read Location (an IAM role ARN).
	Credential string
	// Format is a JSONPaths document location, or "auto" to match keys to column names.
	Format string
	Region string
}

// CopyFunc renders a bulk copy statement.
type CopyFunc func(d *Dialect, src CopySource) string

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name string

	// DefaultSchema is where unqualified tables live ("public" for Redshift, "main" for DuckDB).
	DefaultSchema string

	quote          string
	typeNames      map[ColumnType]string
	widthTypes     map[ColumnType]bool
	identity       IdentityStyle
	identityClause string
	tableSuffix    string
	copy           CopyFunc
	epochMillis    func(expr string) string

	// LocalSources reports whether copy locations may be local paths.
	LocalSources bool
	// CredentialRequired reports whether copies need an authorization credential.
	CredentialRequired bool
}

// QuoteIdent quotes an identifier.
func (d *Dialect) QuoteIdent(name string) string {
	q := d.quote
	if q == "" {
		q = `"`
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// QuoteLiteral quotes a string literal, doubling embedded single quotes.
func (d *Dialect) QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// TypeName renders a logical column type. Width is ignored for types that take none.
func (d *Dialect) TypeName(t ColumnType, width int) string {
	name, ok := d.typeNames[t]
	if !ok {
		name = t.String()
	}
	if width > 0 && d.widthTypes[t] {
		return fmt.Sprintf("%s(%d)", name, width)
	}
	return name
}

// Identity returns how identity columns are declared and the clause used for them.
// For IdentityInline the clause follows the column type; for IdentitySequence
// it is the sequence options.
func (d *Dialect) Identity() (IdentityStyle, string) {
	return d.identity, d.identityClause
}

// SequenceName returns the name of the sequence backing an identity column.
func (d *Dialect) SequenceName(table, column string) string {
	return table + "_" + column + "_seq"
}

// TableSuffix is appended after the closing parenthesis of CREATE TABLE for
// non-staging tables (e.g. "DISTSTYLE AUTO").
func (d *Dialect) TableSuffix() string {
	return d.tableSuffix
}

// Copy renders a bulk copy statement for src.
func (d *Dialect) Copy(src CopySource) string {
	if d.copy == nil {
		return ""
	}
	return d.copy(d, src)
}

// EpochMillisToTimestamp renders an expression converting an epoch-millisecond
// integer expression to a timestamp.
func (d *Dialect) EpochMillisToTimestamp(expr string) string {
	if d.epochMillis == nil {
		return fmt.Sprintf("(TIMESTAMP 'epoch' + %s / 1000 * INTERVAL '1 second')", expr)
	}
	return d.epochMillis(expr)
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:          name,
			DefaultSchema: "public",
			quote:         `"`,
			typeNames:     make(map[ColumnType]string),
			widthTypes:    map[ColumnType]bool{TypeVarchar: true},
		},
	}
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// Quote sets the identifier quote character.
func (b *Builder) Quote(q string) *Builder {
	b.dialect.quote = q
	return b
}

// TypeName overrides how a logical column type is spelled.
func (b *Builder) TypeName(t ColumnType, name string) *Builder {
	b.dialect.typeNames[t] = name
	return b
}

// Identity sets the identity column style and clause.
func (b *Builder) Identity(style IdentityStyle, clause string) *Builder {
	b.dialect.identity = style
	b.dialect.identityClause = clause
	return b
}

// TableSuffix sets the clause appended to dimension and fact CREATE TABLE statements.
func (b *Builder) TableSuffix(suffix string) *Builder {
	b.dialect.tableSuffix = suffix
	return b
}

// Copy sets the bulk copy renderer.
func (b *Builder) Copy(fn CopyFunc) *Builder {
	b.dialect.copy = fn
	return b
}

// EpochMillis sets the epoch-millisecond to timestamp conversion.
func (b *Builder) EpochMillis(fn func(expr string) string) *Builder {
	b.dialect.epochMillis = fn
	return b
}

// LocalSources allows copy locations on the local filesystem.
func (b *Builder) LocalSources() *Builder {
	b.dialect.LocalSources = true
	return b
}

// RequireCredential marks the authorization credential as mandatory for copies.
func (b *Builder) RequireCredential() *Builder {
	b.dialect.CredentialRequired = true
	return b
}

// Build returns the configured dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}

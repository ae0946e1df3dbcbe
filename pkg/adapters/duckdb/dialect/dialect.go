// Package dialect provides the DuckDB SQL dialect definition used for local
// runs and tests. Bulk copies read JSON files with read_json instead of COPY.
package dialect

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect configuration.
var DuckDB = dialect.NewDialect("duckdb").
	DefaultSchema("main").
	TypeName(dialect.TypeDouble, "DOUBLE").
	Identity(dialect.IdentitySequence, "START 1").
	Copy(renderCopy).
	EpochMillis(func(expr string) string { return "epoch_ms(" + expr + ")" }).
	LocalSources().
	Build()

// renderCopy renders an INSERT ... SELECT over read_json. Every key is read as
// text and cast to the column type, so empty strings (the log data uses "" for
// logged-out users) load as NULL the way Redshift COPY loads them.
func renderCopy(d *dialect.Dialect, src dialect.CopySource) string {
	targets := make([]string, 0, len(src.Columns))
	selects := make([]string, 0, len(src.Columns))
	keys := make([]string, 0, len(src.Columns))
	for _, col := range src.Columns {
		key := col.Source
		if key == "" {
			key = col.Name
		}
		targets = append(targets, d.QuoteIdent(col.Name))
		if col.Type == dialect.TypeVarchar {
			selects = append(selects, d.QuoteIdent(key))
		} else {
			selects = append(selects, fmt.Sprintf("CAST(NULLIF(%s, '') AS %s)", d.QuoteIdent(key), d.TypeName(col.Type, 0)))
		}
		keys = append(keys, d.QuoteLiteral(key)+": 'VARCHAR'")
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.QuoteIdent(src.Table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(targets, ", "))
	sb.WriteString(")\nSELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString("\nFROM read_json(")
	sb.WriteString(d.QuoteLiteral(src.Location))
	sb.WriteString(", format = 'auto', columns = {")
	sb.WriteString(strings.Join(keys, ", "))
	sb.WriteString("})")
	return sb.String()
}

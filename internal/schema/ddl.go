package schema

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

// createTable renders CREATE TABLE for t. Sequence-backed identities get a
// CREATE SEQUENCE statement first.
func createTable(d *dialect.Dialect, t Table) []core.Statement {
	var stmts []core.Statement
	style, clause := d.Identity()

	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, c := range t.Columns {
		def := d.QuoteIdent(c.Name) + " " + d.TypeName(c.Type, c.Width)
		if c.Identity {
			switch style {
			case dialect.IdentitySequence:
				seq := d.SequenceName(t.Name, c.Name)
				stmts = append(stmts, core.Statement{
					Phase: core.PhaseCreate,
					Table: t.Name,
					Name:  "create_" + seq,
					SQL:   strings.TrimSpace("CREATE SEQUENCE " + d.QuoteIdent(seq) + " " + clause),
				})
				def += " DEFAULT nextval(" + d.QuoteLiteral(seq) + ")"
			default:
				def += " " + clause
			}
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if t.PrimaryKey != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", d.QuoteIdent(t.PrimaryKey)))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.QuoteIdent(fk.Column), d.QuoteIdent(fk.RefTable), d.QuoteIdent(fk.RefColumn)))
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(d.QuoteIdent(t.Name))
	sb.WriteString(" (\n    ")
	sb.WriteString(strings.Join(defs, ",\n    "))
	sb.WriteString("\n)")
	if suffix := d.TableSuffix(); suffix != "" && t.Kind != KindStaging {
		sb.WriteString(" ")
		sb.WriteString(suffix)
	}

	return append(stmts, core.Statement{
		Phase: core.PhaseCreate,
		Table: t.Name,
		Name:  "create_" + t.Name,
		SQL:   sb.String(),
	})
}

// dropTable renders DROP TABLE IF EXISTS for t, followed by the drop of any
// sequence backing its identity column.
func dropTable(d *dialect.Dialect, t Table) []core.Statement {
	stmts := []core.Statement{{
		Phase: core.PhaseDrop,
		Table: t.Name,
		Name:  "drop_" + t.Name,
		SQL:   "DROP TABLE IF EXISTS " + d.QuoteIdent(t.Name),
	}}
	if style, _ := d.Identity(); style != dialect.IdentitySequence {
		return stmts
	}
	for _, c := range t.Columns {
		if !c.Identity {
			continue
		}
		seq := d.SequenceName(t.Name, c.Name)
		stmts = append(stmts, core.Statement{
			Phase: core.PhaseDrop,
			Table: t.Name,
			Name:  "drop_" + seq,
			SQL:   "DROP SEQUENCE IF EXISTS " + d.QuoteIdent(seq),
		})
	}
	return stmts
}

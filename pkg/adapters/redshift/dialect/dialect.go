// Package dialect provides the Amazon Redshift SQL dialect definition.
// This package is lightweight and has no database driver dependencies,
// making it suitable for planning statements without a warehouse connection.
package dialect

import (
	"strings"

	"github.com/leapstack-labs/playdwh/pkg/dialect"
)

func init() {
	dialect.Register(Redshift)
}

// Redshift is the Amazon Redshift dialect configuration.
var Redshift = dialect.NewDialect("redshift").
	DefaultSchema("public").
	Identity(dialect.IdentityInline, "IDENTITY(0,1)").
	TableSuffix("DISTSTYLE AUTO").
	Copy(renderCopy).
	RequireCredential().
	Build()

// renderCopy renders a Redshift COPY from S3 using an IAM role.
// Format is either "auto" or the location of a JSONPaths document.
func renderCopy(d *dialect.Dialect, src dialect.CopySource) string {
	var sb strings.Builder
	sb.WriteString("COPY ")
	sb.WriteString(src.Table)
	sb.WriteString("\nFROM ")
	sb.WriteString(d.QuoteLiteral(src.Location))
	sb.WriteString("\nIAM_ROLE ")
	sb.WriteString(d.QuoteLiteral(src.Credential))
	sb.WriteString("\nFORMAT AS JSON ")
	format := src.Format
	if format == "" {
		format = "auto"
	}
	sb.WriteString(d.QuoteLiteral(format))
	if src.Region != "" {
		sb.WriteString("\nREGION ")
		sb.WriteString(d.QuoteLiteral(src.Region))
	}
	return sb.String()
}

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/playdwh/internal/cli/output"
	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/pkg/adapter"
	"github.com/leapstack-labs/playdwh/pkg/core"
)

// Validate checks the values every command depends on. Source locations and
// the IAM role are validated when statements are rendered.
func (c *Config) Validate() error {
	var errs []error
	if !adapter.IsRegistered(c.Cluster.Type) {
		errs = append(errs, &core.ConfigError{
			Field:  "cluster.type",
			Value:  c.Cluster.Type,
			Reason: fmt.Sprintf("unknown warehouse (available: %s)", strings.Join(adapter.ListAdapters(), ", ")),
		})
	}
	if c.Cluster.Port < 0 || c.Cluster.Port > 65535 {
		errs = append(errs, &core.ConfigError{Field: "cluster.db_port", Value: fmt.Sprint(c.Cluster.Port), Reason: "must be between 1 and 65535"})
	}
	if c.Warehouse.StatementTimeout < 0 {
		errs = append(errs, &core.ConfigError{Field: "warehouse.statement_timeout", Value: c.Warehouse.StatementTimeout.String(), Reason: "must not be negative"})
	}
	if _, err := runner.ParseCommitPolicy(c.Warehouse.Commit); err != nil {
		errs = append(errs, &core.ConfigError{Field: "warehouse.commit", Value: c.Warehouse.Commit, Reason: "must be statement or phase"})
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		errs = append(errs, &core.ConfigError{Field: "output", Value: c.OutputFormat, Reason: "must be one of " + strings.Join(output.Modes(), ", ")})
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errs = append(errs, &core.ConfigError{Field: "log_format", Value: c.LogFormat, Reason: "must be text or json"})
	}
	return errors.Join(errs...)
}

// ValidateConnection checks the settings needed to open a warehouse session.
func (c *Config) ValidateConnection() error {
	if c.Cluster.Type != "redshift" {
		return nil
	}
	var errs []error
	for _, f := range []struct{ field, value string }{
		{"cluster.host", c.Cluster.Host},
		{"cluster.db_name", c.Cluster.DBName},
		{"cluster.db_user", c.Cluster.User},
	} {
		if f.value == "" {
			errs = append(errs, &core.ConfigError{Field: f.field, Reason: "is required"})
		}
	}
	return errors.Join(errs...)
}

// Package redshift provides the Amazon Redshift warehouse adapter for playdwh.
//
// This file registers the Redshift adapter with the adapter registry.
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/playdwh/pkg/adapters/redshift"
package redshift

import (
	"log/slog"

	"github.com/leapstack-labs/playdwh/pkg/adapter"
)

func init() {
	adapter.Register("redshift", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}

package core

import "time"

// WarehouseConfig holds configuration for connecting to a warehouse.
type WarehouseConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
	Params   map[string]any

	// StatementTimeout is applied to the session after connecting. Zero means none.
	StatementTimeout time.Duration
}

// Column describes a column as reported by the warehouse catalog.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata holds catalog information about a warehouse table.
type TableMetadata struct {
	Schema  string
	Name    string
	Columns []Column
}

// Package core defines the shared language of playdwh.
//
// This package contains:
//   - Warehouse connection configuration (WarehouseConfig)
//   - Pipeline vocabulary (Phase, Statement)
//   - The error taxonomy shared by the schema, loader and transform stages
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

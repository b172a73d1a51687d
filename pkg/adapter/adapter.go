// Package adapter provides the warehouse adapter contract and shared
// plumbing for concrete implementations.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves with this package's registry in their init functions.
// Core types (Adapter, AdapterConfig, Column, TableMetadata, Rows) are
// defined in pkg/core; this package re-exports them via type aliases.
package adapter

import (
	"github.com/leapstack-labs/compass/pkg/core"
)

// Type aliases for the contract types defined in pkg/core.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

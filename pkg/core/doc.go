// Package core defines the shared language of the Compass system.
//
// This package contains:
//   - Domain entities (PhysicalRelation, ColumnDescriptor, Run, etc.)
//   - Service interfaces (Adapter, Store)
//   - Configuration types (TargetConfig, DialectConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

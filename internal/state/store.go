// Package state persists run history for Compass using SQLite.
// It tracks scope-expansion runs and the widening iterations recorded
// during each one.
//
// Core types are defined in pkg/core. This package re-exports them via
// type aliases so store code stays terse.
package state

import (
	"github.com/leapstack-labs/compass/pkg/core"
)

// Type aliases for the core run-history types.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// IterationRecord is an alias for core.IterationRecord.
	IterationRecord = core.IterationRecord
)

// Re-export status constants from core.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusSuccess   = core.RunStatusSuccess
	RunStatusExhausted = core.RunStatusExhausted
	RunStatusFailed    = core.RunStatusFailed
)

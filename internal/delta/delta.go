// Package delta reconciles candidate column descriptors against the
// set of keys the knowledge catalog already tracks.
//
// Reconciliation is additive and idempotent: it only ever proposes rows
// to insert, never updates or deletions, and running it twice against
// the same state proposes nothing the second time. The caller owns the
// write; this package just computes the split.
package delta

import (
	"sort"

	"github.com/leapstack-labs/compass/pkg/core"
)

// Reconcile splits candidates into descriptors absent from existing and
// the keys that were already present. Descriptors are keyed by their
// qualified name; duplicate candidates within one batch collapse into a
// single missing entry, first occurrence wins.
func Reconcile(existing map[string]struct{}, candidates []core.ColumnDescriptor) core.DeltaResult {
	result := core.DeltaResult{
		AlreadyKnown: make(map[string]struct{}),
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := c.QualifiedName
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := existing[key]; ok {
			result.AlreadyKnown[key] = struct{}{}
			continue
		}
		result.Missing = append(result.Missing, c)
	}

	sort.Slice(result.Missing, func(i, j int) bool {
		return result.Missing[i].QualifiedName < result.Missing[j].QualifiedName
	})

	return result
}

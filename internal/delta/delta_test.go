package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/compass/pkg/core"
)

func col(name string) core.ColumnDescriptor {
	return core.ColumnDescriptor{QualifiedName: name, SchemaName: "analytics"}
}

func TestReconcileSplit(t *testing.T) {
	existing := map[string]struct{}{
		"analytics.orders.id": {},
	}
	candidates := []core.ColumnDescriptor{
		col("analytics.orders.id"),
		col("analytics.orders.amount"),
		col("analytics.orders.placed_at"),
	}

	result := Reconcile(existing, candidates)

	assert.Len(t, result.Missing, 2)
	assert.Equal(t, "analytics.orders.amount", result.Missing[0].QualifiedName)
	assert.Equal(t, "analytics.orders.placed_at", result.Missing[1].QualifiedName)
	assert.Contains(t, result.AlreadyKnown, "analytics.orders.id")
}

func TestReconcileIdempotent(t *testing.T) {
	existing := map[string]struct{}{}
	candidates := []core.ColumnDescriptor{
		col("s.t.a"),
		col("s.t.b"),
	}

	first := Reconcile(existing, candidates)
	assert.Len(t, first.Missing, 2)

	// Apply the proposed insertions, then reconcile the same batch again.
	for _, c := range first.Missing {
		existing[c.QualifiedName] = struct{}{}
	}

	second := Reconcile(existing, candidates)
	assert.Empty(t, second.Missing)
	assert.Len(t, second.AlreadyKnown, 2)
}

func TestReconcileDuplicateCandidates(t *testing.T) {
	result := Reconcile(nil, []core.ColumnDescriptor{
		{QualifiedName: "s.t.a", Description: "first"},
		{QualifiedName: "s.t.a", Description: "second"},
	})

	assert.Len(t, result.Missing, 1)
	assert.Equal(t, "first", result.Missing[0].Description)
}

func TestReconcileEmptyCandidates(t *testing.T) {
	result := Reconcile(map[string]struct{}{"s.t.a": {}}, nil)

	assert.Empty(t, result.Missing)
	assert.Empty(t, result.AlreadyKnown)
}

func TestReconcileNilExisting(t *testing.T) {
	result := Reconcile(nil, []core.ColumnDescriptor{col("s.t.a")})

	assert.Len(t, result.Missing, 1)
	assert.Empty(t, result.AlreadyKnown)
}

func TestReconcileOrderIsDeterministic(t *testing.T) {
	result := Reconcile(nil, []core.ColumnDescriptor{
		col("s.t.z"),
		col("s.t.a"),
		col("s.t.m"),
	})

	var names []string
	for _, c := range result.Missing {
		names = append(names, c.QualifiedName)
	}
	assert.Equal(t, []string{"s.t.a", "s.t.m", "s.t.z"}, names)
}

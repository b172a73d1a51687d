package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/compass/internal/cli/output"
	"github.com/leapstack-labs/compass/internal/cli/testutil"
	"github.com/leapstack-labs/compass/internal/lineage"
	"github.com/leapstack-labs/compass/internal/manifest"
)

// testGraph builds the fixture graph: two sources, two staging views,
// one mart reading both (through a collapsed ephemeral intermediate).
func testGraph(t *testing.T) *lineage.Graph {
	t.Helper()

	m, err := manifest.Parse(strings.NewReader(testutil.ManifestJSON))
	require.NoError(t, err)
	return lineage.Build(m, nil)
}

func TestResolveRelationRef(t *testing.T) {
	g := testGraph(t)

	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr string
	}{
		{
			name:   "exact manifest id",
			ref:    "model.shop.fct_revenue",
			wantID: "model.shop.fct_revenue",
		},
		{
			name:   "qualified name",
			ref:    "marts.fct_revenue",
			wantID: "model.shop.fct_revenue",
		},
		{
			name:   "qualified name is case-insensitive",
			ref:    "Marts.FCT_Revenue",
			wantID: "model.shop.fct_revenue",
		},
		{
			name:   "bare identifier",
			ref:    "stg_orders",
			wantID: "model.shop.stg_orders",
		},
		{
			name:    "unknown relation",
			ref:     "marts.fct_nothing",
			wantErr: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := resolveRelationRef(g, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestResolveRelationRef_Ambiguous(t *testing.T) {
	// Two models share the identifier "events" in different schemas.
	manifestJSON := `{
	  "nodes": {
	    "model.shop.app_events": {
	      "resource_type": "model",
	      "name": "events",
	      "schema": "app",
	      "depends_on": {"nodes": []}
	    },
	    "model.shop.web_events": {
	      "resource_type": "model",
	      "name": "events",
	      "schema": "web",
	      "depends_on": {"nodes": []}
	    }
	  }
	}`
	m, err := manifest.Parse(strings.NewReader(manifestJSON))
	require.NoError(t, err)
	g := lineage.Build(m, nil)

	_, err = resolveRelationRef(g, "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
	assert.Contains(t, err.Error(), "model.shop.app_events")
	assert.Contains(t, err.Error(), "model.shop.web_events")
}

func TestIdsByDepthDesc(t *testing.T) {
	g := testGraph(t)
	depths := g.Depths()

	ids := idsByDepthDesc(g, depths)
	require.Len(t, ids, 5)

	// Deepest band first: the mart, then staging, then the sources.
	assert.Equal(t, "model.shop.fct_revenue", ids[0])
	last := depths.Depths[ids[0]]
	for _, id := range ids[1:] {
		d := depths.Depths[id]
		assert.LessOrEqual(t, d, last, "depths should be non-increasing")
		last = d
	}
}

func TestQualifiedNamesOf(t *testing.T) {
	g := testGraph(t)

	names := qualifiedNamesOf(g, []string{"model.shop.stg_orders", "source.shop.raw.customers"})
	assert.Equal(t, []string{"raw.customers", "staging.stg_orders"}, names)

	// Unknown ids are dropped rather than panicking.
	names = qualifiedNamesOf(g, []string{"model.shop.stg_orders", "model.shop.missing"})
	assert.Equal(t, []string{"staging.stg_orders"}, names)
}

func TestLineageText(t *testing.T) {
	g := testGraph(t)
	tr := testutil.NewTestRendererText()

	err := lineageText(tr.Renderer, g, g.Depths())
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "Lineage (5 relations, 4 edges)")
	testutil.AssertContains(t, out, "marts.fct_revenue")
	testutil.AssertContains(t, out, "raw.orders")
	testutil.AssertContains(t, out, "max depth 2")
	// Ephemeral nodes never surface.
	testutil.AssertNotContains(t, out, "int_order_totals")
}

func TestLineageMarkdown(t *testing.T) {
	g := testGraph(t)
	tr := testutil.NewTestRendererMarkdown()

	err := lineageMarkdown(tr.Renderer, g, g.Depths())
	require.NoError(t, err)

	out := tr.Output()
	testutil.AssertContains(t, out, "# Lineage")
	testutil.AssertContains(t, out, "**Relations**: 5")
	testutil.AssertContains(t, out, "## Depth 2")
	testutil.AssertContains(t, out, "`marts.fct_revenue` (model, table), reads from 2 upstream")
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
}

func TestNewLineageOutput(t *testing.T) {
	g := testGraph(t)
	depths := g.Depths()

	lo := output.NewLineageOutput(g, depths)

	assert.Equal(t, 5, lo.Stats.Relations)
	assert.Equal(t, 4, lo.Stats.Edges)
	assert.Equal(t, 2, lo.Stats.MaxDepth)
	assert.Equal(t, 0, lo.Stats.Cycles)
	require.Len(t, lo.Relations, 5)

	// Deepest first, and the mart inherits the collapsed ephemeral's
	// dependencies.
	assert.Equal(t, "model.shop.fct_revenue", lo.Relations[0].ID)
	assert.Equal(t, []string{"model.shop.stg_customers", "model.shop.stg_orders"}, lo.Relations[0].Parents)
}

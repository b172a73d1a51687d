package output

import (
	"sort"

	"github.com/leapstack-labs/compass/internal/lineage"
)

// NewLineageOutput flattens a graph and its depth result into the shared
// lineage envelope. Relations are ordered deepest first, mirroring the
// order the widening loop offers them in.
func NewLineageOutput(g *lineage.Graph, depths *lineage.DepthResult) LineageOutput {
	out := LineageOutput{
		Relations: make([]LineageNode, 0, g.RelationCount()),
		Stats: LineageStats{
			Relations: g.RelationCount(),
			Edges:     g.EdgeCount(),
			MaxDepth:  depths.MaxDepth(),
			Cycles:    len(depths.Cyclic),
		},
	}

	ids := g.RelationIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return depths.Depths[ids[i]] > depths.Depths[ids[j]]
	})

	for _, id := range ids {
		r, ok := g.Relation(id)
		if !ok {
			continue
		}
		depth, _ := depths.Depth(id)
		out.Relations = append(out.Relations, LineageNode{
			ID:      id,
			Name:    r.QualifiedName(),
			Kind:    string(r.Kind),
			Depth:   depth,
			Cyclic:  depths.IsCyclic(id),
			Parents: g.Parents(id),
		})
	}
	return out
}

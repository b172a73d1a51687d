// Package lineage builds the physical dependency graph of a warehouse
// project from its manifest and derives per-relation depth bands.
//
// Only relations that exist as queryable objects in the warehouse
// (models, seeds, snapshots, sources) become graph members. Ephemeral
// models are collapsed: every consumer inherits the ephemeral node's
// own dependencies, transitively, so edges always connect two physical
// relations.
package lineage

import (
	"log/slog"
	"sort"

	"github.com/leapstack-labs/compass/internal/manifest"
	"github.com/leapstack-labs/compass/pkg/core"
)

// Graph is the physical dependency graph. Edges point from a relation
// to its parents (the relations it reads from).
type Graph struct {
	relations map[string]*core.PhysicalRelation
	parents   map[string][]string
	children  map[string][]string
}

// Build constructs the physical graph from a parsed manifest.
//
// Dependency ids that resolve to tests, docs, or disabled nodes are
// dropped silently. Ids that appear in no manifest section at all are
// logged and skipped rather than failing the build.
func Build(m *manifest.Manifest, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	g := &Graph{
		relations: make(map[string]*core.PhysicalRelation),
		parents:   make(map[string][]string),
		children:  make(map[string][]string),
	}

	for id, node := range m.Nodes {
		kind, physical := nodeKind(node)
		if !physical || !node.IsEnabled() || node.IsEphemeral() {
			continue
		}
		g.relations[id] = &core.PhysicalRelation{
			ID:              id,
			Database:        node.Database,
			Schema:          node.Schema,
			Identifier:      node.TableName(),
			Kind:            kind,
			Materialization: materializationOf(node, kind),
		}
	}
	for id, src := range m.Sources {
		g.relations[id] = &core.PhysicalRelation{
			ID:              id,
			Database:        src.Database,
			Schema:          src.Schema,
			Identifier:      src.TableName(),
			Kind:            core.KindSource,
			Materialization: "table",
		}
	}

	// Memoized expansion of ephemeral nodes into their physical ancestry.
	collapsed := make(map[string][]string)
	expanding := make(map[string]bool)

	var resolve func(dep string) []string
	resolve = func(dep string) []string {
		if _, ok := g.relations[dep]; ok {
			return []string{dep}
		}
		node, ok := m.Nodes[dep]
		if !ok {
			return nil
		}
		if !node.IsEphemeral() || !node.IsEnabled() {
			// Tests, docs, disabled nodes: no physical contribution.
			return nil
		}
		if ids, ok := collapsed[dep]; ok {
			return ids
		}
		if expanding[dep] {
			// Ephemeral chain loops back on itself; contribute nothing.
			return nil
		}
		expanding[dep] = true
		set := make(map[string]bool)
		for _, upstream := range node.DependsOn.Nodes {
			for _, id := range resolve(upstream) {
				set[id] = true
			}
		}
		delete(expanding, dep)
		ids := sortedKeys(set)
		collapsed[dep] = ids
		return ids
	}

	for id := range g.relations {
		node, ok := m.Nodes[id]
		if !ok {
			// Sources declare no dependencies.
			g.parents[id] = []string{}
			continue
		}
		set := make(map[string]bool)
		for _, dep := range node.DependsOn.Nodes {
			if !known(m, dep) {
				logger.Warn("skipping unknown dependency",
					"relation", id,
					"dependency", dep)
				continue
			}
			for _, parent := range resolve(dep) {
				if parent == id {
					continue
				}
				set[parent] = true
			}
		}
		g.parents[id] = sortedKeys(set)
	}

	for id, ps := range g.parents {
		for _, p := range ps {
			g.children[p] = append(g.children[p], id)
		}
	}
	for id := range g.children {
		sort.Strings(g.children[id])
	}

	logger.Debug("lineage graph built",
		"relations", g.RelationCount(),
		"edges", g.EdgeCount())

	return g
}

// Relation returns the physical relation for id.
func (g *Graph) Relation(id string) (*core.PhysicalRelation, bool) {
	r, ok := g.relations[id]
	return r, ok
}

// Relations returns all physical relations sorted by id.
func (g *Graph) Relations() []*core.PhysicalRelation {
	out := make([]*core.PhysicalRelation, 0, len(g.relations))
	for _, r := range g.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RelationIDs returns all relation ids in sorted order.
func (g *Graph) RelationIDs() []string {
	ids := make([]string, 0, len(g.relations))
	for id := range g.relations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Parents returns the upstream relations id reads from.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the downstream relations that read from id.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// ParentMap exposes the full edge map keyed by relation id.
func (g *Graph) ParentMap() map[string][]string {
	return g.parents
}

// RelationCount returns the number of physical relations.
func (g *Graph) RelationCount() int {
	return len(g.relations)
}

// EdgeCount returns the number of parent edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, ps := range g.parents {
		count += len(ps)
	}
	return count
}

// Roots returns relations with no parents, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.relations {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns relations with no children, sorted.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.relations {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

func nodeKind(n manifest.Node) (core.RelationKind, bool) {
	switch n.ResourceType {
	case "model":
		return core.KindModel, true
	case "seed":
		return core.KindSeed, true
	case "snapshot":
		return core.KindSnapshot, true
	default:
		return "", false
	}
}

func materializationOf(n manifest.Node, kind core.RelationKind) string {
	if n.Config != nil && n.Config.Materialized != "" {
		return n.Config.Materialized
	}
	switch kind {
	case core.KindSeed:
		return "seed"
	case core.KindSnapshot:
		return "snapshot"
	default:
		return "view"
	}
}

func known(m *manifest.Manifest, id string) bool {
	if _, ok := m.Nodes[id]; ok {
		return true
	}
	_, ok := m.Sources[id]
	return ok
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

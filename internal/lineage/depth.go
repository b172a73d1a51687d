package lineage

import "sort"

// DepthResult holds per-relation depths derived from the parent edge
// map. Depth 0 means no parents; otherwise depth is 1 plus the maximum
// parent depth. Relations that sit on a dependency cycle are recorded
// in Cyclic and pinned to depth 0 instead of aborting the computation.
type DepthResult struct {
	Depths map[string]int
	Cyclic map[string]struct{}
}

// ComputeDepths calculates the depth of every relation in the edge map.
// The walk is memoized so shared ancestry is visited once.
func ComputeDepths(parents map[string][]string) *DepthResult {
	r := &DepthResult{
		Depths: make(map[string]int, len(parents)),
		Cyclic: make(map[string]struct{}),
	}

	onStack := make(map[string]bool)
	var stack []string

	flagCycleFrom := func(start string) {
		for i := len(stack) - 1; i >= 0; i-- {
			id := stack[i]
			r.Cyclic[id] = struct{}{}
			r.Depths[id] = 0
			if id == start {
				return
			}
		}
	}

	var visit func(id string) int
	visit = func(id string) int {
		if d, ok := r.Depths[id]; ok {
			return d
		}
		onStack[id] = true
		stack = append(stack, id)

		best := -1
		for _, p := range parents[id] {
			if onStack[p] {
				flagCycleFrom(p)
				continue
			}
			if pd := visit(p); pd > best {
				best = pd
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)

		if _, cyclic := r.Cyclic[id]; cyclic {
			return 0
		}
		d := 0
		if best >= 0 {
			d = best + 1
		}
		r.Depths[id] = d
		return d
	}

	ids := make([]string, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		visit(id)
	}

	return r
}

// Depths computes the depth of every relation in the graph.
func (g *Graph) Depths() *DepthResult {
	return ComputeDepths(g.parents)
}

// Depth returns the depth recorded for id.
func (r *DepthResult) Depth(id string) (int, bool) {
	d, ok := r.Depths[id]
	return d, ok
}

// IsCyclic reports whether id was found on a dependency cycle.
func (r *DepthResult) IsCyclic(id string) bool {
	_, ok := r.Cyclic[id]
	return ok
}

// MaxDepth returns the largest depth present, or 0 for an empty result.
func (r *DepthResult) MaxDepth() int {
	max := 0
	for _, d := range r.Depths {
		if d > max {
			max = d
		}
	}
	return max
}

// AtLeast returns the ids of all relations at or beyond the given
// depth, sorted. AtLeast(0) returns every relation.
func (r *DepthResult) AtLeast(min int) []string {
	var ids []string
	for id, d := range r.Depths {
		if d >= min {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ByDepth groups relation ids by depth, each band sorted.
func (r *DepthResult) ByDepth() map[int][]string {
	bands := make(map[int][]string)
	for id, d := range r.Depths {
		bands[d] = append(bands[d], id)
	}
	for d := range bands {
		sort.Strings(bands[d])
	}
	return bands
}

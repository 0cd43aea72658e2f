package resolver

import (
	"sort"

	"github.com/sunholo/extrt/internal/manifest"
	"github.com/sunholo/extrt/internal/uid"
)

// tarjanSCC computes strongly connected components over the edge
// relation "this depends on" restricted to ids, canonically ordered so
// repeated runs on identical input produce identical SCC groupings
// (spec §4.2 determinism requirement). Grounded on the teacher's
// internal/link/topo.go DFS-with-recursion-stack shape, generalized from
// single-cycle detection to full SCC partitioning.
func tarjanSCC(ids []uid.UniqueId, byID map[uid.UniqueId]*candidate) [][]uid.UniqueId {
	sorted := append([]uid.UniqueId{}, ids...)
	sort.Slice(sorted, func(i, j int) bool { return byID[sorted[i]].ext.Manifest.Name < byID[sorted[j]].ext.Manifest.Name })

	index := make(map[uid.UniqueId]int)
	lowlink := make(map[uid.UniqueId]int)
	onStack := make(map[uid.UniqueId]bool)
	var stack []uid.UniqueId
	counter := 0
	var sccs [][]uid.UniqueId

	viable := make(map[uid.UniqueId]bool, len(sorted))
	for _, id := range sorted {
		viable[id] = true
	}

	var strongconnect func(v uid.UniqueId)
	strongconnect = func(v uid.UniqueId) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		edges := append([]uid.UniqueId{}, byID[v].edges...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].Name() < edges[j].Name() })
		for _, w := range edges {
			if !viable[w] {
				continue
			}
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var scc []uid.UniqueId
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, id := range sorted {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}
	return sccs
}

// topoSort runs Kahn's algorithm over the dependency edges restricted to
// ids, breaking ties by (module-first, name) as spec §4.2 step 7 requires.
func topoSort(ids []uid.UniqueId, byID map[uid.UniqueId]*candidate) []uid.UniqueId {
	viable := make(map[uid.UniqueId]bool, len(ids))
	for _, id := range ids {
		viable[id] = true
	}

	// remaining[id] counts id's own dependency edges into the viable set
	// that have not been emitted yet. We build load_order as
	// dependencies-first: an id is ready once its count reaches zero, i.e.
	// all of its dependency edges have already been emitted.
	remaining := make(map[uid.UniqueId]int, len(ids))
	for _, id := range ids {
		count := 0
		for _, e := range byID[id].edges {
			if viable[e] {
				count++
			}
		}
		remaining[id] = count
	}

	emitted := make(map[uid.UniqueId]bool, len(ids))
	var order []uid.UniqueId
	for len(order) < len(ids) {
		var ready []uid.UniqueId
		for _, id := range ids {
			if emitted[id] || remaining[id] > 0 {
				continue
			}
			ready = append(ready, id)
		}
		if len(ready) == 0 {
			break // residual cycle not caught upstream; stop rather than loop forever
		}
		sort.Slice(ready, func(i, j int) bool {
			ci, cj := byID[ready[i]], byID[ready[j]]
			iModule := ci.ext.Manifest.Type == manifest.TypeModule
			jModule := cj.ext.Manifest.Type == manifest.TypeModule
			if iModule != jModule {
				return iModule
			}
			return ci.ext.Manifest.Name < cj.ext.Manifest.Name
		})
		next := ready[0]
		order = append(order, next)
		emitted[next] = true
		for _, id := range ids {
			if emitted[id] {
				continue
			}
			for _, e := range byID[id].edges {
				if e == next {
					remaining[id]--
				}
			}
		}
	}
	return order
}

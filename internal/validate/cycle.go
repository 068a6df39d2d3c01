package validate

import (
	"sort"
	"strings"

	"github.com/opensovd/mddc/internal/model"
)

// extendsCycles finds cycles in the variant inheritance graph using
// Tarjan's strongly connected components. The graph has one edge per
// variant (name -> extends target), so every SCC larger than one node
// is a cycle, as is any self-edge.
func extendsCycles(definitions map[string]*model.VariantDef) [][]string {
	graph := make(map[string][]string, len(definitions))
	for name, def := range definitions {
		graph[name] = nil
		if def.Extends != "" {
			if _, ok := definitions[def.Extends]; ok {
				graph[name] = []string{def.Extends}
			}
		}
	}

	sccs := tarjanSCC(graph)

	var cycles [][]string
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfEdge(scc[0], graph)) {
			sort.Strings(scc)
			cycles = append(cycles, scc)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func hasSelfEdge(node string, graph map[string][]string) bool {
	for _, next := range graph[node] {
		if next == node {
			return true
		}
	}
	return false
}

// tarjanSCC returns the strongly connected components of the graph.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func formatCycle(cycle []string) string {
	return strings.Join(append(append([]string{}, cycle...), cycle[0]), " -> ")
}

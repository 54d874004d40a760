package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/triggersim/internal/channel"
	"github.com/roach88/triggersim/internal/ir"
)

// CycleWarning represents a loop in the firing graph of a layout.
//
// Cycles are warnings, not errors, because they may be intentional
// (oscillators, clocks). A cycle whose delays sum to zero never lets
// simulated time advance and ends only at the engine's step quota; those
// get Level "warning", the rest "info".
type CycleWarning struct {
	Path       []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message    string   `json:"message"` // Human-readable description
	Level      string   `json:"level"`   // "warning" or "info"
	TotalDelay float64  `json:"total_delay"`
}

// AnalyzeCycles performs static cycle analysis on a layout.
//
// The algorithm:
//  1. Build the firing graph: A → B when A's output channel is in B's
//     triggerOn set
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// Edges ignore activation state, so a reported cycle can fire only if its
// triggers are active at the same time.
//
// A DAG (no cycles) returns an empty warning list.
func AnalyzeCycles(layout []ir.TriggerSnapshot) []CycleWarning {
	if len(layout) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildFiringGraph(layout)
	delays := make(map[string]float64, len(layout))
	for _, s := range layout {
		delays[s.ID] = s.Delay
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, delays))
		}
	}
	return warnings
}

// firingGraph maps trigger id → ids whose triggerOn hears its output.
type firingGraph map[string][]string

// buildFiringGraph returns the graph and the node order (layout order), so
// the analysis is deterministic.
func buildFiringGraph(layout []ir.TriggerSnapshot) (firingGraph, []string) {
	graph := make(firingGraph, len(layout))
	order := make([]string, 0, len(layout))

	listeners := make(map[string][]string)
	for _, s := range layout {
		for _, ch := range channel.Parse(s.TriggerOn) {
			listeners[ch] = append(listeners[ch], s.ID)
		}
	}

	for _, s := range layout {
		if _, dup := graph[s.ID]; dup {
			continue
		}
		order = append(order, s.ID)
		graph[s.ID] = []string{}
		if s.WhenTriggered == nil {
			continue
		}
		graph[s.ID] = append(graph[s.ID], listeners[strings.TrimSpace(*s.WhenTriggered)]...)
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph firingGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// visiting roots in the given order.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph firingGraph, order []string) [][]string {
	var (
		index   = 0
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

		// v is a root node: pop the stack into an SCC
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

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph firingGraph, delays map[string]float64) CycleWarning {
	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = reconstructCyclePath(scc, graph)
	}

	var total float64
	for _, id := range path[:len(path)-1] {
		total += delays[id]
	}

	level := "info"
	kind := "Cycle"
	if total == 0 {
		level = "warning"
		kind = "Zero-delay cycle"
	}

	if len(scc) == 1 {
		return CycleWarning{
			Path:       path,
			Message:    fmt.Sprintf("%s: %s re-triggers itself", kind, scc[0]),
			Level:      level,
			TotalDelay: total,
		}
	}
	return CycleWarning{
		Path:       path,
		Message:    fmt.Sprintf("%s: %s", kind, strings.Join(path, " → ")),
		Level:      level,
		TotalDelay: total,
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the last node popped (the SCC root, first in layout
// order), follow edges to other SCC members until we return to the start.
func reconstructCyclePath(scc []string, graph firingGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}

package detection

import (
	"fmt"
	"sort"

	"github.com/vanshika/ringtrace/internal/domain"
)

// CycleLabel is the pattern label of a cycle with n accounts.
func CycleLabel(n int) string {
	return fmt.Sprintf("cycle_length_%d", n)
}

// DetectCycles finds simple directed cycles with between minLen and maxLen
// accounts and groups them into rings numbered from RING_001.
//
// Cycles are processed in lexicographic order of their account sequence, each
// rotated to start at its smallest account. Enumeration cost grows with graph
// density; the length window is the only bound.
func DetectCycles(g *Graph, minLen, maxLen int, strategy Grouping) []Ring {
	var cycles [][]string
	for _, cycle := range enumerateCycles(g, maxLen) {
		if len(cycle) >= minLen && len(cycle) <= maxLen {
			cycles = append(cycles, cycle)
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return lessPath(cycles[i], cycles[j])
	})
	return groupPaths(cycles, domain.PatternCycle, strategy, 1)
}

type searchFrame struct {
	account string
	path    []string
}

// enumerateCycles reports each simple cycle of at most maxLen accounts once,
// starting from its smallest account. Only accounts greater than the start are
// explored, which prevents rotations of the same cycle.
func enumerateCycles(g *Graph, maxLen int) [][]string {
	var cycles [][]string
	for _, start := range g.Accounts() {
		stack := []searchFrame{{account: start, path: []string{start}}}
		for len(stack) > 0 {
			frame := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			for _, next := range g.Successors(frame.account) {
				if next == start {
					cycles = append(cycles, append([]string(nil), frame.path...))
					continue
				}
				if next < start || len(frame.path) >= maxLen || onPath(frame.path, next) {
					continue
				}
				path := make([]string, len(frame.path), len(frame.path)+1)
				copy(path, frame.path)
				stack = append(stack, searchFrame{account: next, path: append(path, next)})
			}
		}
	}
	return cycles
}

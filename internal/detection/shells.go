package detection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanshika/ringtrace/internal/domain"
)

// shellLengthSpan is the number of chain lengths tried from the minimum.
const shellLengthSpan = 3

// ShellLabel is the pattern label of a layered shell chain with n accounts.
func ShellLabel(n int) string {
	return fmt.Sprintf("layered_shell_%dhop", n)
}

// DetectShellChains finds directed relay chains whose interior accounts have
// a total degree of at most maxIntermediateDegree. Lengths minChain through
// minChain+2 are tried in turn; a chain over an already recorded account set
// is skipped. Chains are grouped into rings numbered from RING_001 without
// regard to cycles.
func DetectShellChains(g *Graph, minChain, maxIntermediateDegree int, strategy Grouping) []Ring {
	var chains [][]string
	seen := make(map[string]struct{})

	for length := minChain; length < minChain+shellLengthSpan; length++ {
		for _, start := range g.Accounts() {
			if g.OutDegree(start) == 0 {
				continue
			}
			for _, chain := range extendChains(g, start, length, maxIntermediateDegree) {
				key := chainKey(chain)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				chains = append(chains, chain)
			}
		}
	}
	return groupPaths(chains, domain.PatternShell, strategy, 1)
}

// extendChains walks every simple path of exactly length accounts from start,
// in depth-first order over ascending successors. Accounts that would sit in
// the interior of the chain must satisfy the degree bound.
func extendChains(g *Graph, start string, length, maxIntermediateDegree int) [][]string {
	var chains [][]string
	stack := []searchFrame{{account: start, path: []string{start}}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(frame.path) == length {
			chains = append(chains, frame.path)
			continue
		}

		successors := g.Successors(frame.account)
		// pushed in reverse so the smallest successor is explored first
		for i := len(successors) - 1; i >= 0; i-- {
			next := successors[i]
			if onPath(frame.path, next) {
				continue
			}
			interior := len(frame.path) < length-1
			if interior && g.Degree(next) > maxIntermediateDegree {
				continue
			}
			path := make([]string, len(frame.path), len(frame.path)+1)
			copy(path, frame.path)
			stack = append(stack, searchFrame{account: next, path: append(path, next)})
		}
	}
	return chains
}

func chainKey(chain []string) string {
	sorted := append([]string(nil), chain...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

package detection

import (
	"fmt"
	"sort"
)

// Ring groups the cycles or chains that share accounts under one id.
type Ring struct {
	ID      string
	Seq     int
	Pattern string
	// Paths holds the member cycles or chains in processing order.
	Paths [][]string
}

// Members returns the distinct accounts of the ring in ascending order.
func (r Ring) Members() []string {
	seen := make(map[string]struct{})
	var members []string
	for _, path := range r.Paths {
		for _, account := range path {
			if _, ok := seen[account]; ok {
				continue
			}
			seen[account] = struct{}{}
			members = append(members, account)
		}
	}
	sort.Strings(members)
	return members
}

func ringID(seq int) string {
	return fmt.Sprintf("RING_%03d", seq)
}

// groupPaths assigns every path to a ring. Ring sequence numbers start at
// firstSeq and are minted in the order rings are first encountered.
func groupPaths(paths [][]string, pattern string, strategy Grouping, firstSeq int) []Ring {
	if len(paths) == 0 {
		return nil
	}
	if strategy == GroupingFirstMatch {
		return groupFirstMatch(paths, pattern, firstSeq)
	}
	return groupUnionFind(paths, pattern, firstSeq)
}

func groupFirstMatch(paths [][]string, pattern string, firstSeq int) []Ring {
	var rings []Ring
	accountRing := make(map[string]int)

	for _, path := range paths {
		idx := -1
		for _, account := range path {
			if existing, ok := accountRing[account]; ok {
				idx = existing
				break
			}
		}
		if idx < 0 {
			seq := firstSeq + len(rings)
			rings = append(rings, Ring{ID: ringID(seq), Seq: seq, Pattern: pattern})
			idx = len(rings) - 1
		}
		rings[idx].Paths = append(rings[idx].Paths, path)
		for _, account := range path {
			accountRing[account] = idx
		}
	}
	return rings
}

func groupUnionFind(paths [][]string, pattern string, firstSeq int) []Ring {
	set := newDisjointSet()
	for _, path := range paths {
		for _, account := range path[1:] {
			set.union(path[0], account)
		}
	}

	var rings []Ring
	rootRing := make(map[string]int)
	for _, path := range paths {
		root := set.find(path[0])
		idx, ok := rootRing[root]
		if !ok {
			seq := firstSeq + len(rings)
			rings = append(rings, Ring{ID: ringID(seq), Seq: seq, Pattern: pattern})
			idx = len(rings) - 1
			rootRing[root] = idx
		}
		rings[idx].Paths = append(rings[idx].Paths, path)
	}
	return rings
}

type disjointSet struct {
	parent map[string]string
	rank   map[string]int
}

func newDisjointSet() *disjointSet {
	return &disjointSet{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (s *disjointSet) find(x string) string {
	if _, ok := s.parent[x]; !ok {
		s.parent[x] = x
		return x
	}
	root := x
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[x] != root {
		next := s.parent[x]
		s.parent[x] = root
		x = next
	}
	return root
}

func (s *disjointSet) union(a, b string) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
}

func onPath(path []string, account string) bool {
	for _, p := range path {
		if p == account {
			return true
		}
	}
	return false
}

func lessPath(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/ringtrace/internal/domain"
)

func TestDetectCycles_Triangle(t *testing.T) {
	b := &txBuilder{}
	b.chain("B", "C", "A", "B")

	rings := DetectCycles(BuildGraph(b.txs), 3, 5, GroupingUnionFind)

	require.Len(t, rings, 1)
	assert.Equal(t, "RING_001", rings[0].ID)
	assert.Equal(t, domain.PatternCycle, rings[0].Pattern)
	assert.Equal(t, [][]string{{"A", "B", "C"}}, rings[0].Paths)
}

func TestDetectCycles_LengthWindow(t *testing.T) {
	b := &txBuilder{}
	b.chain("A", "B", "A").
		chain("C1", "C2", "C3", "C4", "C5", "C1").
		chain("D1", "D2", "D3", "D4", "D5", "D6", "D1")

	rings := DetectCycles(BuildGraph(b.txs), 3, 5, GroupingUnionFind)

	require.Len(t, rings, 1)
	assert.Equal(t, [][]string{{"C1", "C2", "C3", "C4", "C5"}}, rings[0].Paths)
}

func TestDetectCycles_SortedAndNumberedInMintOrder(t *testing.T) {
	b := &txBuilder{}
	b.chain("M", "N", "O", "M").
		chain("A", "B", "C", "D", "A").
		chain("A", "X", "Y", "A")

	rings := DetectCycles(BuildGraph(b.txs), 3, 5, GroupingUnionFind)

	require.Len(t, rings, 2)
	assert.Equal(t, "RING_001", rings[0].ID)
	assert.Equal(t, [][]string{{"A", "B", "C", "D"}, {"A", "X", "Y"}}, rings[0].Paths)
	assert.Equal(t, "RING_002", rings[1].ID)
	assert.Equal(t, [][]string{{"M", "N", "O"}}, rings[1].Paths)
}

func bridgedCycles() []domain.Transaction {
	b := &txBuilder{}
	b.chain("A", "B", "Z", "A").
		chain("C", "D", "E", "C").
		chain("D", "Y", "Z", "D")
	return b.txs
}

func TestDetectCycles_UnionFindMergesBridgedRings(t *testing.T) {
	rings := DetectCycles(BuildGraph(bridgedCycles()), 3, 5, GroupingUnionFind)

	require.Len(t, rings, 1)
	assert.Len(t, rings[0].Paths, 3)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "Y", "Z"}, rings[0].Members())
}

func TestDetectCycles_FirstMatchAttachesToFirstTaggedRing(t *testing.T) {
	rings := DetectCycles(BuildGraph(bridgedCycles()), 3, 5, GroupingFirstMatch)

	require.Len(t, rings, 2)
	assert.Equal(t, [][]string{{"A", "B", "Z"}}, rings[0].Paths)
	assert.Equal(t, [][]string{{"C", "D", "E"}, {"D", "Y", "Z"}}, rings[1].Paths)
	assert.Equal(t, [][]string{{"A", "B", "Z"}, {"C", "D", "E", "Y", "Z"}}, memberSets(rings))
}

func TestDetectCycles_NoCycles(t *testing.T) {
	b := &txBuilder{}
	b.chain("A", "B", "C", "D")

	assert.Empty(t, DetectCycles(BuildGraph(b.txs), 3, 5, GroupingUnionFind))
}

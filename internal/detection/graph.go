package detection

import (
	"sort"
	"time"

	"github.com/vanshika/ringtrace/internal/domain"
)

// EdgeTransaction is a single transaction folded into an aggregated edge.
type EdgeTransaction struct {
	ID        string
	Amount    float64
	Timestamp time.Time
}

// Edge aggregates every transaction sent from one account to another.
type Edge struct {
	From         string
	To           string
	Amount       float64
	Transactions []EdgeTransaction
}

type node struct {
	id  string
	out map[string]*Edge
	in  map[string]*Edge
}

// Graph is a simple directed account graph. Parallel transactions between the
// same ordered pair collapse into one Edge; self-loops are kept.
type Graph struct {
	nodes map[string]*node
	edges []*Edge
}

// BuildGraph folds the transactions into an account graph in a single pass.
// Input is assumed validated upstream.
func BuildGraph(txs []domain.Transaction) *Graph {
	g := &Graph{nodes: make(map[string]*node)}
	for _, tx := range txs {
		from := g.ensureNode(tx.SenderID)
		to := g.ensureNode(tx.ReceiverID)

		edge, ok := from.out[tx.ReceiverID]
		if !ok {
			edge = &Edge{From: tx.SenderID, To: tx.ReceiverID}
			from.out[tx.ReceiverID] = edge
			to.in[tx.SenderID] = edge
			g.edges = append(g.edges, edge)
		}
		edge.Amount += tx.Amount
		edge.Transactions = append(edge.Transactions, EdgeTransaction{
			ID:        tx.ID,
			Amount:    tx.Amount,
			Timestamp: tx.Timestamp,
		})
	}
	return g
}

func (g *Graph) ensureNode(id string) *node {
	n, ok := g.nodes[id]
	if !ok {
		n = &node{
			id:  id,
			out: make(map[string]*Edge),
			in:  make(map[string]*Edge),
		}
		g.nodes[id] = n
	}
	return n
}

// Len returns the number of accounts in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Has reports whether the account appears in any transaction.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Accounts returns every account id in ascending order.
func (g *Graph) Accounts() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Successors returns the accounts id sends to, in ascending order.
func (g *Graph) Successors(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.out)
}

// Predecessors returns the accounts sending to id, in ascending order.
func (g *Graph) Predecessors(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.in)
}

// OutDegree counts distinct receivers of id.
func (g *Graph) OutDegree(id string) int {
	if n, ok := g.nodes[id]; ok {
		return len(n.out)
	}
	return 0
}

// InDegree counts distinct senders to id.
func (g *Graph) InDegree(id string) int {
	if n, ok := g.nodes[id]; ok {
		return len(n.in)
	}
	return 0
}

// Degree is InDegree plus OutDegree.
func (g *Graph) Degree(id string) int {
	return g.InDegree(id) + g.OutDegree(id)
}

// Edge returns the aggregated edge from -> to, if any.
func (g *Graph) Edge(from, to string) (*Edge, bool) {
	n, ok := g.nodes[from]
	if !ok {
		return nil, false
	}
	e, ok := n.out[to]
	return e, ok
}

// Edges returns all edges ordered by (From, To).
func (g *Graph) Edges() []*Edge {
	edges := append([]*Edge(nil), g.edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

func sortedKeys(m map[string]*Edge) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

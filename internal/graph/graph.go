package graph

import (
	"log"
	"sort"
	"time"

	"github.com/rawblock/forensics-engine/pkg/models"
)

// Node carries the per-account aggregates computed at build time.
// Nodes are immutable once the graph is built; detectors only read them.
type Node struct {
	ID                   string
	TotalSent            float64
	TotalReceived        float64
	NetFlow              float64
	SentCount            int
	ReceivedCount        int
	TxCount              int
	AvgSent              float64
	AvgReceived          float64
	UniqueCounterparties int
	FirstTx              time.Time
	LastTx               time.Time
}

// EdgeTx is one transfer collapsed into an edge, kept in timestamp order.
type EdgeTx struct {
	ID        string
	Amount    float64
	Timestamp time.Time
}

// Edge aggregates all transfers for one ordered (sender, receiver) pair.
// The reverse pair is a distinct edge.
type Edge struct {
	From         string
	To           string
	TotalAmount  float64
	AvgAmount    float64
	TxCount      int
	FirstTx      time.Time
	LastTx       time.Time
	Transactions []EdgeTx
}

type pair struct{ from, to string }

// Graph is a directed weighted multigraph of accounts, read-only for all
// detectors. Adjacency lists are sorted so every traversal is deterministic.
type Graph struct {
	nodes   map[string]*Node
	edges   map[pair]*Edge
	out     map[string][]string
	in      map[string][]string
	nodeIDs []string

	// Strongly connected components, computed once at build time; both the
	// cycle and shell detectors consume them.
	sccs    [][]string
	sccSize map[string]int

	// Dataset timespan, used by the velocity bonus.
	SpanStart time.Time
	SpanEnd   time.Time
}

// Build constructs the graph from validated transactions in one pass.
func Build(txs []models.Transaction) *Graph {
	g := &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[pair]*Edge),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}

	sentTo := make(map[string]map[string]struct{})
	recvFrom := make(map[string]map[string]struct{})

	node := func(id string) *Node {
		n, ok := g.nodes[id]
		if !ok {
			n = &Node{ID: id}
			g.nodes[id] = n
		}
		return n
	}

	for _, tx := range txs {
		s := node(tx.SenderID)
		r := node(tx.ReceiverID)

		s.TotalSent += tx.Amount
		s.SentCount++
		r.TotalReceived += tx.Amount
		r.ReceivedCount++

		touch(&s.FirstTx, &s.LastTx, tx.Timestamp)
		touch(&r.FirstTx, &r.LastTx, tx.Timestamp)
		touch(&g.SpanStart, &g.SpanEnd, tx.Timestamp)

		if sentTo[tx.SenderID] == nil {
			sentTo[tx.SenderID] = make(map[string]struct{})
		}
		sentTo[tx.SenderID][tx.ReceiverID] = struct{}{}
		if recvFrom[tx.ReceiverID] == nil {
			recvFrom[tx.ReceiverID] = make(map[string]struct{})
		}
		recvFrom[tx.ReceiverID][tx.SenderID] = struct{}{}

		key := pair{tx.SenderID, tx.ReceiverID}
		e, ok := g.edges[key]
		if !ok {
			e = &Edge{From: tx.SenderID, To: tx.ReceiverID, FirstTx: tx.Timestamp, LastTx: tx.Timestamp}
			g.edges[key] = e
		}
		e.TotalAmount += tx.Amount
		e.TxCount++
		touch(&e.FirstTx, &e.LastTx, tx.Timestamp)
		e.Transactions = append(e.Transactions, EdgeTx{ID: tx.ID, Amount: tx.Amount, Timestamp: tx.Timestamp})
	}

	for id, n := range g.nodes {
		n.TxCount = n.SentCount + n.ReceivedCount
		n.NetFlow = n.TotalReceived - n.TotalSent
		if n.SentCount > 0 {
			n.AvgSent = n.TotalSent / float64(n.SentCount)
		}
		if n.ReceivedCount > 0 {
			n.AvgReceived = n.TotalReceived / float64(n.ReceivedCount)
		}
		n.UniqueCounterparties = len(sentTo[id]) + len(recvFrom[id])
	}

	for key, e := range g.edges {
		e.AvgAmount = e.TotalAmount / float64(e.TxCount)
		sort.SliceStable(e.Transactions, func(i, j int) bool {
			return e.Transactions[i].Timestamp.Before(e.Transactions[j].Timestamp)
		})
		g.out[key.from] = append(g.out[key.from], key.to)
		g.in[key.to] = append(g.in[key.to], key.from)
	}
	for id := range g.nodes {
		g.nodeIDs = append(g.nodeIDs, id)
		sort.Strings(g.out[id])
		sort.Strings(g.in[id])
	}
	sort.Strings(g.nodeIDs)

	g.sccs = g.computeSCCs()
	g.sccSize = make(map[string]int, len(g.nodes))
	for _, scc := range g.sccs {
		for _, id := range scc {
			g.sccSize[id] = len(scc)
		}
	}

	log.Printf("[Graph] Built: %d nodes, %d edges", len(g.nodes), len(g.edges))
	return g
}

func touch(first, last *time.Time, ts time.Time) {
	if first.IsZero() || ts.Before(*first) {
		*first = ts
	}
	if last.IsZero() || ts.After(*last) {
		*last = ts
	}
}

// NodeIDs returns all account IDs in sorted order.
func (g *Graph) NodeIDs() []string { return g.nodeIDs }

// Node returns the node for id, or nil.
func (g *Graph) Node(id string) *Node { return g.nodes[id] }

// NodeCount returns the number of accounts.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edge returns the edge from 'from' to 'to', or nil when absent.
func (g *Graph) Edge(from, to string) *Edge { return g.edges[pair{from, to}] }

// Edges visits every edge in deterministic (from, to) order.
func (g *Graph) Edges(fn func(*Edge)) {
	for _, from := range g.nodeIDs {
		for _, to := range g.out[from] {
			fn(g.edges[pair{from, to}])
		}
	}
}

// Successors returns the sorted outgoing neighbors of id.
func (g *Graph) Successors(id string) []string { return g.out[id] }

// Predecessors returns the sorted incoming neighbors of id.
func (g *Graph) Predecessors(id string) []string { return g.in[id] }

// InDegree returns the number of distinct senders to id.
func (g *Graph) InDegree(id string) int { return len(g.in[id]) }

// OutDegree returns the number of distinct receivers from id.
func (g *Graph) OutDegree(id string) int { return len(g.out[id]) }

// SCCs returns the strongly connected components computed at build time.
func (g *Graph) SCCs() [][]string { return g.sccs }

// SCCSize returns the size of the component containing id.
func (g *Graph) SCCSize(id string) int { return g.sccSize[id] }

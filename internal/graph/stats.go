package graph

import (
	"math"
	"sort"

	"github.com/rawblock/forensics-engine/pkg/models"
)

// Clustering coefficient is skipped above this node count; it is O(V*d²) and
// only decorates the summary.
const clusteringMaxNodes = 1000

// undirected returns the undirected neighbor sets (sorted) for every node.
func (g *Graph) undirected() map[string][]string {
	adj := make(map[string]map[string]struct{}, len(g.nodes))
	for _, id := range g.nodeIDs {
		adj[id] = make(map[string]struct{})
	}
	for p := range g.edges {
		adj[p.from][p.to] = struct{}{}
		adj[p.to][p.from] = struct{}{}
	}
	out := make(map[string][]string, len(adj))
	for id, set := range adj {
		nbrs := make([]string, 0, len(set))
		for n := range set {
			nbrs = append(nbrs, n)
		}
		sort.Strings(nbrs)
		out[id] = nbrs
	}
	return out
}

// NetworkStatistics computes the graph-level summary block.
func (g *Graph) NetworkStatistics() models.NetworkStatistics {
	n := len(g.nodes)
	e := len(g.edges)
	stats := models.NetworkStatistics{TotalNodes: n, TotalEdges: e}
	if n > 1 {
		stats.GraphDensity = round6(float64(e) / float64(n*(n-1)))
	}
	if n > 0 {
		stats.AvgDegree = round2(2 * float64(e) / float64(n))
	}

	adj := g.undirected()
	stats.ConnectedComponents = countComponents(g.nodeIDs, adj)

	if n > 0 && n <= clusteringMaxNodes {
		avg := avgClustering(g.nodeIDs, adj)
		stats.AvgClustering = &avg
	}
	return stats
}

func countComponents(ids []string, adj map[string][]string) int {
	seen := make(map[string]bool, len(ids))
	count := 0
	for _, root := range ids {
		if seen[root] {
			continue
		}
		count++
		queue := []string{root}
		seen[root] = true
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, w := range adj[v] {
				if !seen[w] {
					seen[w] = true
					queue = append(queue, w)
				}
			}
		}
	}
	return count
}

func avgClustering(ids []string, adj map[string][]string) float64 {
	if len(ids) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range ids {
		nbrs := adj[id]
		k := len(nbrs)
		if k < 2 {
			continue
		}
		// Count pairs of neighbors that are themselves connected.
		links := 0
		for i, a := range nbrs {
			for _, b := range nbrs[i+1:] {
				if neighborOf(adj[a], b) {
					links++
				}
			}
		}
		total += 2 * float64(links) / float64(k*(k-1))
	}
	return math.Round(total/float64(len(ids))*10000) / 10000
}

func neighborOf(sorted []string, target string) bool {
	i := sort.SearchStrings(sorted, target)
	return i < len(sorted) && sorted[i] == target
}

// Communities assigns a community ID to every node via synchronous label
// propagation on the undirected view. Ties break to the smallest label and
// nodes are visited in sorted order, so the assignment is deterministic.
// IDs are renumbered by first appearance over sorted node IDs.
func (g *Graph) Communities() map[string]int {
	if len(g.nodes) == 0 {
		return map[string]int{}
	}
	adj := g.undirected()

	labels := make(map[string]string, len(g.nodes))
	for _, id := range g.nodeIDs {
		labels[id] = id
	}

	const maxIters = 20
	for iter := 0; iter < maxIters; iter++ {
		next := make(map[string]string, len(labels))
		changed := false
		for _, id := range g.nodeIDs {
			nbrs := adj[id]
			if len(nbrs) == 0 {
				next[id] = labels[id]
				continue
			}
			counts := make(map[string]int, len(nbrs))
			for _, n := range nbrs {
				counts[labels[n]]++
			}
			best, bestCount := labels[id], 0
			keys := make([]string, 0, len(counts))
			for l := range counts {
				keys = append(keys, l)
			}
			sort.Strings(keys)
			for _, l := range keys {
				if counts[l] > bestCount {
					best, bestCount = l, counts[l]
				}
			}
			next[id] = best
			if best != labels[id] {
				changed = true
			}
		}
		labels = next
		if !changed {
			break
		}
	}

	ids := make(map[string]int)
	result := make(map[string]int, len(labels))
	nextID := 0
	for _, node := range g.nodeIDs {
		label := labels[node]
		cid, ok := ids[label]
		if !ok {
			cid = nextID
			ids[label] = cid
			nextID++
		}
		result[node] = cid
	}
	return result
}

// TemporalProfile builds an hour-of-day activity histogram for one account
// from the transactions on its incident edges. Returns nil when the account
// has no timestamped activity.
func (g *Graph) TemporalProfile(id string) *models.TemporalProfile {
	var profile models.TemporalProfile
	seen := false

	collect := func(e *Edge) {
		for _, tx := range e.Transactions {
			profile.HourlyDistribution[tx.Timestamp.Hour()]++
			seen = true
		}
	}
	for _, to := range g.out[id] {
		collect(g.edges[pair{id, to}])
	}
	for _, from := range g.in[id] {
		collect(g.edges[pair{from, id}])
	}
	if !seen {
		return nil
	}

	peak, peakCount := 0, -1
	active := 0
	for h, c := range profile.HourlyDistribution {
		if c > peakCount {
			peak, peakCount = h, c
		}
		if c > 0 {
			active++
		}
	}
	profile.PeakHour = peak
	profile.ActiveHours = active
	return &profile
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

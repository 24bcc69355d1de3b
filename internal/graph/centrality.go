package graph

// BetweennessCentrality computes normalized betweenness centrality for every
// node using Brandes' algorithm over unweighted shortest paths (O(V*E)).
// Directed normalization divides by (n-1)(n-2).
func (g *Graph) BetweennessCentrality() map[string]float64 {
	cb := make(map[string]float64, len(g.nodes))
	for _, id := range g.nodeIDs {
		cb[id] = 0
	}

	for _, s := range g.nodeIDs {
		// Single-source shortest paths by BFS.
		sigma := make(map[string]float64, len(g.nodes)) // path counts
		dist := make(map[string]int, len(g.nodes))
		preds := make(map[string][]string)
		var order []string // nodes in non-decreasing distance

		sigma[s] = 1
		dist[s] = 0
		queue := []string{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			order = append(order, v)
			for _, w := range g.out[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		// Dependency accumulation in reverse BFS order.
		delta := make(map[string]float64, len(order))
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}

	n := float64(len(g.nodes))
	if n > 2 {
		scale := 1.0 / ((n - 1) * (n - 2))
		for id := range cb {
			cb[id] *= scale
		}
	}
	return cb
}

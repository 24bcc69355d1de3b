package graph

// computeSCCs runs Tarjan's algorithm with an explicit frame stack so that
// adversarially deep graphs cannot blow the call stack. Components come out
// in a deterministic order because traversal follows sorted node IDs.
func (g *Graph) computeSCCs() [][]string {
	const unvisited = -1

	index := make(map[string]int, len(g.nodes))
	lowlink := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var stack []string
	var sccs [][]string
	counter := 0

	type frame struct {
		node string
		next int // index into successor list
	}

	for _, root := range g.nodeIDs {
		if _, seen := index[root]; seen {
			continue
		}

		frames := []frame{{node: root}}
		index[root] = counter
		lowlink[root] = counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			succs := g.out[f.node]

			if f.next < len(succs) {
				w := succs[f.next]
				f.next++
				if _, seen := index[w]; !seen {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{node: w})
				} else if onStack[w] {
					if index[w] < lowlink[f.node] {
						lowlink[f.node] = index[w]
					}
				}
				continue
			}

			// All successors explored: pop the frame, fold lowlink into the
			// parent, and emit a component if this node is a root.
			v := f.node
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				p := frames[len(frames)-1].node
				if lowlink[v] < lowlink[p] {
					lowlink[p] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				var comp []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, comp)
			}
		}
	}

	return sccs
}

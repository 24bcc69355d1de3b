package detect

import (
	"log"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/graph"
)

// Shell chain detection — layered pass-through networks.
//
// A shell intermediary is a low-activity account that only exists to add a
// layer of obfuscation:
//   1. tx_count ≤ ShellMaxTx (kept dormant)
//   2. has at least one sender and one receiver (pure pass-through)
//   3. not inside an SCC of size > 1 — cycle participants are ring members,
//      not shells, and must never be misclassified.
//
// A valid chain runs non-shell source → shells → non-shell destination with
// ShellMinChain..ShellMaxChain hops. Only the intermediaries are scored as
// ring members; the endpoints are entry/exit accounts, recorded as metadata.
//
// The traversal is an explicit frame stack (no recursion) so the depth bound
// is structural, not a property of the call stack.

type shellFrame struct {
	path    []string
	visited map[string]bool
}

// DetectShellChains finds layered shell chains; the second return value
// marks the hard cap being reached.
func DetectShellChains(g *graph.Graph, cfg config.Detection) ([]Ring, bool) {
	shells := make(map[string]bool)
	candidates := 0
	for _, id := range g.NodeIDs() {
		n := g.Node(id)
		if n.TxCount <= cfg.ShellMaxTx {
			candidates++
		}
		if n.TxCount <= cfg.ShellMaxTx &&
			g.InDegree(id) > 0 && g.OutDegree(id) > 0 &&
			g.SCCSize(id) <= 1 {
			shells[id] = true
		}
	}
	log.Printf("[ShellDetector] %d shell candidates / %d nodes (%d pass-through after SCC filter)",
		candidates, g.NodeCount(), len(shells))
	if len(shells) == 0 {
		return nil, false
	}

	var rings []Ring
	seen := make(map[string]struct{})
	truncated := false

	for _, source := range g.NodeIDs() {
		if truncated {
			break
		}
		// Both endpoints must be non-shell: a chain that starts inside the
		// shell layer has no real origin.
		if shells[source] {
			continue
		}

		var stack []shellFrame
		for _, nbr := range g.Successors(source) {
			if shells[nbr] {
				stack = append(stack, shellFrame{
					path:    []string{source, nbr},
					visited: map[string]bool{source: true, nbr: true},
				})
			}
		}

		for len(stack) > 0 && !truncated {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			current := f.path[len(f.path)-1]
			hops := len(f.path) - 1

			for _, nbr := range g.Successors(current) {
				if f.visited[nbr] {
					continue
				}
				newHops := hops + 1

				if !shells[nbr] {
					// Non-shell successor terminates the chain.
					if newHops >= cfg.ShellMinChain {
						intermediaries := f.path[1:]
						key := joinKey(intermediaries)
						if _, dup := seen[key]; !dup {
							seen[key] = struct{}{}
							members := append([]string(nil), intermediaries...)
							rings = append(rings, Ring{
								Members:             members,
								Pattern:             PatternShellChain,
								ChainLength:         newHops,
								ShellIntermediaries: members,
								ChainSource:         f.path[0],
								ChainDestination:    nbr,
							})
							if len(rings) >= cfg.MaxShellChains {
								log.Printf("[ShellDetector] chain cap (%d) reached", cfg.MaxShellChains)
								truncated = true
								break
							}
						}
					}
					continue
				}

				if newHops < cfg.ShellMaxChain {
					visited := make(map[string]bool, len(f.visited)+1)
					for k := range f.visited {
						visited[k] = true
					}
					visited[nbr] = true
					stack = append(stack, shellFrame{
						path:    append(append([]string(nil), f.path...), nbr),
						visited: visited,
					})
				}
			}
		}
	}

	log.Printf("[ShellDetector] %d chains found", len(rings))
	return rings, truncated
}

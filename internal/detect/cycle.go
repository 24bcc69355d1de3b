package detect

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/graph"
)

// Cycle detection — circular fund routing (A→B→C→A).
//
// Elementary circuits can only exist inside a strongly connected component,
// so enumeration is restricted to SCCs of size ≥ CycleMinLen. Within each
// component a bounded DFS rooted at the lexicographically smallest member of
// every cycle enumerates each circuit exactly once (only successors greater
// than the root are expanded), which keeps enumeration duplicate-free before
// canonicalization even sees it.
//
// Two stop conditions apply, neither an error:
//   - wall-clock timeout, polled at every safe point (complete cycle emitted
//     or root exhausted) so partial results stay a consistent subset;
//   - hard cap on emitted cycles.
// Both set the Truncated marker for downstream transparency.

type cycleSearch struct {
	g        *graph.Graph
	cfg      config.Detection
	ctx      context.Context
	deadline time.Time

	inScope map[string]bool // nodes of the SCC under enumeration
	seen    map[string]struct{}
	rings   []Ring
	stopped bool
}

// DetectCycles enumerates directed cycles of length CycleMinLen..CycleMaxLen
// and returns them as candidate rings, plus a truncation marker when the
// timeout or the cap cut enumeration short.
func DetectCycles(ctx context.Context, g *graph.Graph, cfg config.Detection) ([]Ring, bool) {
	s := &cycleSearch{
		g:        g,
		cfg:      cfg,
		ctx:      ctx,
		deadline: time.Now().Add(cfg.CycleTimeout),
		seen:     make(map[string]struct{}),
	}

	scoped := 0
	for _, scc := range g.SCCs() {
		if len(scc) < cfg.CycleMinLen {
			continue
		}
		scoped += len(scc)
		s.inScope = make(map[string]bool, len(scc))
		for _, id := range scc {
			s.inScope[id] = true
		}
		// SCC order inherits from sorted build-time traversal; sort members
		// anyway so roots are visited smallest-first.
		members := append([]string(nil), scc...)
		sortStrings(members)
		for _, root := range members {
			if s.stopped {
				break
			}
			s.walk(root, []string{root}, map[string]bool{root: true})
		}
		if s.stopped {
			break
		}
	}

	if scoped == 0 {
		log.Printf("[CycleDetector] 0 rings found (no qualifying SCCs)")
		return nil, false
	}
	if s.stopped {
		log.Printf("[CycleDetector] truncated: %d rings found before timeout/cap", len(s.rings))
	} else {
		log.Printf("[CycleDetector] %d rings found", len(s.rings))
	}
	return s.rings, s.stopped
}

// walk extends path from its last node. Only nodes lexicographically greater
// than the root are expanded, so every cycle is discovered once, rooted at
// its smallest member.
func (s *cycleSearch) walk(root string, path []string, visited map[string]bool) {
	if s.stopped {
		return
	}
	current := path[len(path)-1]
	for _, next := range s.g.Successors(current) {
		if !s.inScope[next] {
			continue
		}
		if next == root && len(path) >= s.cfg.CycleMinLen {
			s.emit(path)
			if s.stopped {
				return
			}
			continue
		}
		if len(path) < s.cfg.CycleMaxLen && next > root && !visited[next] {
			visited[next] = true
			s.walk(root, append(path, next), visited)
			visited[next] = false
			if s.stopped {
				return
			}
		}
	}
}

func (s *cycleSearch) emit(path []string) {
	// Safe point: a full cycle is assembled, nothing is mid-mutation.
	if err := s.ctx.Err(); err != nil {
		s.stopped = true
		return
	}
	if time.Now().After(s.deadline) {
		log.Printf("[CycleDetector] timed out after %s; %d cycles collected", s.cfg.CycleTimeout, len(s.rings))
		s.stopped = true
		return
	}

	canonical := canonicalCycle(path)
	key := joinKey(canonical)
	if _, dup := s.seen[key]; dup {
		return
	}
	s.seen[key] = struct{}{}

	s.rings = append(s.rings, Ring{
		Members:     canonical,
		Pattern:     cyclePattern(len(canonical)),
		CycleLength: len(canonical),
	})

	if len(s.rings) >= s.cfg.MaxCycles {
		log.Printf("[CycleDetector] cycle cap (%d) reached; stopping early", s.cfg.MaxCycles)
		s.stopped = true
	}
}

// canonicalCycle rotates the cycle so its lexicographically smallest member
// comes first: [B,C,A] and [A,B,C] collapse to the same ring.
func canonicalCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return nil
	}
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[minIdx:]...)
	out = append(out, cycle[:minIdx]...)
	return out
}

func cyclePattern(length int) string {
	switch length {
	case 3:
		return PatternCycle3
	case 4:
		return PatternCycle4
	case 5:
		return PatternCycle5
	default:
		return fmt.Sprintf("cycle_length_%d", length)
	}
}

package detect

import (
	"log"
	"math"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/graph"
)

// Round-trip detection — symmetric two-account laundering (A→B and B→A with
// similar totals). Catches the 2-node loops the cycle detector's minimum
// length excludes. Single pass over edges, O(E).
func DetectRoundTrips(g *graph.Graph, cfg config.Detection) []Ring {
	var rings []Ring
	seen := make(map[string]struct{})

	g.Edges(func(e *graph.Edge) {
		rev := g.Edge(e.To, e.From)
		if rev == nil {
			return
		}
		a, b := e.From, e.To
		if b < a {
			a, b = b, a
		}
		key := a + "\x1f" + b
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		fwd, back := e.TotalAmount, rev.TotalAmount
		if fwd <= 0 || back <= 0 {
			return
		}
		similarity := 1.0 - math.Abs(fwd-back)/math.Max(fwd, back)
		if similarity >= cfg.RoundTripSimilarity {
			rings = append(rings, Ring{
				Members:       []string{a, b},
				Pattern:       PatternRoundTrip,
				ForwardAmount: fwd,
				ReverseAmount: back,
				Similarity:    math.Round(similarity*1000) / 1000,
			})
		}
	})

	log.Printf("[RoundTripDetector] %d pairs found", len(rings))
	return rings
}

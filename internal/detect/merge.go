package detect

import (
	"fmt"
	"log"
	"sort"

	"github.com/rawblock/forensics-engine/internal/config"
)

// Ring merge — collapse candidate rings detected by different algorithms
// when they describe the same group of accounts.
//
// The candidate list arrives in fixed priority order (cycles, fan, shell,
// round-trip appended by the caller), and the greedy scan walks it in that
// order, so the result is reproducible: no map iteration feeds the merge.
//
// The overlap ratio is |intersection| / |smaller ring| in every pairwise
// comparison regardless of which ring has higher priority. That asymmetry is
// deliberate behavior carried from the reference ruleset; do not "fix" it.

// MergeRings merges overlapping candidates and assigns sequential
// RING_001-style identifiers in order of final ring emergence.
func MergeRings(candidates []Ring, cfg config.Detection) []Ring {
	merged := mergePass(candidates, cfg.MergeOverlapRatio)
	for i := range merged {
		merged[i].RingID = fmt.Sprintf("RING_%03d", i+1)
	}
	log.Printf("[RingMerge] %d -> %d rings", len(candidates), len(merged))
	return merged
}

func mergePass(rings []Ring, overlapRatio float64) []Ring {
	if len(rings) == 0 {
		return nil
	}

	merged := make([]Ring, 0, len(rings))
	used := make([]bool, len(rings))

	for i := range rings {
		if used[i] {
			continue
		}
		used[i] = true
		current := rings[i]
		// Every candidate is compared against the seed ring's own member
		// set, never the growing union, so chained overlaps (A,B + B,C +
		// C,D) do not collapse into a single ring.
		seed := memberSet(current.Members)
		members := memberSet(current.Members)
		patterns := map[string]struct{}{current.Pattern: {}}
		for _, p := range current.MergedPatterns {
			patterns[p] = struct{}{}
		}

		for j := i + 1; j < len(rings); j++ {
			if used[j] {
				continue
			}
			if !shouldMerge(seed, rings[j].Members, overlapRatio) {
				continue
			}
			used[j] = true
			for _, m := range rings[j].Members {
				members[m] = struct{}{}
			}
			patterns[rings[j].Pattern] = struct{}{}
			for _, p := range rings[j].MergedPatterns {
				patterns[p] = struct{}{}
			}
		}

		current.Members = sortedKeys(members)
		current.MergedPatterns = sortedKeys(patterns)
		current.Pattern = highestPriority(patterns)
		merged = append(merged, current)
	}
	return merged
}

// shouldMerge tests the overlap of the seed ring against a candidate,
// relative to the smaller of the two member sets.
func shouldMerge(seed map[string]struct{}, other []string, ratio float64) bool {
	overlap := 0
	for _, m := range other {
		if _, ok := seed[m]; ok {
			overlap++
		}
	}
	smaller := len(other)
	if len(seed) < smaller {
		smaller = len(seed)
	}
	if smaller == 0 {
		return false
	}
	return float64(overlap)/float64(smaller) >= ratio
}

func memberSet(members []string) map[string]struct{} {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func highestPriority(patterns map[string]struct{}) string {
	best := ""
	bestRank := int(^uint(0) >> 1)
	for p := range patterns {
		if r := priorityOf(p); r < bestRank {
			best, bestRank = p, r
		}
	}
	return best
}

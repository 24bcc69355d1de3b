package detect

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/graph"
)

// Enrichment flag names surfaced in detected_patterns.
const (
	FlagAmountAnomaly = "amount_anomaly"
	FlagRapidMovement = "rapid_movement"
	FlagStructuring   = "structuring"
	FlagHighVelocity  = "high_velocity"
	FlagMultiRing     = "multi_ring"
)

// Enrichment bundles the three per-account behavioral scans feeding the
// scoring engine.
type Enrichment struct {
	Anomalies   map[string]AnomalyEvidence
	Rapid       map[string]RapidEvidence
	Structuring map[string]StructuringEvidence
}

// AccountScore is the scoring engine's per-account verdict.
type AccountScore struct {
	Score       float64
	Patterns    []string // deterministically sorted
	RingIDs     []string // in ring-assignment order
	Explanation string
}

// ScoreAccounts combines ring memberships, enrichment flags, velocity and
// centrality into a clamped 0-100 suspicion score per account. Accounts with
// no ring and no flag are never emitted.
func ScoreAccounts(rings []Ring, enrich Enrichment, g *graph.Graph, cfg config.Detection) map[string]*AccountScore {
	patternWeights := map[string]float64{
		PatternCycle3:     cfg.ScoreCycle3,
		PatternCycle4:     cfg.ScoreCycle4,
		PatternCycle5:     cfg.ScoreCycle5,
		PatternFanIn:      cfg.ScoreFanIn,
		PatternFanOut:     cfg.ScoreFanOut,
		PatternShellChain: cfg.ScoreShell,
		PatternRoundTrip:  cfg.ScoreRoundTrip,
	}
	const defaultWeight = 10.0

	data := make(map[string]*AccountScore)
	patternSets := make(map[string]map[string]struct{})
	entry := func(account string) *AccountScore {
		s, ok := data[account]
		if !ok {
			s = &AccountScore{}
			data[account] = s
			patternSets[account] = make(map[string]struct{})
		}
		return s
	}
	addPattern := func(account, p string) { patternSets[account][p] = struct{}{} }

	// 1. Ring membership contributions.
	for _, ring := range rings {
		weight, ok := patternWeights[ring.Pattern]
		if !ok {
			weight = defaultWeight
		}
		for _, account := range ring.Members {
			s := entry(account)
			s.Score += weight
			addPattern(account, ring.Pattern)
			if !containsString(s.RingIDs, ring.RingID) {
				s.RingIDs = append(s.RingIDs, ring.RingID)
			}
		}
	}

	// 2. Multi-ring bonus.
	for account, s := range data {
		if extra := len(s.RingIDs) - 1; extra > 0 {
			s.Score += cfg.ScoreMultiRing * float64(extra)
			addPattern(account, FlagMultiRing)
		}
	}

	// 3. Enrichment flag bonuses.
	for account := range enrich.Anomalies {
		s := entry(account)
		s.Score += cfg.ScoreAnomaly
		addPattern(account, FlagAmountAnomaly)
	}
	for account := range enrich.Rapid {
		s := entry(account)
		s.Score += cfg.ScoreRapidMovement
		addPattern(account, FlagRapidMovement)
	}
	for account := range enrich.Structuring {
		s := entry(account)
		s.Score += cfg.ScoreStructuring
		addPattern(account, FlagStructuring)
	}

	// 4. High-velocity bonus, from dataset timespan and per-node tx counts.
	spanDays := g.SpanEnd.Sub(g.SpanStart).Hours() / 24
	if spanDays < 1 {
		spanDays = 1
	}
	velocity := make(map[string]float64, g.NodeCount())
	for _, id := range g.NodeIDs() {
		perDay := float64(g.Node(id).TxCount) / spanDays
		velocity[id] = perDay
		if perDay > cfg.HighVelocityPerDay {
			s := entry(id)
			s.Score += cfg.ScoreHighVelocity
			addPattern(id, FlagHighVelocity)
		}
	}

	// 5. Centrality bonus; exact betweenness is O(V*E), so large graphs skip it.
	centralityBonus := make(map[string]float64)
	if g.NodeCount() > 0 && g.NodeCount() <= cfg.CentralityMaxNodes {
		centrality := g.BetweennessCentrality()
		maxC := 0.0
		for _, c := range centrality {
			if c > maxC {
				maxC = c
			}
		}
		if maxC > 0 {
			for account, s := range data {
				bonus := centrality[account] / maxC * cfg.ScoreCentralityMax
				if bonus > 0 {
					s.Score += bonus
					centralityBonus[account] = bonus
				}
			}
		}
	} else if g.NodeCount() > cfg.CentralityMaxNodes {
		log.Printf("[Scoring] graph too large for centrality (%d nodes); skipping", g.NodeCount())
	}

	// 6. Clamp, order patterns, assemble explanations.
	for account, s := range data {
		s.Score = math.Min(math.Round(s.Score*10)/10, 100.0)
		s.Patterns = sortedKeys(patternSets[account])
		s.Explanation = explain(account, s, enrich, velocity[account], centralityBonus[account], cfg)
	}

	log.Printf("[Scoring] %d accounts scored", len(data))
	return data
}

// explain concatenates a fixed template per contributing signal, in a stable
// order, so identical inputs always produce identical text.
func explain(account string, s *AccountScore, enrich Enrichment, velocity, centralityBonus float64, cfg config.Detection) string {
	var parts []string

	if n := len(s.RingIDs); n > 0 {
		ringPatterns := make([]string, 0, len(s.Patterns))
		for _, p := range s.Patterns {
			if priorityOf(p) < len(patternPriority) || strings.HasPrefix(p, "cycle_length_") {
				ringPatterns = append(ringPatterns, p)
			}
		}
		parts = append(parts, fmt.Sprintf("Member of %d fraud ring(s) [%s] via %s.",
			n, strings.Join(s.RingIDs, ", "), strings.Join(ringPatterns, ", ")))
	}
	if ev, ok := enrich.Anomalies[account]; ok {
		parts = append(parts, fmt.Sprintf("Transaction amount deviating %.1f standard deviations from account mean.", ev.MaxDeviation))
	}
	if ev, ok := enrich.Rapid[account]; ok {
		parts = append(parts, fmt.Sprintf("Rapid pass-through: fastest dwell %.1f minutes across %d transfer(s).", ev.MinDwellMinutes, ev.RapidCount))
	}
	if ev, ok := enrich.Structuring[account]; ok {
		parts = append(parts, fmt.Sprintf("Structuring: %d transfer(s) just below the %.0f reporting threshold.", ev.StructuredTxCount, cfg.StructuringThreshold))
	}
	if velocity > cfg.HighVelocityPerDay {
		parts = append(parts, fmt.Sprintf("High velocity: %.1f transactions/day.", velocity))
	}
	if centralityBonus > 0 {
		parts = append(parts, "Central routing position within the transaction network.")
	}
	return strings.Join(parts, " ")
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

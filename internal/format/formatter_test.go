package format

import (
	"testing"
	"time"

	"github.com/rawblock/forensics-engine/internal/detect"
	"github.com/rawblock/forensics-engine/internal/graph"
	"github.com/rawblock/forensics-engine/pkg/models"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func mkTx(id, from, to string, amount float64, offset time.Duration) models.Transaction {
	return models.Transaction{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Amount:     amount,
		Timestamp:  baseTime.Add(offset),
	}
}

func triangleGraph() *graph.Graph {
	return graph.Build([]models.Transaction{
		mkTx("T1", "A", "B", 500, 0),
		mkTx("T2", "B", "C", 500, time.Hour),
		mkTx("T3", "C", "A", 500, 2*time.Hour),
	})
}

func TestRiskScore_PerPattern(t *testing.T) {
	cases := []struct {
		pattern string
		members int
		want    float64
	}{
		{detect.PatternCycle3, 3, 95.0},
		{detect.PatternCycle4, 4, 88.5}, // 88 base + 0.5 for the extra member
		{detect.PatternFanIn, 3, 75.0},
		{detect.PatternShellChain, 3, 70.0},
		{detect.PatternRoundTrip, 2, 72.0},
	}
	for _, c := range cases {
		members := make([]string, c.members)
		for i := range members {
			members[i] = string(rune('A' + i))
		}
		got := riskScore(detect.Ring{Pattern: c.pattern, Members: members})
		if got != c.want {
			t.Errorf("%s with %d members: expected %g, got %g", c.pattern, c.members, c.want, got)
		}
	}
}

func TestRiskScore_CappedAtHundred(t *testing.T) {
	members := make([]string, 50)
	for i := range members {
		members[i] = string(rune('A' + i%26))
	}
	if got := riskScore(detect.Ring{Pattern: detect.PatternCycle3, Members: members}); got != 100.0 {
		t.Errorf("Expected cap at 100.0, got %g", got)
	}
}

func TestConfidence(t *testing.T) {
	three := []string{"A", "B", "C"}

	if got := confidence(detect.Ring{Pattern: detect.PatternCycle3, Members: three}); got != 0.95 {
		t.Errorf("cycle3 confidence: expected 0.95, got %g", got)
	}

	// Oversized rings lose certainty: 14 members = 4 past 10 = -0.04.
	big := make([]string, 14)
	for i := range big {
		big[i] = string(rune('A' + i))
	}
	if got := confidence(detect.Ring{Pattern: detect.PatternFanIn, Members: big}); got != 0.74 {
		t.Errorf("oversized fan confidence: expected 0.74, got %g", got)
	}

	// Multiple patterns confirming one ring raise confidence.
	merged := detect.Ring{
		Pattern:        detect.PatternCycle3,
		Members:        three,
		MergedPatterns: []string{detect.PatternCycle3, detect.PatternFanIn},
	}
	if got := confidence(merged); got != 1.0 {
		t.Errorf("merged confidence: expected 1.0 (0.95+0.08 capped), got %g", got)
	}

	// A measured round-trip similarity above the base lifts confidence.
	rt := detect.Ring{Pattern: detect.PatternRoundTrip, Members: []string{"A", "B"}, Similarity: 0.95}
	if got := confidence(rt); got != 0.95 {
		t.Errorf("round-trip confidence: expected 0.95, got %g", got)
	}
}

func TestBuild_AccountsSortedAndAssigned(t *testing.T) {
	g := triangleGraph()
	rings := []detect.Ring{{
		RingID:      "RING_001",
		Members:     []string{"A", "B", "C"},
		Pattern:     detect.PatternCycle3,
		CycleLength: 3,
	}}
	scores := map[string]*detect.AccountScore{
		"A": {Score: 45.0, Patterns: []string{detect.PatternCycle3}, RingIDs: []string{"RING_001"}},
		"B": {Score: 45.0, Patterns: []string{detect.PatternCycle3}, RingIDs: []string{"RING_001"}},
		"C": {Score: 80.0, Patterns: []string{detect.PatternCycle3, detect.FlagRapidMovement}, RingIDs: []string{"RING_001"}},
	}

	result := Build(Params{
		RunID:         "run-1",
		Rings:         rings,
		Scores:        scores,
		Graph:         g,
		Elapsed:       1500 * time.Millisecond,
		TotalAccounts: g.NodeCount(),
	})

	if len(result.SuspiciousAccounts) != 3 {
		t.Fatalf("Expected 3 suspicious accounts, got %d", len(result.SuspiciousAccounts))
	}
	// Highest score first, ties by account ID.
	if result.SuspiciousAccounts[0].AccountID != "C" {
		t.Errorf("Expected C first, got %s", result.SuspiciousAccounts[0].AccountID)
	}
	if result.SuspiciousAccounts[1].AccountID != "A" || result.SuspiciousAccounts[2].AccountID != "B" {
		t.Errorf("Tie-break by account ID failed: %v", result.SuspiciousAccounts)
	}
	if result.SuspiciousAccounts[0].RingID != "RING_001" {
		t.Errorf("Primary ring assignment missing: %+v", result.SuspiciousAccounts[0])
	}

	if len(result.FraudRings) != 1 {
		t.Fatalf("Expected 1 fraud ring, got %d", len(result.FraudRings))
	}
	ring := result.FraudRings[0]
	if ring.RiskScore != 95.0 || ring.Confidence != 0.95 {
		t.Errorf("Ring risk/confidence wrong: %+v", ring)
	}

	if result.Summary.ProcessingTimeSeconds != 1.5 {
		t.Errorf("Expected 1.5s processing time, got %g", result.Summary.ProcessingTimeSeconds)
	}
	if result.Summary.TotalAccountsAnalyzed != 3 || result.Summary.FraudRingsDetected != 1 {
		t.Errorf("Summary counters wrong: %+v", result.Summary)
	}
}

func TestBuild_GraphDecoration(t *testing.T) {
	g := triangleGraph()
	scores := map[string]*detect.AccountScore{
		"A": {Score: 45.0, Patterns: []string{detect.PatternCycle3}, RingIDs: []string{"RING_001"}},
	}

	result := Build(Params{RunID: "run-2", Scores: scores, Graph: g, TotalAccounts: 3})

	if len(result.Graph.Nodes) != 3 || len(result.Graph.Edges) != 3 {
		t.Fatalf("Graph payload wrong: %d nodes, %d edges", len(result.Graph.Nodes), len(result.Graph.Edges))
	}
	var a, b *models.GraphNode
	for i := range result.Graph.Nodes {
		switch result.Graph.Nodes[i].ID {
		case "A":
			a = &result.Graph.Nodes[i]
		case "B":
			b = &result.Graph.Nodes[i]
		}
	}
	if a == nil || !a.Suspicious || a.SuspicionScore == nil || *a.SuspicionScore != 45.0 {
		t.Errorf("Suspicious node not decorated: %+v", a)
	}
	if a.TemporalProfile == nil {
		t.Error("Suspicious nodes carry a temporal profile")
	}
	if b == nil || b.Suspicious || b.SuspicionScore != nil {
		t.Errorf("Clean node must stay undecorated: %+v", b)
	}
	if b.TemporalProfile != nil {
		t.Error("Clean nodes carry no temporal profile")
	}
	if a.CommunityID == nil || b.CommunityID == nil {
		t.Error("Every node gets a community ID")
	}

	// Small graphs keep per-edge transaction detail.
	if len(result.Graph.Edges[0].Transactions) == 0 {
		t.Error("Small graph edges should include transactions")
	}
	if result.Graph.Edges[0].FirstTx == "" {
		t.Error("Edge timestamps should be formatted")
	}
}

func TestBuild_ZeroScoreFiltered(t *testing.T) {
	g := triangleGraph()
	scores := map[string]*detect.AccountScore{
		"A": {Score: 0.0},
	}

	result := Build(Params{RunID: "run-3", Scores: scores, Graph: g, TotalAccounts: 3})
	if len(result.SuspiciousAccounts) != 0 {
		t.Errorf("Zero-score accounts must be filtered, got %v", result.SuspiciousAccounts)
	}
}

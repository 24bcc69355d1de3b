package detect

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/forensics-engine/internal/config"
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

func ringTxs(ids []string, amount float64, start time.Duration) []models.Transaction {
	var txs []models.Transaction
	for i, from := range ids {
		to := ids[(i+1)%len(ids)]
		txs = append(txs, mkTx(from+"->"+to, from, to, amount, start+time.Duration(i)*time.Hour))
	}
	return txs
}

func TestDetectCycles_Triangle(t *testing.T) {
	g := graph.Build(ringTxs([]string{"A", "B", "C"}, 500, 0))

	rings, truncated := DetectCycles(context.Background(), g, config.DefaultDetection())
	if truncated {
		t.Fatal("Tiny graph must not truncate")
	}
	if len(rings) != 1 {
		t.Fatalf("Expected exactly 1 cycle, got %d", len(rings))
	}
	r := rings[0]
	if r.Pattern != PatternCycle3 || r.CycleLength != 3 {
		t.Errorf("Wrong pattern: %s len=%d", r.Pattern, r.CycleLength)
	}
	want := []string{"A", "B", "C"}
	for i, m := range want {
		if r.Members[i] != m {
			t.Fatalf("Canonical member order wrong: %v", r.Members)
		}
	}
}

func TestDetectCycles_LengthBounds(t *testing.T) {
	// A 2-loop (below minimum), a 3-cycle (in range), and a 6-cycle
	// (above maximum) in one graph. Only the 3-cycle qualifies.
	txs := ringTxs([]string{"X", "Y"}, 100, 0)
	txs = append(txs, ringTxs([]string{"A", "B", "C"}, 100, 10*time.Hour)...)
	txs = append(txs, ringTxs([]string{"P1", "P2", "P3", "P4", "P5", "P6"}, 100, 20*time.Hour)...)
	g := graph.Build(txs)

	rings, _ := DetectCycles(context.Background(), g, config.DefaultDetection())
	if len(rings) != 1 {
		t.Fatalf("Expected only the 3-cycle, got %d rings", len(rings))
	}
	if rings[0].Pattern != PatternCycle3 {
		t.Errorf("Expected %s, got %s", PatternCycle3, rings[0].Pattern)
	}
}

func TestDetectCycles_FourAndFive(t *testing.T) {
	txs := ringTxs([]string{"A", "B", "C", "D"}, 100, 0)
	txs = append(txs, ringTxs([]string{"V", "W", "X", "Y", "Z"}, 100, 10*time.Hour)...)
	g := graph.Build(txs)

	rings, _ := DetectCycles(context.Background(), g, config.DefaultDetection())
	if len(rings) != 2 {
		t.Fatalf("Expected 2 cycles, got %d", len(rings))
	}
	patterns := map[string]bool{}
	for _, r := range rings {
		patterns[r.Pattern] = true
	}
	if !patterns[PatternCycle4] || !patterns[PatternCycle5] {
		t.Errorf("Expected cycle_length_4 and cycle_length_5, got %v", patterns)
	}
}

func TestDetectCycles_Cap(t *testing.T) {
	// Complete digraph on 6 nodes has far more than 5 short cycles.
	var txs []models.Transaction
	ids := []string{"A", "B", "C", "D", "E", "F"}
	n := 0
	for _, from := range ids {
		for _, to := range ids {
			if from == to {
				continue
			}
			n++
			txs = append(txs, mkTx(from+to, from, to, 100, time.Duration(n)*time.Minute))
		}
	}
	g := graph.Build(txs)

	cfg := config.DefaultDetection()
	cfg.MaxCycles = 5
	rings, truncated := DetectCycles(context.Background(), g, cfg)
	if !truncated {
		t.Error("Expected truncation at the cycle cap")
	}
	if len(rings) != 5 {
		t.Errorf("Expected exactly 5 rings at the cap, got %d", len(rings))
	}
}

func TestDetectCycles_ContextCancel(t *testing.T) {
	g := graph.Build(ringTxs([]string{"A", "B", "C"}, 100, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rings, truncated := DetectCycles(ctx, g, config.DefaultDetection())
	if !truncated {
		t.Error("Cancelled context should mark the run truncated")
	}
	if len(rings) != 0 {
		t.Errorf("No rings should be emitted after cancellation, got %d", len(rings))
	}
}

func TestCanonicalCycle(t *testing.T) {
	got := canonicalCycle([]string{"C", "A", "B"})
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected rotation to %v, got %v", want, got)
		}
	}
}

package detect

import (
	"testing"
	"time"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/graph"
	"github.com/rawblock/forensics-engine/pkg/models"
)

// chainTxs wires ids into a straight line with one transfer per hop.
func chainTxs(ids []string, start time.Duration) []models.Transaction {
	var txs []models.Transaction
	for i := 0; i+1 < len(ids); i++ {
		txs = append(txs, mkTx(ids[i]+">"+ids[i+1], ids[i], ids[i+1], 900, start+time.Duration(i)*time.Hour))
	}
	return txs
}

func TestDetectShellChains_BasicChain(t *testing.T) {
	// SRC -> s1 -> s2 -> s3 -> DST. SRC has no inbound and DST no outbound,
	// so both endpoints are non-shell; the intermediaries each carry 2
	// transactions and qualify as shells.
	g := graph.Build(chainTxs([]string{"SRC", "s1", "s2", "s3", "DST"}, 0))

	rings, truncated := DetectShellChains(g, config.DefaultDetection())
	if truncated {
		t.Fatal("Tiny graph must not truncate")
	}
	if len(rings) != 1 {
		t.Fatalf("Expected exactly 1 chain, got %d", len(rings))
	}
	r := rings[0]
	if r.Pattern != PatternShellChain || r.ChainLength != 4 {
		t.Errorf("Chain metadata wrong: %+v", r)
	}
	if r.ChainSource != "SRC" || r.ChainDestination != "DST" {
		t.Errorf("Endpoints wrong: %s -> %s", r.ChainSource, r.ChainDestination)
	}
	want := []string{"s1", "s2", "s3"}
	if len(r.Members) != 3 {
		t.Fatalf("Only intermediaries are members, got %v", r.Members)
	}
	for i, m := range want {
		if r.Members[i] != m {
			t.Fatalf("Members wrong: %v", r.Members)
		}
	}
}

func TestDetectShellChains_TooShort(t *testing.T) {
	// One intermediary = 2 hops, below the 3-hop minimum.
	g := graph.Build(chainTxs([]string{"SRC", "s1", "DST"}, 0))

	rings, _ := DetectShellChains(g, config.DefaultDetection())
	if len(rings) != 0 {
		t.Fatalf("2-hop chain must not qualify, got %d rings", len(rings))
	}
}

func TestDetectShellChains_BusyIntermediaryBreaksChain(t *testing.T) {
	// s2 carries extra traffic and stops being a shell, so no chain of
	// sufficient length survives.
	txs := chainTxs([]string{"SRC", "s1", "s2", "s3", "DST"}, 0)
	for i := 0; i < 4; i++ {
		txs = append(txs, mkTx(string(rune('a'+i)), "EXT", "s2", 50, time.Duration(10+i)*time.Hour))
	}
	g := graph.Build(txs)

	rings, _ := DetectShellChains(g, config.DefaultDetection())
	if len(rings) != 0 {
		t.Fatalf("Busy intermediary must break the chain, got %d rings", len(rings))
	}
}

func TestDetectShellChains_CycleMembersNotShells(t *testing.T) {
	// Low-activity accounts inside a cycle belong to the cycle detector;
	// the SCC filter must keep them out of the shell layer entirely.
	g := graph.Build(ringTxs([]string{"A", "B", "C", "D"}, 100, 0))

	rings, _ := DetectShellChains(g, config.DefaultDetection())
	if len(rings) != 0 {
		t.Fatalf("Cycle members must never form shell chains, got %d rings", len(rings))
	}
}

func TestDetectShellChains_ShellSourceSkipped(t *testing.T) {
	// W -> z0 -> z1 -> z2 -> z3 -> DST: z0 is itself a shell, so the only
	// valid chain starts at W, not z0.
	g := graph.Build(chainTxs([]string{"W", "z0", "z1", "z2", "z3", "DST"}, 0))

	rings, _ := DetectShellChains(g, config.DefaultDetection())
	if len(rings) != 1 {
		t.Fatalf("Expected 1 chain rooted at the non-shell source, got %d", len(rings))
	}
	if rings[0].ChainSource != "W" {
		t.Errorf("Chain must start at the non-shell source, got %s", rings[0].ChainSource)
	}
	if rings[0].ChainLength != 5 {
		t.Errorf("Expected 5 hops, got %d", rings[0].ChainLength)
	}
}

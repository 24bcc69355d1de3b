package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/detect"
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

// cycleScenario is a laundering triangle with uninvolved background
// traffic: A pays B, B pays C, C pays A, 500 each, hours apart.
func cycleScenario() []models.Transaction {
	txs := []models.Transaction{
		mkTx("T1", "ACC_A", "ACC_B", 500, 0),
		mkTx("T2", "ACC_B", "ACC_C", 500, 2*time.Hour),
		mkTx("T3", "ACC_C", "ACC_A", 500, 4*time.Hour),
	}
	for i := 0; i < 5; i++ {
		txs = append(txs, mkTx(fmt.Sprintf("N%d", i),
			fmt.Sprintf("CLEAN_%d", i), fmt.Sprintf("CLEAN_%d", i+10),
			float64(100+i*37), time.Duration(i*24)*time.Hour))
	}
	return txs
}

func TestAnalyze_CycleScenario(t *testing.T) {
	eng := New(config.DefaultDetection(), nil)

	result, err := eng.Analyze(context.Background(), cycleScenario(), nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.FraudRings) != 1 {
		t.Fatalf("Expected exactly 1 fraud ring, got %d", len(result.FraudRings))
	}
	ring := result.FraudRings[0]
	if ring.PatternType != detect.PatternCycle3 {
		t.Errorf("Expected %s, got %s", detect.PatternCycle3, ring.PatternType)
	}
	if ring.RingID != "RING_001" {
		t.Errorf("Expected RING_001, got %s", ring.RingID)
	}
	want := []string{"ACC_A", "ACC_B", "ACC_C"}
	if len(ring.MemberAccounts) != 3 {
		t.Fatalf("Expected 3 members, got %v", ring.MemberAccounts)
	}
	for i, m := range want {
		if ring.MemberAccounts[i] != m {
			t.Fatalf("Members wrong: %v", ring.MemberAccounts)
		}
	}
	if ring.RiskScore != 95.0 {
		t.Errorf("Expected ring risk 95.0, got %g", ring.RiskScore)
	}

	if len(result.SuspiciousAccounts) != 3 {
		t.Fatalf("Expected 3 suspicious accounts, got %d", len(result.SuspiciousAccounts))
	}
	for _, a := range result.SuspiciousAccounts {
		if a.SuspicionScore < 35.0 || a.SuspicionScore > 100.0 {
			t.Errorf("Score out of range for %s: %g", a.AccountID, a.SuspicionScore)
		}
		if a.RingID != "RING_001" {
			t.Errorf("Account %s not assigned to the ring", a.AccountID)
		}
	}

	if result.Summary.TotalAccountsAnalyzed != 13 {
		t.Errorf("Expected 13 accounts analyzed, got %d", result.Summary.TotalAccountsAnalyzed)
	}
	if result.Summary.FraudRingsDetected != 1 || result.Summary.SuspiciousAccountsFlagged != 3 {
		t.Errorf("Summary counters wrong: %+v", result.Summary)
	}
	if result.RunID == "" {
		t.Error("Expected a run ID")
	}
}

func TestAnalyze_ProgressLifecycle(t *testing.T) {
	eng := New(config.DefaultDetection(), nil)

	result, err := eng.Analyze(context.Background(), cycleScenario(), nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	p, ok := eng.Progress(result.RunID)
	if !ok {
		t.Fatal("Run should be registered")
	}
	if !p.Done || p.Stage != "complete" {
		t.Errorf("Expected completed run, got %+v", p)
	}
	if p.RingsFound != 1 || p.AccountsFlagged != 3 {
		t.Errorf("Progress counters wrong: %+v", p)
	}

	if _, ok := eng.Progress("no-such-run"); ok {
		t.Error("Unknown run IDs must not resolve")
	}
}

func TestAnalyze_Events(t *testing.T) {
	var events []Event
	eng := New(config.DefaultDetection(), func(ev Event) { events = append(events, ev) })

	if _, err := eng.Analyze(context.Background(), cycleScenario(), nil); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	types := make(map[string]int)
	for _, ev := range events {
		types[ev.Type]++
	}
	if types["run_started"] != 1 || types["run_completed"] != 1 {
		t.Errorf("Lifecycle events wrong: %v", types)
	}
	// A cycle ring carries risk 95, above the alert threshold.
	if types["ring_alert"] != 1 {
		t.Errorf("Expected 1 ring alert, got %d", types["ring_alert"])
	}
	for _, ev := range events {
		if ev.RunID == "" {
			t.Error("Every event carries the run ID")
		}
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	eng := New(config.DefaultDetection(), nil)
	if _, err := eng.Analyze(context.Background(), nil, nil); err == nil {
		t.Fatal("Expected error for empty transaction set")
	}
}

func TestAnalyze_ParseStatsPassThrough(t *testing.T) {
	eng := New(config.DefaultDetection(), nil)
	stats := &models.ParseStats{TotalRows: 10, ValidRows: 8, DroppedRows: 2}

	result, err := eng.Analyze(context.Background(), cycleScenario(), stats)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.ParseStats == nil || result.ParseStats.ValidRows != 8 {
		t.Errorf("Parse stats should ride along: %+v", result.ParseStats)
	}
}

func TestAnalyze_ConcurrentRunsIsolated(t *testing.T) {
	eng := New(config.DefaultDetection(), nil)

	done := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := eng.Analyze(context.Background(), cycleScenario(), nil)
			if err != nil {
				t.Errorf("Analyze failed: %v", err)
				done <- ""
				return
			}
			done <- result.RunID
		}()
	}
	id1, id2 := <-done, <-done
	if id1 == "" || id2 == "" {
		t.Fatal("Both runs must succeed")
	}
	if id1 == id2 {
		t.Error("Concurrent runs must get distinct run IDs")
	}
}

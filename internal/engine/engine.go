package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/detect"
	"github.com/rawblock/forensics-engine/internal/format"
	"github.com/rawblock/forensics-engine/internal/graph"
	"github.com/rawblock/forensics-engine/pkg/models"
)

// Event is a lifecycle notification pushed to subscribers (WebSocket hub).
type Event struct {
	Type  string      `json:"type"` // run_started | run_completed | run_failed | ring_alert
	RunID string      `json:"run_id"`
	Data  interface{} `json:"data,omitempty"`
}

// RingAlert is broadcast for every high-risk ring found in a run.
type RingAlert struct {
	RingID      string   `json:"ring_id"`
	PatternType string   `json:"pattern_type"`
	RiskScore   float64  `json:"risk_score"`
	Members     []string `json:"members"`
}

// Threshold above which a detected ring is broadcast as an alert.
const alertRiskThreshold = 90.0

// Progress is a snapshot of one run's state for the API.
type Progress struct {
	RunID           string  `json:"run_id"`
	Stage           string  `json:"stage"`
	Done            bool    `json:"done"`
	Error           string  `json:"error,omitempty"`
	RingsFound      int     `json:"rings_found"`
	AccountsFlagged int     `json:"accounts_flagged"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	CycleTruncated  bool    `json:"cycle_truncated"`
	ShellTruncated  bool    `json:"shell_truncated"`
}

type run struct {
	mu       sync.Mutex
	progress Progress
	started  time.Time
}

func (r *run) update(fn func(*Progress)) {
	r.mu.Lock()
	fn(&r.progress)
	r.progress.ElapsedSeconds = time.Since(r.started).Seconds()
	r.mu.Unlock()
}

func (r *run) snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.progress
	if !p.Done {
		p.ElapsedSeconds = time.Since(r.started).Seconds()
	}
	return p
}

// Engine runs independent, stateless analysis passes over transaction sets.
// Each run gets its own accumulators; the only shared state is the run
// progress registry.
type Engine struct {
	cfg    config.Detection
	notify func(Event)

	mu   sync.RWMutex
	runs map[string]*run
}

// New builds an engine. notify may be nil; when set it receives lifecycle
// events and high-risk ring alerts.
func New(cfg config.Detection, notify func(Event)) *Engine {
	return &Engine{cfg: cfg, notify: notify, runs: make(map[string]*run)}
}

// Config returns the engine's immutable detection configuration.
func (e *Engine) Config() config.Detection { return e.cfg }

// Progress returns the state of a run, if known.
func (e *Engine) Progress(runID string) (Progress, bool) {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return Progress{}, false
	}
	return r.snapshot(), true
}

func (e *Engine) emit(ev Event) {
	if e.notify != nil {
		e.notify(ev)
	}
}

// Analyze executes the full pipeline over validated transactions:
//
//	graph build
//	→ cycle/fan/shell/round-trip detectors (concurrent)
//	→ ring merge (barrier: needs the complete candidate set)
//	→ anomaly/rapid/structuring enrichment (concurrent)
//	→ scoring (barrier: needs canonical rings and all flags)
//	→ formatting
//
// The graph is read-only for every detector; each detector fills only its
// own accumulator, so the concurrency needs no locks.
func (e *Engine) Analyze(ctx context.Context, txs []models.Transaction, parseStats *models.ParseStats) (*models.AnalysisResult, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("engine: no transactions to analyze")
	}

	runID := uuid.NewString()
	r := &run{started: time.Now()}
	r.progress = Progress{RunID: runID, Stage: "building_graph"}
	e.mu.Lock()
	e.runs[runID] = r
	e.mu.Unlock()

	e.emit(Event{Type: "run_started", RunID: runID, Data: map[string]int{"transactions": len(txs)}})
	started := time.Now()

	g := graph.Build(txs)

	// Stage 1: the four ring-producing detectors, mutually independent.
	var (
		cycleRings, fanRings, shellRings, roundTripRings []detect.Ring
		cycleTruncated, shellTruncated                   bool
	)
	r.update(func(p *Progress) { p.Stage = "ring_detection" })

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		cycleRings, cycleTruncated = detect.DetectCycles(grpCtx, g, e.cfg)
		return nil
	})
	grp.Go(func() error {
		fanRings = detect.DetectFans(g, e.cfg)
		return nil
	})
	grp.Go(func() error {
		shellRings, shellTruncated = detect.DetectShellChains(g, e.cfg)
		return nil
	})
	grp.Go(func() error {
		roundTripRings = detect.DetectRoundTrips(g, e.cfg)
		return nil
	})
	if err := grp.Wait(); err != nil {
		return nil, e.fail(r, runID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(r, runID, err)
	}

	// Barrier: the merge priority depends on having every candidate, in
	// fixed detector order.
	r.update(func(p *Progress) { p.Stage = "ring_merge" })
	candidates := make([]detect.Ring, 0, len(cycleRings)+len(fanRings)+len(shellRings)+len(roundTripRings))
	candidates = append(candidates, cycleRings...)
	candidates = append(candidates, fanRings...)
	candidates = append(candidates, shellRings...)
	candidates = append(candidates, roundTripRings...)
	rings := detect.MergeRings(candidates, e.cfg)

	r.update(func(p *Progress) {
		p.Stage = "enrichment"
		p.RingsFound = len(rings)
		p.CycleTruncated = cycleTruncated
		p.ShellTruncated = shellTruncated
	})

	// Stage 2: the enrichment scans, independent of each other and of rings.
	var enrich detect.Enrichment
	grp2, _ := errgroup.WithContext(ctx)
	grp2.Go(func() error {
		enrich.Anomalies = detect.DetectAmountAnomalies(txs, e.cfg)
		return nil
	})
	grp2.Go(func() error {
		enrich.Rapid = detect.DetectRapidMovement(txs, e.cfg)
		return nil
	})
	grp2.Go(func() error {
		enrich.Structuring = detect.DetectStructuring(txs, e.cfg)
		return nil
	})
	if err := grp2.Wait(); err != nil {
		return nil, e.fail(r, runID, err)
	}

	// Second barrier: scoring needs the canonical rings and all flags.
	r.update(func(p *Progress) { p.Stage = "scoring" })
	scores := detect.ScoreAccounts(rings, enrich, g, e.cfg)

	r.update(func(p *Progress) { p.Stage = "formatting" })
	result := format.Build(format.Params{
		RunID:          runID,
		Rings:          rings,
		Scores:         scores,
		Graph:          g,
		Elapsed:        time.Since(started),
		TotalAccounts:  g.NodeCount(),
		CycleTruncated: cycleTruncated,
		ShellTruncated: shellTruncated,
		ParseStats:     parseStats,
	})

	r.update(func(p *Progress) {
		p.Stage = "complete"
		p.Done = true
		p.AccountsFlagged = len(result.SuspiciousAccounts)
	})

	for _, ring := range result.FraudRings {
		if ring.RiskScore >= alertRiskThreshold {
			e.emit(Event{Type: "ring_alert", RunID: runID, Data: RingAlert{
				RingID:      ring.RingID,
				PatternType: ring.PatternType,
				RiskScore:   ring.RiskScore,
				Members:     ring.MemberAccounts,
			}})
		}
	}
	e.emit(Event{Type: "run_completed", RunID: runID, Data: result.Summary})

	log.Printf("[Engine] run %s complete in %.2fs: %d rings, %d flagged accounts",
		runID, time.Since(started).Seconds(), len(rings), len(result.SuspiciousAccounts))
	return result, nil
}

func (e *Engine) fail(r *run, runID string, err error) error {
	r.update(func(p *Progress) {
		p.Stage = "failed"
		p.Done = true
		p.Error = err.Error()
	})
	e.emit(Event{Type: "run_failed", RunID: runID, Data: err.Error()})
	return fmt.Errorf("engine: run %s failed: %w", runID, err)
}

package format

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/rawblock/forensics-engine/internal/detect"
	"github.com/rawblock/forensics-engine/internal/graph"
	"github.com/rawblock/forensics-engine/pkg/models"
)

// Above this many nodes the per-edge transaction lists are stripped from the
// graph payload to keep the response manageable.
const graphPayloadNodeCap = 2000

// Fixed per-pattern base risk for reported fraud rings.
var ringRisk = map[string]float64{
	detect.PatternCycle3:     95.0,
	detect.PatternCycle4:     88.0,
	detect.PatternCycle5:     80.0,
	detect.PatternFanIn:      75.0,
	detect.PatternFanOut:     75.0,
	detect.PatternRoundTrip:  72.0,
	detect.PatternShellChain: 70.0,
}

// Base confidence per pattern: cycles are mathematically certain, shells the
// loosest heuristic.
var ringConfidence = map[string]float64{
	detect.PatternCycle3:     0.95,
	detect.PatternCycle4:     0.90,
	detect.PatternCycle5:     0.82,
	detect.PatternFanIn:      0.78,
	detect.PatternFanOut:     0.78,
	detect.PatternRoundTrip:  0.80,
	detect.PatternShellChain: 0.65,
}

// Params carries everything the formatter assembles into a response.
type Params struct {
	RunID          string
	Rings          []detect.Ring
	Scores         map[string]*detect.AccountScore
	Graph          *graph.Graph
	Elapsed        time.Duration
	TotalAccounts  int
	CycleTruncated bool
	ShellTruncated bool
	ParseStats     *models.ParseStats
}

// Build assembles the complete analysis response: rings sorted by risk,
// accounts sorted by suspicion, decorated graph payload, and run summary.
func Build(p Params) *models.AnalysisResult {
	fraudRings := buildRings(p.Rings)
	accounts := buildAccounts(p.Scores)

	suspicious := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		suspicious[a.AccountID] = true
	}
	graphData := buildGraph(p.Graph, suspicious, p.Scores)

	result := &models.AnalysisResult{
		RunID:              p.RunID,
		SuspiciousAccounts: accounts,
		FraudRings:         fraudRings,
		Summary: models.AnalysisSummary{
			TotalAccountsAnalyzed:     p.TotalAccounts,
			SuspiciousAccountsFlagged: len(accounts),
			FraudRingsDetected:        len(fraudRings),
			ProcessingTimeSeconds:     math.Round(p.Elapsed.Seconds()*1000) / 1000,
			CycleDetectionTruncated:   p.CycleTruncated,
			ShellDetectionTruncated:   p.ShellTruncated,
			NetworkStatistics:         p.Graph.NetworkStatistics(),
		},
		Graph:      graphData,
		ParseStats: p.ParseStats,
	}

	log.Printf("[Formatter] %d suspicious accounts, %d fraud rings", len(accounts), len(fraudRings))
	return result
}

func buildRings(rings []detect.Ring) []models.FraudRing {
	out := make([]models.FraudRing, 0, len(rings))
	for _, r := range rings {
		out = append(out, models.FraudRing{
			RingID:         r.RingID,
			MemberAccounts: r.Members,
			PatternType:    r.Pattern,
			MergedPatterns: r.MergedPatterns,
			RiskScore:      riskScore(r),
			Confidence:     confidence(r),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].RingID < out[j].RingID
	})
	return out
}

// riskScore is the fixed per-pattern constant, nudged up for larger rings.
func riskScore(r detect.Ring) float64 {
	base, ok := ringRisk[r.Pattern]
	if !ok {
		base = 65.0
	}
	extra := float64(len(r.Members) - 3)
	if extra < 0 {
		extra = 0
	}
	return math.Min(math.Round((base+extra*0.5)*10)/10, 100.0)
}

func confidence(r detect.Ring) float64 {
	conf, ok := ringConfidence[r.Pattern]
	if !ok {
		conf = 0.60
	}
	// Very large rings are slightly less certain.
	if n := len(r.Members); n > 10 {
		conf -= math.Min(float64(n-10)*0.01, 0.15)
	}
	// Multiple independent detections confirming the same ring.
	if len(r.MergedPatterns) > 1 {
		conf = math.Min(conf+0.08, 1.0)
	}
	// Round-trips carry a measured amount similarity.
	if r.Pattern == detect.PatternRoundTrip && r.Similarity > conf {
		conf = r.Similarity
	}
	return math.Round(math.Min(math.Max(conf, 0), 1)*1000) / 1000
}

func buildAccounts(scores map[string]*detect.AccountScore) []models.SuspiciousAccount {
	out := make([]models.SuspiciousAccount, 0, len(scores))
	for account, s := range scores {
		if s.Score <= 0 {
			continue
		}
		primary := "UNASSIGNED"
		if len(s.RingIDs) > 0 {
			primary = s.RingIDs[0]
		}
		out = append(out, models.SuspiciousAccount{
			AccountID:        account,
			SuspicionScore:   s.Score,
			DetectedPatterns: s.Patterns,
			RingID:           primary,
			RingIDs:          s.RingIDs,
			RiskExplanation:  s.Explanation,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SuspicionScore != out[j].SuspicionScore {
			return out[i].SuspicionScore > out[j].SuspicionScore
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

func buildGraph(g *graph.Graph, suspicious map[string]bool, scores map[string]*detect.AccountScore) models.GraphData {
	largeGraph := g.NodeCount() > graphPayloadNodeCap
	communities := g.Communities()

	nodes := make([]models.GraphNode, 0, g.NodeCount())
	for _, id := range g.NodeIDs() {
		n := g.Node(id)
		cid := communities[id]
		gn := models.GraphNode{
			ID:            id,
			Label:         id,
			Suspicious:    suspicious[id],
			TxCount:       n.TxCount,
			TotalSent:     round2(n.TotalSent),
			TotalReceived: round2(n.TotalReceived),
			NetFlow:       round2(n.NetFlow),
			SentCount:     n.SentCount,
			ReceivedCount: n.ReceivedCount,
			FirstTx:       formatTime(n.FirstTx),
			LastTx:        formatTime(n.LastTx),
			CommunityID:   &cid,
		}
		if suspicious[id] {
			s := scores[id]
			score := s.Score
			gn.SuspicionScore = &score
			gn.DetectedPatterns = s.Patterns
			gn.RingIDs = s.RingIDs
			if len(s.RingIDs) > 0 {
				gn.RingID = s.RingIDs[0]
			}
			gn.RiskExplanation = s.Explanation
			gn.TemporalProfile = g.TemporalProfile(id)
		}
		nodes = append(nodes, gn)
	}

	edges := make([]models.GraphEdge, 0, g.EdgeCount())
	g.Edges(func(e *graph.Edge) {
		ge := models.GraphEdge{
			Source:      e.From,
			Target:      e.To,
			TotalAmount: round2(e.TotalAmount),
			AvgAmount:   round2(e.AvgAmount),
			TxCount:     e.TxCount,
			FirstTx:     formatTime(e.FirstTx),
			LastTx:      formatTime(e.LastTx),
		}
		if !largeGraph {
			ge.Transactions = make([]models.EdgeTransaction, 0, len(e.Transactions))
			for _, tx := range e.Transactions {
				ge.Transactions = append(ge.Transactions, models.EdgeTransaction{
					TransactionID: tx.ID,
					Amount:        round2(tx.Amount),
					Timestamp:     formatTime(tx.Timestamp),
				})
			}
		}
		edges = append(edges, ge)
	})

	return models.GraphData{Nodes: nodes, Edges: edges}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

package detect

import (
	"log"
	"math"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/pkg/models"
)

// StructuringEvidence records the sub-threshold transfers attributed to an
// account: how many landed in the band and their amounts.
type StructuringEvidence struct {
	StructuredTxCount int
	AvgAmount         float64
	TotalStructured   float64
}

// DetectStructuring flags accounts that repeatedly send amounts just below
// the reporting threshold. The suspicious band is
// [threshold*(1-margin), threshold); structuring is about how money is SENT,
// so only outgoing transfers are counted.
func DetectStructuring(txs []models.Transaction, cfg config.Detection) map[string]StructuringEvidence {
	lower := cfg.StructuringThreshold * (1.0 - cfg.StructuringMargin)

	counts := make(map[string]int)
	totals := make(map[string]float64)
	for _, tx := range txs {
		if tx.Amount >= lower && tx.Amount < cfg.StructuringThreshold {
			counts[tx.SenderID]++
			totals[tx.SenderID] += tx.Amount
		}
	}

	flagged := make(map[string]StructuringEvidence)
	for account, n := range counts {
		if n >= cfg.StructuringMinTx {
			flagged[account] = StructuringEvidence{
				StructuredTxCount: n,
				AvgAmount:         math.Round(totals[account]/float64(n)*100) / 100,
				TotalStructured:   math.Round(totals[account]*100) / 100,
			}
		}
	}

	log.Printf("[StructuringDetector] %d accounts flagged", len(flagged))
	return flagged
}

package detect

import (
	"log"
	"math"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/pkg/models"
)

// AnomalyEvidence records how far the worst outlier sits from the account's
// own mean, in standard deviations.
type AnomalyEvidence struct {
	MaxDeviation float64
}

// DetectAmountAnomalies flags accounts with at least one transaction more
// than AnomalyStdDev standard deviations from that account's mean amount.
// Sent and received sides are evaluated independently; accounts with fewer
// than AnomalyMinTx transactions on a side are skipped on that side.
func DetectAmountAnomalies(txs []models.Transaction, cfg config.Detection) map[string]AnomalyEvidence {
	sent := make(map[string][]float64)
	received := make(map[string][]float64)
	for _, tx := range txs {
		sent[tx.SenderID] = append(sent[tx.SenderID], tx.Amount)
		received[tx.ReceiverID] = append(received[tx.ReceiverID], tx.Amount)
	}

	flagged := make(map[string]AnomalyEvidence)
	check := func(account string, amounts []float64) {
		if len(amounts) < cfg.AnomalyMinTx {
			return
		}
		m := mean(amounts)
		sd := stddev(amounts, m)
		if sd == 0 {
			return
		}
		worst := 0.0
		for _, a := range amounts {
			if z := math.Abs(a-m) / sd; z > worst {
				worst = z
			}
		}
		if worst > cfg.AnomalyStdDev {
			if prev, ok := flagged[account]; !ok || worst > prev.MaxDeviation {
				flagged[account] = AnomalyEvidence{MaxDeviation: math.Round(worst*10) / 10}
			}
		}
	}
	for account, amounts := range sent {
		check(account, amounts)
	}
	for account, amounts := range received {
		check(account, amounts)
	}

	log.Printf("[AnomalyDetector] %d accounts flagged", len(flagged))
	return flagged
}

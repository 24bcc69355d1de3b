package detect

import (
	"log"
	"sort"
	"time"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/pkg/models"
)

// RapidEvidence records an account's pass-through behavior: the shortest
// observed receive→forward gap and how many pairs fell inside the window.
type RapidEvidence struct {
	MinDwellMinutes float64
	RapidCount      int
}

// DetectRapidMovement flags accounts that forward funds shortly after
// receiving them. For every incoming transaction the earliest-after outgoing
// transaction is located with a two-pointer scan (O(n) after sort); every
// outgoing transfer within the dwell window counts as a rapid pass-through.
func DetectRapidMovement(txs []models.Transaction, cfg config.Detection) map[string]RapidEvidence {
	incoming := make(map[string][]time.Time)
	outgoing := make(map[string][]time.Time)
	for _, tx := range txs {
		outgoing[tx.SenderID] = append(outgoing[tx.SenderID], tx.Timestamp)
		incoming[tx.ReceiverID] = append(incoming[tx.ReceiverID], tx.Timestamp)
	}

	flagged := make(map[string]RapidEvidence)
	window := time.Duration(cfg.RapidDwellMinutes * float64(time.Minute))

	for account, inTimes := range incoming {
		outTimes, ok := outgoing[account]
		if !ok {
			continue
		}
		sort.Slice(inTimes, func(i, j int) bool { return inTimes[i].Before(inTimes[j]) })
		sort.Slice(outTimes, func(i, j int) bool { return outTimes[i].Before(outTimes[j]) })

		minDwell := time.Duration(-1)
		rapidCount := 0
		j := 0
		for _, in := range inTimes {
			for j < len(outTimes) && outTimes[j].Before(in) {
				j++
			}
			for k := j; k < len(outTimes); k++ {
				dwell := outTimes[k].Sub(in)
				if dwell > window {
					break
				}
				rapidCount++
				if minDwell < 0 || dwell < minDwell {
					minDwell = dwell
				}
			}
		}

		if rapidCount > 0 {
			minutes := minDwell.Minutes()
			flagged[account] = RapidEvidence{
				MinDwellMinutes: float64(int(minutes*10+0.5)) / 10,
				RapidCount:      rapidCount,
			}
		}
	}

	log.Printf("[RapidMovementDetector] %d accounts flagged", len(flagged))
	return flagged
}

package detect

import (
	"log"
	"sort"
	"time"

	"github.com/rawblock/forensics-engine/internal/config"
	"github.com/rawblock/forensics-engine/internal/graph"
)

// Fan detection — burst aggregation (fan-in) and dispersal (fan-out).
//
// A hub triggers when a sliding time window over its counterparty stream
// contains at least FanThreshold distinct counterparties. Two semantic
// false-positive filters run BEFORE the window scan, so excluded accounts
// never surface as candidate hubs:
//
//   fan-in:  hubs whose inbound amounts have a coefficient of variation
//            above MerchantCVThreshold look like merchants (customers pay
//            varying prices) and are skipped;
//   fan-out: hubs whose outgoing transfers all land within BatchSpanMax look
//            like a single batch disbursement (payroll) and are skipped.

type fanTx struct {
	ts           time.Time
	counterparty string
	amount       float64
}

// DetectFans scans every account as a potential fan-in and fan-out hub.
func DetectFans(g *graph.Graph, cfg config.Detection) []Ring {
	var rings []Ring

	for _, hub := range g.NodeIDs() {
		// Fan-in: many senders → one receiver.
		inbound := collectFanTxs(g, hub, true)
		if len(inbound) >= cfg.FanThreshold && !isMerchant(inbound, cfg.MerchantCVThreshold) {
			if members, ok := windowTrigger(inbound, hub, cfg.FanWindow, cfg.FanThreshold); ok {
				sort.Strings(members)
				rings = append(rings, Ring{
					Members: append(members, hub),
					Pattern: PatternFanIn,
					Hub:     hub,
					HubType: "aggregator",
				})
			}
		}

		// Fan-out: one sender → many receivers.
		outbound := collectFanTxs(g, hub, false)
		if len(outbound) >= cfg.FanThreshold && !isBatchDisbursement(outbound, cfg.BatchSpanMax) {
			if members, ok := windowTrigger(outbound, hub, cfg.FanWindow, cfg.FanThreshold); ok {
				sort.Strings(members)
				rings = append(rings, Ring{
					Members: append([]string{hub}, members...),
					Pattern: PatternFanOut,
					Hub:     hub,
					HubType: "disperser",
				})
			}
		}
	}

	log.Printf("[FanDetector] %d rings found (fan-in + fan-out)", len(rings))
	return rings
}

// collectFanTxs flattens the hub's incident edge transactions into one
// time-ordered stream with the counterparty attached.
func collectFanTxs(g *graph.Graph, hub string, inbound bool) []fanTx {
	var txs []fanTx
	if inbound {
		for _, sender := range g.Predecessors(hub) {
			for _, t := range g.Edge(sender, hub).Transactions {
				txs = append(txs, fanTx{ts: t.Timestamp, counterparty: sender, amount: t.Amount})
			}
		}
	} else {
		for _, receiver := range g.Successors(hub) {
			for _, t := range g.Edge(hub, receiver).Transactions {
				txs = append(txs, fanTx{ts: t.Timestamp, counterparty: receiver, amount: t.Amount})
			}
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].ts.Equal(txs[j].ts) {
			return txs[i].ts.Before(txs[j].ts)
		}
		return txs[i].counterparty < txs[j].counterparty
	})
	return txs
}

// isMerchant reports whether inbound amounts vary like retail payments.
func isMerchant(txs []fanTx, cvThreshold float64) bool {
	amounts := make([]float64, len(txs))
	for i, t := range txs {
		amounts[i] = t.amount
	}
	m := mean(amounts)
	if m == 0 {
		return false
	}
	return stddev(amounts, m)/m > cvThreshold
}

// isBatchDisbursement reports whether every outgoing transfer happened
// within one short burst, the signature of payroll-style batch payouts.
func isBatchDisbursement(txs []fanTx, maxSpan time.Duration) bool {
	if len(txs) < 2 {
		return false
	}
	return txs[len(txs)-1].ts.Sub(txs[0].ts) <= maxSpan
}

// windowTrigger slides a two-pointer window over the time-ordered stream and
// returns the counterparty set of the first window that reaches threshold
// distinct counterparties. O(n) after the sort.
func windowTrigger(txs []fanTx, hub string, window time.Duration, threshold int) ([]string, bool) {
	if len(txs) < threshold {
		return nil, false
	}
	counts := make(map[string]int)
	left := 0
	for right := 0; right < len(txs); right++ {
		if cp := txs[right].counterparty; cp != hub {
			counts[cp]++
		}
		for txs[right].ts.Sub(txs[left].ts) > window {
			if cp := txs[left].counterparty; cp != hub {
				counts[cp]--
				if counts[cp] == 0 {
					delete(counts, cp)
				}
			}
			left++
		}
		if len(counts) >= threshold {
			members := make([]string, 0, len(counts))
			for cp := range counts {
				members = append(members, cp)
			}
			return members, true
		}
	}
	return nil, false
}

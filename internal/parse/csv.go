package parse

import (
	"encoding/csv"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/forensics-engine/pkg/models"
)

// Required CSV columns after header normalization.
var requiredColumns = []string{"transaction_id", "sender_id", "receiver_id", "amount", "timestamp"}

// Timestamp layouts tried in order. The first layout that parses ≥90% of a
// sample would be ideal, but per-row fallback keeps mixed files usable.
var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
}

// CSV validates raw CSV bytes into transactions plus ingestion stats.
//
// Fatal errors (missing columns, no valid rows) return err; everything else
// degrades row-by-row and is reported through stats.Warnings.
func CSV(raw []byte, maxRows int) ([]models.Transaction, models.ParseStats, error) {
	stats := models.ParseStats{}

	// Strip comment lines and blank lines before CSV decoding. Sample files
	// use '#' to annotate sections; without this they surface as empty-field
	// rows and inflate the dropped counter.
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return nil, stats, fmt.Errorf("CSV file is empty - no rows found")
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(kept, "\n")))
	reader.FieldsPerRecord = -1 // validate per row, not via the csv package
	records, err := reader.ReadAll()
	if err != nil {
		return nil, stats, fmt.Errorf("CSV parse error: %w", err)
	}
	if len(records) == 0 {
		return nil, stats, fmt.Errorf("CSV file is empty - no rows found")
	}

	// Normalize header names: trim, lowercase, spaces to underscores.
	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		colIdx[key] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		found := make([]string, 0, len(colIdx))
		for k := range colIdx {
			found = append(found, k)
		}
		sort.Strings(found)
		return nil, stats, fmt.Errorf("missing required columns: %v (found: %v)", missing, found)
	}

	rows := records[1:]
	stats.TotalRows = len(rows)
	log.Printf("[Parser] CSV loaded: %d raw rows", len(rows))

	var (
		txs         []models.Transaction
		emptyFields int
		badAmounts  int
		badTS       int
		seenIDs     = make(map[string]struct{}, len(rows))
		truncated   = false
	)

	for _, row := range rows {
		field := func(col string) string {
			i := colIdx[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		id := field("transaction_id")
		sender := field("sender_id")
		receiver := field("receiver_id")
		amountStr := field("amount")
		tsStr := field("timestamp")

		if id == "" || sender == "" || receiver == "" || amountStr == "" || tsStr == "" {
			emptyFields++
			continue
		}

		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			badAmounts++
			continue
		}
		if amount <= 0 {
			stats.NegativeAmounts++
			continue
		}

		ts, ok := parseTimestamp(tsStr)
		if !ok {
			badTS++
			continue
		}

		if sender == receiver {
			stats.SelfTransactions++
			continue
		}

		if _, dup := seenIDs[id]; dup {
			stats.DuplicateTxIDs++
			continue
		}
		seenIDs[id] = struct{}{}

		if len(txs) >= maxRows {
			truncated = true
			break
		}
		txs = append(txs, models.Transaction{
			ID:         id,
			SenderID:   sender,
			ReceiverID: receiver,
			Amount:     amount,
			Timestamp:  ts,
		})
	}

	if emptyFields > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dropped %d rows with empty fields.", emptyFields))
	}
	if badAmounts > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dropped %d rows with non-numeric amount.", badAmounts))
	}
	if stats.NegativeAmounts > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dropped %d rows with non-positive amount.", stats.NegativeAmounts))
	}
	if badTS > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dropped %d rows with unparseable timestamp.", badTS))
	}
	if stats.SelfTransactions > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dropped %d self-transactions.", stats.SelfTransactions))
	}
	if stats.DuplicateTxIDs > 0 {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dropped %d duplicate transaction_id rows.", stats.DuplicateTxIDs))
	}
	if truncated {
		stats.Warnings = append(stats.Warnings, fmt.Sprintf("Dataset truncated to %d rows.", maxRows))
	}

	if len(txs) == 0 {
		reason := strings.Join(stats.Warnings, "; ")
		if reason == "" {
			reason = "unknown"
		}
		return nil, stats, fmt.Errorf("no valid rows remain after validation. Issues: %s", reason)
	}

	stats.ValidRows = len(txs)
	stats.DroppedRows = stats.TotalRows - stats.ValidRows
	log.Printf("[Parser] Parse complete: %d valid / %d total rows", stats.ValidRows, stats.TotalRows)
	return txs, stats, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range tsLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

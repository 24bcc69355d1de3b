package models

import "time"

// Transaction is a single validated account-to-account transfer record.
// Once the parser has run, Amount is always positive and sender != receiver.
type Transaction struct {
	ID         string    `json:"transaction_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// ParseStats reports what ingestion kept and dropped, so callers can tell
// whether a thin result reflects a clean dataset or a dirty file.
type ParseStats struct {
	TotalRows        int      `json:"total_rows"`
	ValidRows        int      `json:"valid_rows"`
	DroppedRows      int      `json:"dropped_rows"`
	DuplicateTxIDs   int      `json:"duplicate_tx_ids"`
	SelfTransactions int      `json:"self_transactions"`
	NegativeAmounts  int      `json:"negative_amounts"`
	Warnings         []string `json:"warnings,omitempty"`
}

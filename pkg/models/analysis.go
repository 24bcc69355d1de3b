package models

// SuspiciousAccount is one flagged account in the analysis output.
// RingID is the account's primary (first-assigned) ring; RingIDs lists all
// canonical rings the account belongs to.
type SuspiciousAccount struct {
	AccountID        string   `json:"account_id"`
	SuspicionScore   float64  `json:"suspicion_score"`
	DetectedPatterns []string `json:"detected_patterns"`
	RingID           string   `json:"ring_id"`
	RingIDs          []string `json:"ring_ids"`
	RiskExplanation  string   `json:"risk_explanation"`
}

// FraudRing is one canonical (post-merge) ring in the analysis output.
type FraudRing struct {
	RingID         string   `json:"ring_id"`
	MemberAccounts []string `json:"member_accounts"`
	PatternType    string   `json:"pattern_type"`
	MergedPatterns []string `json:"merged_patterns,omitempty"`
	RiskScore      float64  `json:"risk_score"`
	Confidence     float64  `json:"confidence"`
}

// NetworkStatistics summarizes graph-level structure for the report.
// AvgClustering is nil when the graph was too large to compute it.
type NetworkStatistics struct {
	TotalNodes          int      `json:"total_nodes"`
	TotalEdges          int      `json:"total_edges"`
	GraphDensity        float64  `json:"graph_density"`
	AvgDegree           float64  `json:"avg_degree"`
	ConnectedComponents int      `json:"connected_components"`
	AvgClustering       *float64 `json:"avg_clustering"`
}

// AnalysisSummary carries run-level counters and timing.
type AnalysisSummary struct {
	TotalAccountsAnalyzed      int               `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged  int               `json:"suspicious_accounts_flagged"`
	FraudRingsDetected         int               `json:"fraud_rings_detected"`
	ProcessingTimeSeconds      float64           `json:"processing_time_seconds"`
	CycleDetectionTruncated    bool              `json:"cycle_detection_truncated,omitempty"`
	ShellDetectionTruncated    bool              `json:"shell_detection_truncated,omitempty"`
	NetworkStatistics          NetworkStatistics `json:"network_statistics"`
}

// TemporalProfile is an hour-of-day activity histogram for one account.
type TemporalProfile struct {
	HourlyDistribution [24]int `json:"hourly_distribution"`
	PeakHour           int     `json:"peak_hour"`
	ActiveHours        int     `json:"active_hours"`
}

// GraphNode is a node in the visualization payload. Suspicion fields are
// populated only for flagged accounts.
type GraphNode struct {
	ID               string           `json:"id"`
	Label            string           `json:"label"`
	Suspicious       bool             `json:"suspicious"`
	TxCount          int              `json:"tx_count"`
	TotalSent        float64          `json:"total_sent"`
	TotalReceived    float64          `json:"total_received"`
	NetFlow          float64          `json:"net_flow"`
	SentCount        int              `json:"sent_count"`
	ReceivedCount    int              `json:"received_count"`
	FirstTx          string           `json:"first_tx"`
	LastTx           string           `json:"last_tx"`
	CommunityID      *int             `json:"community_id"`
	SuspicionScore   *float64         `json:"suspicion_score,omitempty"`
	DetectedPatterns []string         `json:"detected_patterns,omitempty"`
	RingID           string           `json:"ring_id,omitempty"`
	RingIDs          []string         `json:"ring_ids,omitempty"`
	RiskExplanation  string           `json:"risk_explanation,omitempty"`
	TemporalProfile  *TemporalProfile `json:"temporal_profile,omitempty"`
}

// EdgeTransaction is one transfer inside a graph edge payload.
type EdgeTransaction struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Timestamp     string  `json:"timestamp"`
}

// GraphEdge is a directed edge in the visualization payload. Transactions
// are omitted for large graphs to keep the JSON manageable.
type GraphEdge struct {
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	TotalAmount  float64           `json:"total_amount"`
	AvgAmount    float64           `json:"avg_amount"`
	TxCount      int               `json:"tx_count"`
	FirstTx      string            `json:"first_tx"`
	LastTx       string            `json:"last_tx"`
	Transactions []EdgeTransaction `json:"transactions,omitempty"`
}

// GraphData is the node/edge payload for visualization.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// AnalysisResult is the complete response for one analysis run.
type AnalysisResult struct {
	RunID               string              `json:"run_id"`
	SuspiciousAccounts  []SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings          []FraudRing         `json:"fraud_rings"`
	Summary             AnalysisSummary     `json:"summary"`
	Graph               GraphData           `json:"graph"`
	ParseStats          *ParseStats         `json:"parse_stats,omitempty"`
}

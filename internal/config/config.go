package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Detection holds every tunable detection threshold. A single immutable
// value is handed to each detector entry point, so two concurrent runs with
// different thresholds never interfere.
type Detection struct {
	// Ingestion limits
	MaxRows int

	// Cycle detection
	CycleMinLen  int
	CycleMaxLen  int
	MaxCycles    int
	CycleTimeout time.Duration

	// Fan-in / fan-out detection
	FanThreshold int
	FanWindow    time.Duration
	// Fan-in hubs whose inbound amounts vary more than this coefficient of
	// variation are treated as merchants and excluded.
	MerchantCVThreshold float64
	// Fan-out hubs whose outgoing transactions all land within this span are
	// treated as batch disbursements (payroll) and excluded.
	BatchSpanMax time.Duration

	// Shell chain detection
	ShellMaxTx     int
	ShellMinChain  int
	ShellMaxChain  int
	MaxShellChains int

	// Round-trip detection: minimum amount similarity (0..1) to flag a pair.
	RoundTripSimilarity float64

	// Enrichment detectors
	AnomalyStdDev        float64
	AnomalyMinTx         int
	RapidDwellMinutes    float64
	StructuringThreshold float64
	StructuringMargin    float64
	StructuringMinTx     int

	// Scoring
	ScoreCycle3        float64
	ScoreCycle4        float64
	ScoreCycle5        float64
	ScoreFanIn         float64
	ScoreFanOut        float64
	ScoreShell         float64
	ScoreRoundTrip     float64
	ScoreAnomaly       float64
	ScoreRapidMovement float64
	ScoreStructuring   float64
	ScoreHighVelocity  float64
	ScoreMultiRing     float64
	ScoreCentralityMax float64
	HighVelocityPerDay float64
	CentralityMaxNodes int

	// Ring merge
	MergeOverlapRatio float64
}

// DefaultDetection returns the production defaults.
func DefaultDetection() Detection {
	return Detection{
		MaxRows: 10000,

		CycleMinLen:  3,
		CycleMaxLen:  5,
		MaxCycles:    5000,
		CycleTimeout: 20 * time.Second,

		FanThreshold:        10,
		FanWindow:           72 * time.Hour,
		MerchantCVThreshold: 0.15,
		BatchSpanMax:        60 * time.Second,

		ShellMaxTx:     3,
		ShellMinChain:  3,
		ShellMaxChain:  6,
		MaxShellChains: 1000,

		RoundTripSimilarity: 0.8,

		AnomalyStdDev:        3.0,
		AnomalyMinTx:         5,
		RapidDwellMinutes:    30.0,
		StructuringThreshold: 10000.0,
		StructuringMargin:    0.15,
		StructuringMinTx:     3,

		ScoreCycle3:        35.0,
		ScoreCycle4:        30.0,
		ScoreCycle5:        25.0,
		ScoreFanIn:         28.0,
		ScoreFanOut:        28.0,
		ScoreShell:         22.0,
		ScoreRoundTrip:     20.0,
		ScoreAnomaly:       12.0,
		ScoreRapidMovement: 18.0,
		ScoreStructuring:   20.0,
		ScoreHighVelocity:  15.0,
		ScoreMultiRing:     10.0,
		ScoreCentralityMax: 10.0,
		HighVelocityPerDay: 5.0,
		CentralityMaxNodes: 500,

		MergeOverlapRatio: 0.5,
	}
}

// FromEnv builds a Detection config from environment variables layered over
// the defaults, then validates it. Malformed or invalid values are rejected
// here, before any detector runs.
func FromEnv() (Detection, error) {
	cfg := DefaultDetection()

	overlays := []error{
		envInt("MAX_ROWS", &cfg.MaxRows),
		envInt("MAX_CYCLES", &cfg.MaxCycles),
		envDurationSeconds("CYCLE_TIMEOUT_SECONDS", &cfg.CycleTimeout),
		envInt("FAN_THRESHOLD", &cfg.FanThreshold),
		envDurationHours("FAN_WINDOW_HOURS", &cfg.FanWindow),
		envFloat("MERCHANT_CV_THRESHOLD", &cfg.MerchantCVThreshold),
		envDurationSeconds("BATCH_SPAN_SECONDS", &cfg.BatchSpanMax),
		envInt("SHELL_MAX_TX", &cfg.ShellMaxTx),
		envInt("SHELL_MAX_CHAIN", &cfg.ShellMaxChain),
		envInt("MAX_SHELL_CHAINS", &cfg.MaxShellChains),
		envFloat("ROUND_TRIP_SIMILARITY", &cfg.RoundTripSimilarity),
		envFloat("AMOUNT_ANOMALY_STDDEV", &cfg.AnomalyStdDev),
		envFloat("RAPID_MOVEMENT_MINUTES", &cfg.RapidDwellMinutes),
		envFloat("STRUCTURING_THRESHOLD", &cfg.StructuringThreshold),
		envFloat("STRUCTURING_MARGIN", &cfg.StructuringMargin),
		envInt("STRUCTURING_MIN_TX", &cfg.StructuringMinTx),
		envFloat("HIGH_VELOCITY_TX_PER_DAY", &cfg.HighVelocityPerDay),
		envInt("CENTRALITY_MAX_NODES", &cfg.CentralityMaxNodes),
	}
	for _, err := range overlays {
		if err != nil {
			return Detection{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Detection{}, err
	}
	return cfg, nil
}

// Validate rejects threshold combinations that would make a detector
// meaningless or non-terminating.
func (c Detection) Validate() error {
	if c.MaxRows <= 0 {
		return fmt.Errorf("config: MaxRows must be positive, got %d", c.MaxRows)
	}
	if c.CycleMinLen < 3 {
		return fmt.Errorf("config: CycleMinLen must be at least 3, got %d", c.CycleMinLen)
	}
	if c.CycleMaxLen < c.CycleMinLen {
		return fmt.Errorf("config: CycleMaxLen %d is below CycleMinLen %d", c.CycleMaxLen, c.CycleMinLen)
	}
	if c.MaxCycles <= 0 {
		return fmt.Errorf("config: MaxCycles must be positive, got %d", c.MaxCycles)
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("config: CycleTimeout must be positive, got %s", c.CycleTimeout)
	}
	if c.FanThreshold < 2 {
		return fmt.Errorf("config: FanThreshold must be at least 2, got %d", c.FanThreshold)
	}
	if c.FanWindow <= 0 {
		return fmt.Errorf("config: FanWindow must be positive, got %s", c.FanWindow)
	}
	if c.MerchantCVThreshold <= 0 {
		return fmt.Errorf("config: MerchantCVThreshold must be positive, got %g", c.MerchantCVThreshold)
	}
	if c.BatchSpanMax <= 0 {
		return fmt.Errorf("config: BatchSpanMax must be positive, got %s", c.BatchSpanMax)
	}
	if c.ShellMaxTx < 1 {
		return fmt.Errorf("config: ShellMaxTx must be at least 1, got %d", c.ShellMaxTx)
	}
	if c.ShellMinChain < 2 {
		return fmt.Errorf("config: ShellMinChain must be at least 2, got %d", c.ShellMinChain)
	}
	if c.ShellMaxChain < c.ShellMinChain {
		return fmt.Errorf("config: ShellMaxChain %d is below ShellMinChain %d", c.ShellMaxChain, c.ShellMinChain)
	}
	if c.MaxShellChains <= 0 {
		return fmt.Errorf("config: MaxShellChains must be positive, got %d", c.MaxShellChains)
	}
	if c.RoundTripSimilarity <= 0 || c.RoundTripSimilarity > 1 {
		return fmt.Errorf("config: RoundTripSimilarity must be in (0,1], got %g", c.RoundTripSimilarity)
	}
	if c.AnomalyStdDev <= 0 {
		return fmt.Errorf("config: AnomalyStdDev must be positive, got %g", c.AnomalyStdDev)
	}
	if c.AnomalyMinTx < 2 {
		return fmt.Errorf("config: AnomalyMinTx must be at least 2, got %d", c.AnomalyMinTx)
	}
	if c.RapidDwellMinutes <= 0 {
		return fmt.Errorf("config: RapidDwellMinutes must be positive, got %g", c.RapidDwellMinutes)
	}
	if c.StructuringThreshold <= 0 {
		return fmt.Errorf("config: StructuringThreshold must be positive, got %g", c.StructuringThreshold)
	}
	if c.StructuringMargin <= 0 || c.StructuringMargin >= 1 {
		return fmt.Errorf("config: StructuringMargin must be in (0,1), got %g", c.StructuringMargin)
	}
	if c.StructuringMinTx < 1 {
		return fmt.Errorf("config: StructuringMinTx must be at least 1, got %d", c.StructuringMinTx)
	}
	if c.MergeOverlapRatio <= 0 || c.MergeOverlapRatio > 1 {
		return fmt.Errorf("config: MergeOverlapRatio must be in (0,1], got %g", c.MergeOverlapRatio)
	}
	if c.HighVelocityPerDay <= 0 {
		return fmt.Errorf("config: HighVelocityPerDay must be positive, got %g", c.HighVelocityPerDay)
	}
	if c.CentralityMaxNodes < 0 {
		return fmt.Errorf("config: CentralityMaxNodes must not be negative, got %d", c.CentralityMaxNodes)
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: invalid number %q", key, v)
	}
	*dst = f
	return nil
}

func envDurationSeconds(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: invalid number of seconds %q", key, v)
	}
	*dst = time.Duration(f * float64(time.Second))
	return nil
}

func envDurationHours(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: %s: invalid number of hours %q", key, v)
	}
	*dst = time.Duration(f * float64(time.Hour))
	return nil
}

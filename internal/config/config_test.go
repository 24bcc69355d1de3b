package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultDetection_Valid(t *testing.T) {
	if err := DefaultDetection().Validate(); err != nil {
		t.Fatalf("Defaults must validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Detection)
	}{
		{"zero max rows", func(c *Detection) { c.MaxRows = 0 }},
		{"cycle min below 3", func(c *Detection) { c.CycleMinLen = 2 }},
		{"cycle max below min", func(c *Detection) { c.CycleMaxLen = c.CycleMinLen - 1 }},
		{"fan threshold 1", func(c *Detection) { c.FanThreshold = 1 }},
		{"negative fan window", func(c *Detection) { c.FanWindow = -time.Hour }},
		{"shell max below min", func(c *Detection) { c.ShellMaxChain = 1 }},
		{"similarity above 1", func(c *Detection) { c.RoundTripSimilarity = 1.5 }},
		{"zero structing margin", func(c *Detection) { c.StructuringMargin = 0 }},
		{"merge ratio above 1", func(c *Detection) { c.MergeOverlapRatio = 1.2 }},
	}
	for _, tc := range cases {
		cfg := DefaultDetection()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	os.Setenv("FAN_THRESHOLD", "15")
	os.Setenv("CYCLE_TIMEOUT_SECONDS", "5")
	os.Setenv("STRUCTURING_THRESHOLD", "5000")
	defer func() {
		os.Unsetenv("FAN_THRESHOLD")
		os.Unsetenv("CYCLE_TIMEOUT_SECONDS")
		os.Unsetenv("STRUCTURING_THRESHOLD")
	}()

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.FanThreshold != 15 {
		t.Errorf("Expected fan threshold 15, got %d", cfg.FanThreshold)
	}
	if cfg.CycleTimeout != 5*time.Second {
		t.Errorf("Expected 5s cycle timeout, got %s", cfg.CycleTimeout)
	}
	if cfg.StructuringThreshold != 5000 {
		t.Errorf("Expected structuring threshold 5000, got %g", cfg.StructuringThreshold)
	}
	// Untouched values keep their defaults.
	if cfg.MaxRows != 10000 {
		t.Errorf("Expected default max rows, got %d", cfg.MaxRows)
	}
}

func TestFromEnv_InvalidValueRejected(t *testing.T) {
	os.Setenv("FAN_THRESHOLD", "1")
	defer os.Unsetenv("FAN_THRESHOLD")

	if _, err := FromEnv(); err == nil {
		t.Fatal("Expected a threshold of 1 to fail validation")
	}
}

func TestFromEnv_MalformedValueFatal(t *testing.T) {
	os.Setenv("MAX_ROWS", "lots")
	defer os.Unsetenv("MAX_ROWS")

	_, err := FromEnv()
	if err == nil {
		t.Fatal("A non-numeric MAX_ROWS must be rejected at load time")
	}
	if !strings.Contains(err.Error(), "MAX_ROWS") {
		t.Errorf("Error must name the offending variable, got %q", err)
	}
}

func TestFromEnv_MalformedFloatFatal(t *testing.T) {
	os.Setenv("STRUCTURING_MARGIN", "ten percent")
	defer os.Unsetenv("STRUCTURING_MARGIN")

	if _, err := FromEnv(); err == nil {
		t.Fatal("A non-numeric STRUCTURING_MARGIN must be rejected at load time")
	}
}

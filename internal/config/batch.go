package config

import (
	"os"
	"strconv"
	"time"
)

const (
	batchingEnabledEnv = "BATCHING_ENABLED"
	debounceWindowEnv  = "BATCH_DEBOUNCE_MS"

	defaultDebounceWindowMs = 1000
)

// Batching thresholds and timings fixed by the grouping model.
const (
	AffinityThreshold = 0.6
	DecisionThreshold = 0.6
	ArrivalAffinity   = 5 * time.Second
	ReplayStagger     = 200 * time.Millisecond
)

type BatchConfig struct {
	Enabled        bool
	DebounceWindow time.Duration
}

func LoadBatchConfig() *BatchConfig {
	enabled := os.Getenv(batchingEnabledEnv) != "false"

	debounceMs := defaultDebounceWindowMs
	if v := os.Getenv(debounceWindowEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			debounceMs = parsed
		}
	}

	return &BatchConfig{
		Enabled:        enabled,
		DebounceWindow: time.Duration(debounceMs) * time.Millisecond,
	}
}

package config

import (
	"os"
	"strconv"
	"time"
)

const (
	maxPer30sEnv    = "ADMISSION_MAX_PER_30S"
	maxPerMinuteEnv = "ADMISSION_MAX_PER_MINUTE"

	defaultMaxPer30s    = 3
	defaultMaxPerMinute = 5
)

// Fixed admission timings. The caps are runtime-configurable; the
// windows themselves are not.
const (
	ShortWindow   = 30 * time.Second
	LongWindow    = 60 * time.Second
	DedupWindow   = 5 * time.Second
	RetryDelay    = 5 * time.Second
	RetryDrainGap = 1 * time.Second
)

type AdmissionConfig struct {
	MaxPer30s    int
	MaxPerMinute int
}

func LoadAdmissionConfig() *AdmissionConfig {
	maxPer30s := defaultMaxPer30s
	if v := os.Getenv(maxPer30sEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxPer30s = parsed
		}
	}

	maxPerMinute := defaultMaxPerMinute
	if v := os.Getenv(maxPerMinuteEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxPerMinute = parsed
		}
	}

	return &AdmissionConfig{
		MaxPer30s:    maxPer30s,
		MaxPerMinute: maxPerMinute,
	}
}

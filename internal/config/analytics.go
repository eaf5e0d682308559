package config

import (
	"os"
	"strconv"
	"time"
)

const (
	analyticsFlushIntervalEnv = "ANALYTICS_FLUSH_INTERVAL_SECONDS"

	defaultAnalyticsFlushIntervalSeconds = 300
)

type AnalyticsConfig struct {
	FlushInterval time.Duration
}

func LoadAnalyticsConfig() *AnalyticsConfig {
	flushSeconds := defaultAnalyticsFlushIntervalSeconds
	if v := os.Getenv(analyticsFlushIntervalEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			flushSeconds = parsed
		}
	}

	return &AnalyticsConfig{
		FlushInterval: time.Duration(flushSeconds) * time.Second,
	}
}

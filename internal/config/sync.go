package config

import (
	"os"
	"strconv"
	"time"
)

const (
	syncChannelEnv         = "SYNC_CHANNEL"
	syncOfflineQueueCapEnv = "SYNC_OFFLINE_QUEUE_CAP"
	syncMaxRetriesEnv      = "SYNC_MAX_RETRIES"
	syncRetryBackoffMsEnv  = "SYNC_RETRY_BACKOFF_MS"

	defaultSyncChannel         = "notify:sync"
	defaultSyncOfflineQueueCap = 100
	defaultSyncMaxRetries      = 3
	defaultSyncRetryBackoffMs  = 500
)

type SyncConfig struct {
	Channel         string
	OfflineQueueCap int
	MaxRetries      int
	RetryBackoff    time.Duration
}

func LoadSyncConfig() *SyncConfig {
	channel := os.Getenv(syncChannelEnv)
	if channel == "" {
		channel = defaultSyncChannel
	}

	queueCap := defaultSyncOfflineQueueCap
	if v := os.Getenv(syncOfflineQueueCapEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			queueCap = parsed
		}
	}

	maxRetries := defaultSyncMaxRetries
	if v := os.Getenv(syncMaxRetriesEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxRetries = parsed
		}
	}

	backoffMs := defaultSyncRetryBackoffMs
	if v := os.Getenv(syncRetryBackoffMsEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			backoffMs = parsed
		}
	}

	return &SyncConfig{
		Channel:         channel,
		OfflineQueueCap: queueCap,
		MaxRetries:      maxRetries,
		RetryBackoff:    time.Duration(backoffMs) * time.Millisecond,
	}
}

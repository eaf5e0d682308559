package config

import (
	"os"
	"strconv"
	"time"
)

const (
	localStorePathEnv          = "LOCAL_STORE_PATH"
	localStoreBusyTimeoutMsEnv = "LOCAL_STORE_BUSY_TIMEOUT_MS"

	defaultLocalStorePath          = "data/notify.db"
	defaultLocalStoreBusyTimeoutMs = 5000
)

type LocalStoreConfig struct {
	Path        string
	BusyTimeout time.Duration
}

func LoadLocalStoreConfig() *LocalStoreConfig {
	path := os.Getenv(localStorePathEnv)
	if path == "" {
		path = defaultLocalStorePath
	}

	busyTimeoutMs := defaultLocalStoreBusyTimeoutMs
	if v := os.Getenv(localStoreBusyTimeoutMsEnv); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			busyTimeoutMs = parsed
		}
	}

	return &LocalStoreConfig{
		Path:        path,
		BusyTimeout: time.Duration(busyTimeoutMs) * time.Millisecond,
	}
}

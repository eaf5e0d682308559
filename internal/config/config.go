package config

import (
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Port       string
	LogLevel   slog.Level
	UserID     string
	Redis      *RedisConfig
	Admission  *AdmissionConfig
	Batch      *BatchConfig
	Sync       *SyncConfig
	Analytics  *AnalyticsConfig
	LocalStore *LocalStoreConfig
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	redisConfig, err := LoadRedisConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:       port,
		LogLevel:   parseLogLevel(os.Getenv("LOG_LEVEL")),
		UserID:     os.Getenv("NOTIFY_USER_ID"),
		Redis:      redisConfig,
		Admission:  LoadAdmissionConfig(),
		Batch:      LoadBatchConfig(),
		Sync:       LoadSyncConfig(),
		Analytics:  LoadAnalyticsConfig(),
		LocalStore: LoadLocalStoreConfig(),
	}, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

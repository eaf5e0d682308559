package config

import "errors"

var (
	ErrRedisAddrMissing = errors.New("REDIS_ADDR is required")
	ErrInvalidRedisDB   = errors.New("REDIS_DB must be a valid integer")
	ErrUserIDMissing    = errors.New("NOTIFY_USER_ID environment variable is required")
	ErrStorePathMissing = errors.New("LOCAL_STORE_PATH must not be empty")
)

package syncstore

import "errors"

var (
	ErrInvalidSyncData = errors.New("invalid sync record data")
)

package domain

import "errors"

var (
	ErrAdmissionRejected      = errors.New("notification rejected by admission")
	ErrSyncWriteFailed        = errors.New("sync write failed")
	ErrSyncSubscriptionFailed = errors.New("sync subscription failed")
	ErrMalformedBehaviorData  = errors.New("malformed behavior data")
	ErrRecordNotFound         = errors.New("sync record not found")
	ErrSettingsNotFound       = errors.New("settings not found")
	ErrSnapshotNotFound       = errors.New("metrics snapshot not found")
	ErrInvalidAction          = errors.New("invalid action definition")
	ErrChannelClosed          = errors.New("remote channel closed")
)

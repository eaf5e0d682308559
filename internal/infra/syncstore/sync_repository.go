// Package syncstore is the redis-backed remote table for mirrored
// notification state. Records live in one hash per user, field-keyed
// by notification id, with a rolling TTL on the hash.
package syncstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

const (
	userHashKeyPrefix = "notify:sync:"

	// syncRecordTTL caps how long a user's mirrored state survives
	// without any activity.
	syncRecordTTL = 7 * 24 * time.Hour
)

type syncRecord struct {
	UserID         string                     `json:"user_id"`
	NotificationID string                     `json:"notification_id"`
	SessionID      string                     `json:"session_id"`
	Notification   domain.NotificationRequest `json:"notification_data"`
	Action         string                     `json:"action"`
	Device         domain.DeviceDescriptor    `json:"device_info"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

type syncRepository struct {
	client *redis.Client
}

func NewSyncRepository(client *redis.Client) domain.SyncStore {
	return &syncRepository{
		client: client,
	}
}

func userKey(userID string) string {
	return userHashKeyPrefix + userID
}

func (r *syncRepository) Upsert(ctx context.Context, record *domain.SyncRecord) error {
	if record == nil || record.UserID == "" || record.NotificationID == "" {
		return ErrInvalidSyncData
	}

	data, err := json.Marshal(syncRecord{
		UserID:         record.UserID,
		NotificationID: record.NotificationID,
		SessionID:      record.SessionID,
		Notification:   record.Notification,
		Action:         record.Action.String(),
		Device:         record.Device,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	})
	if err != nil {
		return ErrInvalidSyncData
	}

	key := userKey(record.UserID)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, record.NotificationID, data)
	pipe.Expire(ctx, key, syncRecordTTL)

	_, err = pipe.Exec(ctx)
	return err
}

func (r *syncRepository) Get(ctx context.Context, userID, notificationID string) (*domain.SyncRecord, error) {
	data, err := r.client.HGet(ctx, userKey(userID), notificationID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return decodeRecord(data)
}

func (r *syncRepository) Delete(ctx context.Context, userID, notificationID string) error {
	return r.client.HDel(ctx, userKey(userID), notificationID).Err()
}

func (r *syncRepository) ListForUser(ctx context.Context, userID string) ([]*domain.SyncRecord, error) {
	fields, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*domain.SyncRecord, 0, len(fields))
	for _, data := range fields {
		record, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(data []byte) (*domain.SyncRecord, error) {
	var record syncRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ErrInvalidSyncData
	}

	return &domain.SyncRecord{
		UserID:         record.UserID,
		NotificationID: record.NotificationID,
		SessionID:      record.SessionID,
		Notification:   record.Notification,
		Action:         domain.SyncAction(record.Action),
		Device:         record.Device,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}

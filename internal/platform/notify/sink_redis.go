// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/kinship/internal/platform/constants"
)

// RedisSink publishes notifications on the channel "notify:{userID}".
//
// Each publish runs on its own goroutine detached from the caller's
// cancellation, bounded by [constants.NotifyTimeout]. Failures are logged.
type RedisSink struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
	clock  func() time.Time
}

// NewRedisSink creates a Redis pub/sub sink.
func NewRedisSink(client *redis.Client, logger *slog.Logger) *RedisSink {
	return &RedisSink{
		client: client,
		logger: logger,
		prefix: constants.RedisPrefixNotify,
		clock:  time.Now,
	}
}

// Channel returns the channel a user's notifications are published on.
func (sink *RedisSink) Channel(userID string) string {
	return sink.prefix + userID
}

// Notify implements [Sink].
func (sink *RedisSink) Notify(ctx context.Context, userID string, eventType Type, payload Payload) {
	event := Event{UserID: userID, Type: eventType, Payload: payload, OccurredAt: sink.clock().UTC()}

	message, err := json.Marshal(event)
	if err != nil {
		sink.logger.ErrorContext(ctx, "notification_encode_failed", slog.String("type", string(eventType)), slog.Any("error", err))
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		publishCtx, cancel := context.WithTimeout(detached, constants.NotifyTimeout)
		defer cancel()

		if err := sink.client.Publish(publishCtx, sink.Channel(userID), message).Err(); err != nil {
			sink.logger.WarnContext(publishCtx, "notification_publish_failed",
				slog.String("user_id", userID),
				slog.String("type", string(eventType)),
				slog.Any("error", err),
			)
		}
	}()
}

// Ping verifies the Redis connection.
func (sink *RedisSink) Ping(ctx context.Context) error {
	return sink.client.Ping(ctx).Err()
}

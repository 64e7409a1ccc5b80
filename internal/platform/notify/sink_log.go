// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements [Sink].
func (sink *LogSink) Notify(ctx context.Context, userID string, eventType Type, payload Payload) {
	attrs := make([]any, 0, len(payload)+2)
	attrs = append(attrs, slog.String("user_id", userID), slog.String("type", string(eventType)))
	for key, value := range payload {
		attrs = append(attrs, slog.String(key, value))
	}
	sink.logger.InfoContext(ctx, "notification_emitted", attrs...)
}

// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers user-facing events produced by the engines.

Delivery is fire-and-forget: a [Sink] never reports failure to its caller and
never blocks a state transition. Fan-out, batching and push delivery belong to
whatever consumes the events.

# Implementations

  - [LogSink]: writes every event as a structured log line.
  - [RedisSink]: publishes JSON events on a per-user Redis channel.
  - [Recorder]: keeps events in memory for tests.
*/
package notify

import (
	"context"
	"time"
)

// Type names an event kind.
type Type string

const (
	FriendRequest     Type = "FRIEND_REQUEST"
	FriendAccepted    Type = "FRIEND_ACCEPTED"
	GroupJoinRequest  Type = "GROUP_JOIN_REQUEST"
	GroupJoinApproved Type = "GROUP_JOIN_APPROVED"
	GroupInvitation   Type = "GROUP_INVITATION"
	GroupRoleChanged  Type = "GROUP_ROLE_CHANGED"
	PostApproved      Type = "POST_APPROVED"
	PostRejected      Type = "POST_REJECTED"
	ReportResolved    Type = "REPORT_RESOLVED"
)

// Payload carries event details, e.g. {"from": "u1"}.
type Payload map[string]string

// Event is the serialized form of a notification.
type Event struct {
	UserID     string    `json:"user_id"`
	Type       Type      `json:"type"`
	Payload    Payload   `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives notifications. Implementations must not block on delivery and
// must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, userID string, eventType Type, payload Payload)
}

// Nop discards every notification.
type Nop struct{}

// Notify implements [Sink].
func (Nop) Notify(context.Context, string, Type, Payload) {}

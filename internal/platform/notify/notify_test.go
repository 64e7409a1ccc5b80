// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinship/internal/platform/notify"
)

/*
TestLogSink writes one structured line per notification.
*/
func TestLogSink(t *testing.T) {
	var buffer bytes.Buffer
	sink := notify.NewLogSink(slog.New(slog.NewJSONHandler(&buffer, nil)))

	sink.Notify(context.Background(), "u2", notify.FriendRequest, notify.Payload{"from": "u1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	assert.Equal(t, "notification_emitted", line["msg"])
	assert.Equal(t, "u2", line["user_id"])
	assert.Equal(t, "FRIEND_REQUEST", line["type"])
	assert.Equal(t, "u1", line["from"])
}

/*
TestRecorder counts events per user and type.
*/
func TestRecorder(t *testing.T) {
	recorder := notify.NewRecorder()
	var sink notify.Sink = recorder

	sink.Notify(context.Background(), "u1", notify.FriendAccepted, nil)
	sink.Notify(context.Background(), "u1", notify.FriendAccepted, nil)
	sink.Notify(context.Background(), "u2", notify.FriendRequest, nil)

	assert.Equal(t, 2, recorder.Count("u1", notify.FriendAccepted))
	assert.Equal(t, 0, recorder.Count("u2", notify.FriendAccepted))
	assert.Len(t, recorder.Events(), 3)
}

/*
TestRedisSink publishes to the per-user channel. Requires KINSHIP_TEST_REDIS_URL.
*/
func TestRedisSink(t *testing.T) {
	url := os.Getenv("KINSHIP_TEST_REDIS_URL")
	if url == "" {
		t.Skip("KINSHIP_TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	sink := notify.NewRedisSink(client, slog.Default())

	ctx := context.Background()
	subscription := client.Subscribe(ctx, sink.Channel("u9"))
	t.Cleanup(func() { _ = subscription.Close() })
	_, err = subscription.Receive(ctx)
	require.NoError(t, err)

	sink.Notify(ctx, "u9", notify.ReportResolved, notify.Payload{"report_id": "r1"})

	select {
	case message := <-subscription.Channel():
		var event notify.Event
		require.NoError(t, json.Unmarshal([]byte(message.Payload), &event))
		assert.Equal(t, notify.ReportResolved, event.Type)
		assert.Equal(t, "r1", event.Payload["report_id"])
	case <-time.After(3 * time.Second):
		t.Fatal("notification not published")
	}
}

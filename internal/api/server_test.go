// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinship/internal/api"
	"github.com/taibuivan/kinship/internal/core/content"
	"github.com/taibuivan/kinship/internal/core/friend"
	"github.com/taibuivan/kinship/internal/core/group"
	"github.com/taibuivan/kinship/internal/core/moderation"
	"github.com/taibuivan/kinship/internal/platform/config"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
	"github.com/taibuivan/kinship/internal/platform/sec"
)

type testServer struct {
	handler http.Handler
	tokens  *sec.TokenService
}

func newTestServer(t *testing.T, checks ...api.Check) *testServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tokens := sec.NewTokenServiceFromKeys(key, &key.PublicKey, "kinship.test")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := docstore.NewMemoryStore()
	sink := notify.NewRecorder()

	friends := friend.NewService(friend.NewDocRepository(store), sink, logger, friend.Options{})
	groups := group.NewService(group.NewDocRepository(store), sink, logger, group.Options{})
	posts := content.NewService(content.NewDocRepository(store), groups, sink, logger, content.Options{})
	reports := moderation.NewService(moderation.NewDocRepository(store), posts, groups, sink, logger, moderation.Options{})

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{Checks: checks}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{ServerPort: "0", Environment: "development"}
	server := api.NewServer(ctx, cfg, logger, tokens, api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Friend:     friend.NewHandler(friends),
		Group:      group.NewHandler(groups),
		Content:    content.NewHandler(posts),
		Moderation: moderation.NewHandler(reports),
	})

	return &testServer{handler: server.Handler(), tokens: tokens}
}

func (server *testServer) do(t *testing.T, method, path, userID, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := server.tokens.GenerateAccessToken(userID, userID, sec.RoleMember, time.Minute)
		require.NoError(t, err)
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, request)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded), recorder.Body.String())
	}
	return recorder, decoded
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)

	recorder, body := server.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
}

func TestReadiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := newTestServer(t, api.Check{Name: "store:memory", Ping: docstore.NewMemoryStore().Ping})

		recorder, _ := server.do(t, http.MethodGet, "/ready", "", "")
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("degraded", func(t *testing.T) {
		down := func(context.Context) error { return errors.New("connection refused") }
		server := newTestServer(t, api.Check{Name: "store:postgres", Ping: down})

		recorder, body := server.do(t, http.MethodGet, "/ready", "", "")
		require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "degraded", data["status"])
	})
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	server := newTestServer(t)

	recorder, _ := server.do(t, http.MethodGet, "/api/v1/friends", "", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAPI_FriendFlow(t *testing.T) {
	server := newTestServer(t)

	recorder, body := server.do(t, http.MethodPost, "/api/v1/friends/requests", "alice", `{"user_id":"bob"}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, string(friend.StatusRequestSent), body["data"].(map[string]any)["status"])

	recorder, _ = server.do(t, http.MethodPost, "/api/v1/friends/requests/alice/accept", "bob", "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder, body = server.do(t, http.MethodGet, "/api/v1/friends/bob/status", "alice", "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, string(friend.StatusFriends), body["data"].(map[string]any)["status"])

	recorder, _ = server.do(t, http.MethodPost, "/api/v1/friends/requests", "alice", `{"user_id":"bob"}`)
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestAPI_GroupRoundTrip(t *testing.T) {
	server := newTestServer(t)

	recorder, body := server.do(t, http.MethodPost, "/api/v1/groups", "owner", `{"name":"Gardeners","privacy":"PUBLIC"}`)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	groupID, ok := body["data"].(map[string]any)["id"].(string)
	require.True(t, ok)

	recorder, _ = server.do(t, http.MethodPost, "/api/v1/groups/"+groupID+"/join", "member", "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder, body = server.do(t, http.MethodGet, "/api/v1/groups/"+groupID, "member", "")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.EqualValues(t, 2, body["data"].(map[string]any)["member_count"])
}

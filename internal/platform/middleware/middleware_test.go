// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/kinship/internal/platform/ctxutil"
	"github.com/taibuivan/kinship/internal/platform/middleware"
	"github.com/taibuivan/kinship/internal/platform/sec"
)

type stubVerifier struct {
	claims *sec.AuthClaims
}

func (verifier stubVerifier) VerifyToken(token string) (*sec.AuthClaims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return verifier.claims, nil
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(ctxutil.GetUserID(request.Context())))
	})
}

/*
TestAuthenticate covers anonymous, malformed, invalid and valid bearer headers.
*/
func TestAuthenticate(t *testing.T) {
	handler := middleware.Authenticate(stubVerifier{claims: &sec.AuthClaims{UserID: "u1"}})(echoUser())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"malformed", "Token good", http.StatusUnauthorized, ""},
		{"invalid", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer good", http.StatusOK, "u1"},
		{"lowercase_scheme", "bearer good", http.StatusOK, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, recorder.Body.String())
			}
		})
	}
}

/*
TestRequireRole enforces the platform role hierarchy.
*/
func TestRequireRole(t *testing.T) {
	handler := middleware.RequireRole(sec.RoleModerator)(echoUser())

	run := func(claims *sec.AuthClaims) int {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		if claims != nil {
			request = request.WithContext(ctxutil.WithAuthUser(request.Context(), claims))
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	assert.Equal(t, http.StatusUnauthorized, run(nil))
	assert.Equal(t, http.StatusForbidden, run(&sec.AuthClaims{UserID: "u1", Role: string(sec.RoleMember)}))
	assert.Equal(t, http.StatusOK, run(&sec.AuthClaims{UserID: "u1", Role: string(sec.RoleModerator)}))
	assert.Equal(t, http.StatusOK, run(&sec.AuthClaims{UserID: "u1", Role: string(sec.RoleAdmin)}))
}

/*
TestRateLimit rejects requests past the burst.
*/
func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, 0.001, 2)(echoUser())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.RemoteAddr = "10.0.0.1:1234"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		codes = append(codes, recorder.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

type corsConfig struct {
	dev     bool
	origins []string
}

func (c corsConfig) IsDevelopment() bool { return c.dev }
func (c corsConfig) Origins() []string   { return c.origins }

/*
TestCORS verifies origin filtering in production mode.
*/
func TestCORS(t *testing.T) {
	handler := middleware.CORS(corsConfig{origins: []string{"https://partner.example"}})(echoUser())

	allowed := func(origin string) string {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("Origin", origin)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Header().Get("Access-Control-Allow-Origin")
	}

	assert.Equal(t, "https://kinship.app", allowed("https://kinship.app"))
	assert.Equal(t, "https://api.kinship.app", allowed("https://api.kinship.app"))
	assert.Equal(t, "https://partner.example", allowed("https://partner.example"))
	assert.Empty(t, allowed("https://evil.example"))
}

// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinship/internal/platform/config"
)

/*
TestLoad_Defaults verifies the defaults applied when only required keys are set.
*/
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_PUBLIC_KEY_PATH", "/keys/public.pem")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.StoreBackend)
	assert.Equal(t, config.SinkLog, cfg.NotifySink)
	assert.Equal(t, 3, cfg.CASMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.ReadRepairGrace)
	assert.Equal(t, int64(0), cfg.MemberCountTolerance)
	assert.False(t, cfg.NeedsRedis())
}

/*
TestLoad_MissingPublicKey fails when the verification key path is empty or blank.
*/
func TestLoad_MissingPublicKey(t *testing.T) {
	for _, value := range []string{"", "   "} {
		t.Run("value="+value, func(t *testing.T) {
			t.Setenv("JWT_PUBLIC_KEY_PATH", value)

			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

/*
TestConfig_Validate covers the backend specific requirements.
*/
func TestConfig_Validate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			StoreBackend:   config.BackendMemory,
			NotifySink:     config.SinkLog,
			CASMaxAttempts: 3,
			JWTPubKeyPath:  "/keys/public.pem",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{"memory_ok", func(c *config.Config) {}, false},
		{"empty_public_key", func(c *config.Config) { c.JWTPubKeyPath = "" }, true},
		{"postgres_without_url", func(c *config.Config) { c.StoreBackend = config.BackendPostgres }, true},
		{"postgres_with_url", func(c *config.Config) {
			c.StoreBackend = config.BackendPostgres
			c.DatabaseURL = "postgres://localhost/kinship"
		}, false},
		{"redis_without_url", func(c *config.Config) { c.StoreBackend = config.BackendRedis }, true},
		{"redis_sink_without_url", func(c *config.Config) { c.NotifySink = config.SinkRedis }, true},
		{"unknown_backend", func(c *config.Config) { c.StoreBackend = "mongo" }, true},
		{"zero_attempts", func(c *config.Config) { c.CASMaxAttempts = 0 }, true},
		{"negative_tolerance", func(c *config.Config) { c.MemberCountTolerance = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

/*
TestConfig_Origins splits and trims the extra origin list.
*/
func TestConfig_Origins(t *testing.T) {
	cfg := config.Config{ExtraOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())

	assert.Empty(t, (&config.Config{}).Origins())
}

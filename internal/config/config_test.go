package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIAGE_BACKEND", "")
	t.Setenv("TRIAGE_GUARD", "")
	t.Setenv("KB_STORE", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("SLA_HOURS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendStub, cfg.Backend.Kind)
	assert.Equal(t, GuardLocal, cfg.Triage.Guard)
	assert.Equal(t, 0.78, cfg.Triage.ConfidenceThreshold)
	assert.Equal(t, 24, cfg.Triage.SLAHours)
	assert.True(t, cfg.Triage.AutoCloseEnabled)
	assert.Equal(t, 3, cfg.Triage.RetrievalLimit)
	assert.Equal(t, 20, cfg.RateLimit.AuthPerMinute)
	assert.Equal(t, 100, cfg.RateLimit.MutationPerMinute)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"TRIAGE_BACKEND": "magic"}},
		{name: "anthropic without key", env: map[string]string{"TRIAGE_BACKEND": "anthropic", "ANTHROPIC_API_KEY": ""}},
		{name: "threshold above one", env: map[string]string{"CONFIDENCE_THRESHOLD": "1.5"}},
		{name: "non positive sla", env: map[string]string{"SLA_HOURS": "0"}},
		{name: "redis guard without redis", env: map[string]string{"TRIAGE_GUARD": "redis", "REDIS_ADDR": ""}},
		{name: "unknown kb store", env: map[string]string{"KB_STORE": "mongo"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvAsFloatFallsBack(t *testing.T) {
	t.Setenv("SOME_FLOAT", "not-a-number")
	assert.Equal(t, 0.5, getEnvAsFloat("SOME_FLOAT", 0.5))
	t.Setenv("SOME_FLOAT", "0.25")
	assert.Equal(t, 0.25, getEnvAsFloat("SOME_FLOAT", 0.5))
}

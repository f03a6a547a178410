package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/app"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

func memoryApp(t *testing.T) *app.App {
	t.Helper()
	cfg := &config.Config{
		App:     config.AppConfig{Name: "triagectl-test"},
		Auth:    config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		Triage:  config.TriageConfig{Guard: config.GuardLocal, RetrievalLimit: 3, AutoCloseEnabled: true, ConfidenceThreshold: 0.78, SLAHours: 24},
		Backend: config.BackendConfig{Kind: config.BackendStub, TimeoutSeconds: 5},
		KB:      config.KBConfig{Store: config.KBStoreMemory},
	}
	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.Options{})
	require.NoError(t, err)
	return a
}

// run executes one command against a; the stores outlive the per-command Close.
func run(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	open := func(context.Context, bool) (*app.App, error) { return a, nil }
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedTriageAndAudit(t *testing.T) {
	a := memoryApp(t)

	out, err := run(t, a, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 users, 3 articles, 3 tickets")

	out, err = run(t, a, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already seeded")

	tickets, err := a.Stores.Tickets.List(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	var refundID string
	for _, tk := range tickets {
		if tk.Title == "Refund for double charge" {
			refundID = tk.ID
		}
	}
	require.NotEmpty(t, refundID)

	out, err = run(t, a, "triage", refundID, "--trace-id", "cli-trace")
	require.NoError(t, err)
	result := gjson.Parse(out)
	assert.Equal(t, "cli-trace", result.Get("trace_id").String())
	assert.Equal(t, result.Get("suggestion_id").String(), result.Get("suggestion.id").String())
	assert.Equal(t, "billing", result.Get("suggestion.predicted_category").String())

	out, err = run(t, a, "audit", refundID)
	require.NoError(t, err)
	trail := gjson.Parse(out).Array()
	require.Len(t, trail, 5)
	assert.Equal(t, "AUTO_CLOSED", trail[4].Get("action").String())
	assert.Equal(t, "cli-trace", trail[4].Get("trace_id").String())

	_, err = run(t, a, "triage", "missing-ticket")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	a := memoryApp(t)

	out, err := run(t, a, "config", "get")
	require.NoError(t, err)
	assert.True(t, gjson.Get(out, "auto_close_enabled").Bool())

	out, err = run(t, a, "config", "set", "--auto-close=false", "--sla-hours", "6")
	require.NoError(t, err)
	assert.False(t, gjson.Get(out, "auto_close_enabled").Bool())
	assert.Equal(t, int64(6), gjson.Get(out, "sla_hours").Int())
	assert.InDelta(t, 0.78, gjson.Get(out, "confidence_threshold").Float(), 1e-9)

	_, err = run(t, a, "config", "set")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to set")

	_, err = run(t, a, "config", "set", "--threshold", "2")
	assert.Error(t, err)
}

func TestSeedFromFile(t *testing.T) {
	a := memoryApp(t)
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - name: Solo
    email: solo@example.com
    password: password
    role: agent
`), 0o600))

	out, err := run(t, a, "seed", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 1 users, 0 articles, 0 tickets")

	_, err = run(t, a, "seed", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

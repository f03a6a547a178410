package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/seed"
)

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Name: "ticket-triage", Env: "test", Version: "test", RequestTimeoutSeconds: 5},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		Triage: config.TriageConfig{
			Guard:               config.GuardLocal,
			RetrievalLimit:      3,
			AutoCloseEnabled:    true,
			ConfidenceThreshold: 0.78,
			SLAHours:            24,
			SLASweepSchedule:    "@every 1h",
		},
		Backend: config.BackendConfig{Kind: config.BackendStub, TimeoutSeconds: 5},
		Worker:  config.WorkerConfig{Concurrency: 1, QueueSize: 10, RunTimeoutSeconds: 5},
		KB:      config.KBConfig{Store: config.KBStoreMemory},
	}
}

type testApp struct {
	*App
	server  *fiber.App
	tickets []string
}

func newTestApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()

	ctx := context.Background()
	a, err := New(ctx, cfg, zap.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	fixtures, err := seed.Default()
	require.NoError(t, err)
	sum, err := a.Seed(ctx, fixtures)
	require.NoError(t, err)
	require.Len(t, sum.Tickets, 3)

	return &testApp{App: a, server: a.HTTPServer(), tickets: sum.Tickets}
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any) (int, gjson.Result) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(raw)
}

func (ta *testApp) login(t *testing.T, email string) string {
	t.Helper()
	status, body := ta.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password"})
	require.Equal(t, http.StatusOK, status, body.Raw)
	token := body.Get("data.token").String()
	require.NotEmpty(t, token)
	return token
}

func TestHealthAndMetrics(t *testing.T) {
	ta := newTestApp(t, testConfig())

	status, body := ta.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body.Get("status").String())

	status, body = ta.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "disabled", body.Get("dependencies.postgres").String())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := ta.server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	ta := newTestApp(t, testConfig())

	status, body := ta.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Grace", "email": "grace@example.com", "password": "hopper-1906",
	})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	assert.Equal(t, "user", body.Get("data.user.role").String())
	token := body.Get("data.token").String()

	status, body = ta.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "grace@example.com", body.Get("data.email").String())

	status, body = ta.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Get("error.code").String())

	status, body = ta.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "grace@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Get("error.code").String())

	status, body = ta.do(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "x", "email": "bad", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Get("error.code").String())
	assert.True(t, body.Get("error.details.email").Exists())
}

func TestTriageOverHTTP(t *testing.T) {
	ta := newTestApp(t, testConfig())
	agent := ta.login(t, "agent@example.com")
	user := ta.login(t, "user@example.com")

	refund, parcel := ta.tickets[0], ta.tickets[2]

	status, body := ta.do(t, http.MethodGet, "/agent/suggestion/"+refund, agent, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Get("error.code").String())

	status, body = ta.do(t, http.MethodPost, "/agent/triage", agent, map[string]string{"ticket_id": refund, "trace_id": "trace-refund"})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	assert.Equal(t, "trace-refund", body.Get("data.trace_id").String())
	suggestionID := body.Get("data.suggestion_id").String()
	require.NotEmpty(t, suggestionID)

	status, body = ta.do(t, http.MethodGet, "/agent/suggestion/"+refund, agent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, suggestionID, body.Get("data.id").String())
	assert.Equal(t, "billing", body.Get("data.predicted_category").String())
	assert.True(t, body.Get("data.auto_closed").Bool())
	assert.Equal(t, "stub", body.Get("data.model_info.provider").String())

	status, body = ta.do(t, http.MethodGet, "/tickets/"+refund, user, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "resolved", body.Get("data.status").String())
	assert.Equal(t, suggestionID, body.Get("data.suggestion_id").String())
	messages := body.Get("data.messages").Array()
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[1].Get("author").String())

	status, body = ta.do(t, http.MethodGet, "/tickets/"+refund+"/audit", agent, nil)
	require.Equal(t, http.StatusOK, status)
	var actions []string
	for _, e := range body.Get("data").Array() {
		actions = append(actions, e.Get("action").String())
	}
	assert.Equal(t, []string{"TICKET_CREATED", "AGENT_CLASSIFIED", "KB_RETRIEVED", "DRAFT_GENERATED", "AUTO_CLOSED"}, actions)
	assert.Equal(t, "trace-refund", body.Get("data.1.trace_id").String())
	assert.Equal(t, "billing", body.Get("data.1.meta.predictedCategory").String())

	status, body = ta.do(t, http.MethodPost, "/agent/triage", agent, map[string]string{"ticket_id": parcel})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	status, body = ta.do(t, http.MethodGet, "/tickets/"+parcel, agent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "waiting_human", body.Get("data.status").String())
	assert.Equal(t, "shipping", body.Get("data.category").String())

	status, body = ta.do(t, http.MethodPost, "/agent/triage", agent, map[string]string{"ticket_id": "missing"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Get("error.code").String())

	status, _ = ta.do(t, http.MethodPost, "/agent/triage", user, map[string]string{"ticket_id": refund})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestTicketEndpoints(t *testing.T) {
	ta := newTestApp(t, testConfig())
	agent := ta.login(t, "agent@example.com")
	user := ta.login(t, "user@example.com")

	status, body := ta.do(t, http.MethodPost, "/tickets", user, map[string]any{
		"title": "Invoice missing", "description": "No invoice for my last payment",
	})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	id := body.Get("data.ticket.id").String()
	assert.Equal(t, "open", body.Get("data.ticket.status").String())
	assert.NotEmpty(t, body.Get("data.trace_id").String())

	status, body = ta.do(t, http.MethodGet, "/tickets?mine=true", user, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Get("data").Array(), 4)

	status, body = ta.do(t, http.MethodGet, "/tickets?status=bogus", agent, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body.Get("error.code").String())

	status, _ = ta.do(t, http.MethodGet, "/tickets/"+id+"/audit", user, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ta.do(t, http.MethodPost, "/tickets/"+id+"/reply", agent, map[string]string{"body": "Sent it again."})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	assert.Equal(t, "agent", body.Get("data.author").String())

	status, body = ta.do(t, http.MethodGet, "/auth/me", agent, nil)
	require.Equal(t, http.StatusOK, status)
	agentID := body.Get("data.id").String()

	status, body = ta.do(t, http.MethodPost, "/tickets/"+id+"/assign", agent, map[string]string{"assignee_id": agentID})
	require.Equal(t, http.StatusOK, status, body.Raw)
	assert.Equal(t, agentID, body.Get("data.assignee_id").String())
	assert.Equal(t, "triaged", body.Get("data.status").String())

	status, body = ta.do(t, http.MethodPost, "/tickets", user, map[string]any{"title": "", "description": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.True(t, body.Get("error.details.title").Exists())
}

func TestKnowledgeBaseAndConfigEndpoints(t *testing.T) {
	ta := newTestApp(t, testConfig())
	admin := ta.login(t, "admin@example.com")
	agent := ta.login(t, "agent@example.com")

	status, body := ta.do(t, http.MethodGet, "/kb?query=tracking", agent, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body.Get("data").Array())
	assert.Equal(t, "Tracking your shipment", body.Get("data.0.title").String())

	status, _ = ta.do(t, http.MethodPost, "/kb", agent, map[string]any{"title": "t", "body": "b"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ta.do(t, http.MethodPost, "/kb", admin, map[string]any{"title": "Resetting passwords", "body": "Use the reset link.", "tags": []string{"Account"}})
	require.Equal(t, http.StatusCreated, status, body.Raw)
	articleID := body.Get("data.id").String()
	assert.Equal(t, "draft", body.Get("data.status").String())
	assert.Equal(t, "account", body.Get("data.tags.0").String())

	status, body = ta.do(t, http.MethodPut, "/kb/"+articleID, admin, map[string]any{"status": "published"})
	require.Equal(t, http.StatusOK, status, body.Raw)
	assert.Equal(t, "published", body.Get("data.status").String())

	status, _ = ta.do(t, http.MethodDelete, "/kb/"+articleID, admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = ta.do(t, http.MethodGet, "/kb/"+articleID, agent, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = ta.do(t, http.MethodGet, "/config", agent, nil)
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 0.78, body.Get("data.confidence_threshold").Float(), 1e-9)

	status, _ = ta.do(t, http.MethodPut, "/config", agent, map[string]any{"sla_hours": 4})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ta.do(t, http.MethodPut, "/config", admin, map[string]any{"confidence_threshold": 1.5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.True(t, body.Get("error.details.confidence_threshold").Exists())

	status, body = ta.do(t, http.MethodPut, "/config", admin, map[string]any{"auto_close_enabled": false, "sla_hours": 4})
	require.Equal(t, http.StatusOK, status, body.Raw)
	assert.False(t, body.Get("data.auto_close_enabled").Bool())
	assert.Equal(t, int64(4), body.Get("data.sla_hours").Int())
}

func TestAutoCloseDisabledEscalates(t *testing.T) {
	cfg := testConfig()
	cfg.Triage.AutoCloseEnabled = false
	ta := newTestApp(t, cfg)

	result, err := ta.Orchestrator.Triage(context.Background(), ta.tickets[0], "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.TraceID)

	ticket, err := ta.Stores.Tickets.GetByID(context.Background(), ta.tickets[0])
	require.NoError(t, err)
	assert.Equal(t, "waiting_human", string(ticket.Status))
}

func TestBackgroundTriageOnCreate(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), zap.NewNop(), Options{Background: true})
	require.NoError(t, err)

	fixtures, err := seed.Default()
	require.NoError(t, err)
	sum, err := a.Seed(ctx, fixtures)
	require.NoError(t, err)

	// Close drains the pool, so every detached run has finished afterwards.
	require.NoError(t, a.Close(ctx))

	for _, id := range sum.Tickets {
		_, ok, err := a.Orchestrator.LatestSuggestion(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "ticket %s was not triaged", id)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ta := newTestApp(t, testConfig())

	fixtures, err := seed.Default()
	require.NoError(t, err)
	sum, err := ta.Seed(context.Background(), fixtures)
	require.NoError(t, err)
	assert.True(t, sum.Skipped)
	assert.Empty(t, sum.Tickets)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := NewBackend(config.BackendConfig{Kind: "mystery"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mystery"))

	backend, err := NewBackend(config.BackendConfig{Kind: config.BackendStub})
	require.NoError(t, err)
	assert.Equal(t, "stub", backend.Info().Provider)
}

package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func TestMetricsHooksCountRuns(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, NewStubBackend(), func(d *Dependencies) {
		d.Hooks = m.Hooks()
		d.Audit = d.Audit.WithFailureHook(m.AuditFailureHook())
	})
	h.audit.FailOn = map[domain.AuditAction]error{domain.ActionKBRetrieved: errors.New("nope")}

	closing := h.ticket(t, "Refund request", "Duplicate charge on invoice, please refund the payment")
	waiting := h.ticket(t, "Where is my package?", "Shipment delayed 5 days")
	for _, id := range []string{closing.ID, waiting.ID} {
		_, err := h.orch.Triage(context.Background(), id, "")
		require.NoError(t, err)
	}
	_, err := h.orch.Triage(context.Background(), "missing", "")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("auto_closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("escalated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ticket_not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendCallsTotal.WithLabelValues("classify", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendCallsTotal.WithLabelValues("draft", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetrievalsTotal.WithLabelValues("primary")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditFailures.WithLabelValues(string(domain.ActionKBRetrieved))))
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "backend_timeout", ErrorKind(errors.Join(errors.New("x"), ErrBackendTimeout)))
	assert.Equal(t, "invalid_config", ErrorKind(domain.ErrInvalidConfig))
	assert.Equal(t, "in_progress", ErrorKind(ErrTriageInProgress))
	assert.Equal(t, "error", ErrorKind(errors.New("other")))
}

func TestMergeHooksFansOut(t *testing.T) {
	t.Parallel()

	var a, b int
	merged := MergeHooks(Hooks{OnComplete: func(Outcome) { a++ }}, Hooks{}, Hooks{OnComplete: func(Outcome) { b++ }})
	merged.OnComplete(Outcome{})
	merged.OnRetrieve(1, false)
	merged.OnBackendCall("classify", 0.1, nil)
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

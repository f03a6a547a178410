package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	enabled := domain.RuntimeConfig{AutoCloseEnabled: true, ConfidenceThreshold: 0.78, SLAHours: 24}
	disabled := enabled
	disabled.AutoCloseEnabled = false

	cases := []struct {
		name       string
		confidence float64
		cfg        domain.RuntimeConfig
		want       Decision
	}{
		{"above threshold", 0.9, enabled, Decision{AutoClose: true, Status: domain.TicketStatusResolved}},
		{"at threshold", 0.78, enabled, Decision{AutoClose: true, Status: domain.TicketStatusResolved}},
		{"below threshold", 0.77, enabled, Decision{AutoClose: false, Status: domain.TicketStatusWaitingHuman}},
		{"zero threshold closes everything", 0, domain.RuntimeConfig{AutoCloseEnabled: true}, Decision{AutoClose: true, Status: domain.TicketStatusResolved}},
		{"threshold one needs certainty", 0.99, domain.RuntimeConfig{AutoCloseEnabled: true, ConfidenceThreshold: 1}, Decision{AutoClose: false, Status: domain.TicketStatusWaitingHuman}},
		{"disabled ignores confidence", 1, disabled, Decision{AutoClose: false, Status: domain.TicketStatusWaitingHuman}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.confidence, tc.cfg))
		})
	}
}

func TestDecideIsMonotonicInConfidence(t *testing.T) {
	t.Parallel()

	cfg := domain.RuntimeConfig{AutoCloseEnabled: true, ConfidenceThreshold: 0.5}
	closed := false
	for i := 0; i <= 100; i++ {
		d := Decide(float64(i)/100, cfg)
		if closed {
			assert.True(t, d.AutoClose, "confidence %d%% reopened after closing", i)
		}
		closed = d.AutoClose
	}
	assert.True(t, closed)
}

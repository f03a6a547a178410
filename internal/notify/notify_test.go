package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildEmbed(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	embed := BuildEmbed(Notice{
		Kind:     KindSLABreach,
		TicketID: "t1",
		TraceID:  "tr1",
		Title:    "Where is my package?",
		Fields:   []Field{{Name: "Waiting", Value: "26h0m0s"}},
		At:       at,
	})

	assert.Equal(t, "SLA breached: Where is my package?", embed.Title)
	assert.Equal(t, 0xE74C3C, embed.Color)
	assert.Equal(t, "2024-05-01T12:00:00Z", embed.Timestamp)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "Trace", embed.Fields[1].Name)
	assert.Equal(t, "26h0m0s", embed.Fields[2].Value)
}

func TestBuildEmbedOmitsEmptyTrace(t *testing.T) {
	embed := BuildEmbed(Notice{Kind: KindAssigned, TicketID: "t1", Title: "x"})
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "Assigned: x", embed.Title)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := LogNotifier{Logger: zap.New(core)}

	require.NoError(t, n.Notify(context.Background(), Notice{Kind: KindEscalated, TicketID: "t1", Title: "x"}))
	entries := logs.FilterMessage("ticket notice").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "escalated", entries[0].ContextMap()["kind"])
}

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-triage/internal/triage"
)

type runnerFunc func(ctx context.Context, ticketID, traceID string) (*triage.Result, error)

func (f runnerFunc) Triage(ctx context.Context, ticketID, traceID string) (*triage.Result, error) {
	return f(ctx, ticketID, traceID)
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	runner := runnerFunc(func(_ context.Context, ticketID, traceID string) (*triage.Result, error) {
		mu.Lock()
		seen[ticketID] = traceID
		mu.Unlock()
		return &triage.Result{TraceID: traceID}, nil
	})
	metrics := NewPoolMetrics(prometheus.NewRegistry())
	pool := NewTriagePool(runner, PoolConfig{Concurrency: 3, QueueSize: 10}, zap.NewNop(), metrics)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, pool.Submit(context.Background(), Job{TicketID: id, TraceID: "trace-" + id}))
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Equal(t, map[string]string{"a": "trace-a", "b": "trace-b", "c": "trace-c", "d": "trace-d"}, seen)
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Jobs.WithLabelValues(resultSucceeded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.QueueDepth))
}

func TestPoolRunsDetachedFromSubmitterContext(t *testing.T) {
	t.Parallel()

	got := make(chan error, 1)
	runner := runnerFunc(func(ctx context.Context, _, _ string) (*triage.Result, error) {
		got <- ctx.Err()
		return &triage.Result{}, nil
	})
	pool := NewTriagePool(runner, PoolConfig{Concurrency: 1, QueueSize: 1, RunTimeout: time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Submit(ctx, Job{TicketID: "a"}))
	cancel()
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.NoError(t, <-got)
}

func TestPoolRejectsWhenFull(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	runner := runnerFunc(func(context.Context, string, string) (*triage.Result, error) {
		started <- struct{}{}
		<-block
		return &triage.Result{}, nil
	})
	metrics := NewPoolMetrics(prometheus.NewRegistry())
	pool := NewTriagePool(runner, PoolConfig{Concurrency: 1, QueueSize: 1}, nil, metrics)

	require.NoError(t, pool.Submit(context.Background(), Job{TicketID: "running"}))
	<-started
	require.NoError(t, pool.Submit(context.Background(), Job{TicketID: "queued"}))
	err := pool.Submit(context.Background(), Job{TicketID: "overflow"})
	assert.ErrorIs(t, err, ErrPoolFull)

	close(block)
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.ErrorIs(t, pool.Submit(context.Background(), Job{TicketID: "late"}), ErrPoolClosed)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Jobs.WithLabelValues(resultRejected)))
}

func TestPoolLogsFailuresAndPanics(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	runner := runnerFunc(func(_ context.Context, ticketID, _ string) (*triage.Result, error) {
		calls.Add(1)
		switch ticketID {
		case "panic":
			panic("worker exploded")
		case "fail":
			return nil, triage.ErrBackendTimeout
		}
		return &triage.Result{}, nil
	})
	core, logs := observer.New(zap.ErrorLevel)
	metrics := NewPoolMetrics(prometheus.NewRegistry())
	pool := NewTriagePool(runner, PoolConfig{Concurrency: 1, QueueSize: 5}, zap.New(core), metrics)

	for _, id := range []string{"panic", "fail", "ok"} {
		require.NoError(t, pool.Submit(context.Background(), Job{TicketID: id}))
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Jobs.WithLabelValues(resultPanic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Jobs.WithLabelValues(resultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Jobs.WithLabelValues(resultSucceeded)))

	failed := logs.FilterMessage("triage job failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "backend_timeout", failed[0].ContextMap()["kind"])
	assert.Equal(t, 1, logs.FilterMessage("triage job panicked").Len())
}

func TestPoolShutdownHonoursContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	runner := runnerFunc(func(context.Context, string, string) (*triage.Result, error) {
		<-block
		return &triage.Result{}, nil
	})
	pool := NewTriagePool(runner, PoolConfig{Concurrency: 1}, nil, nil)
	require.NoError(t, pool.Submit(context.Background(), Job{TicketID: "slow"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Shutdown(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	close(block)
}

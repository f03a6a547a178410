package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-triage/internal/triage"
)

var (
	// ErrPoolFull is returned by Submit when the queue has no free slot.
	ErrPoolFull = errors.New("triage queue full")
	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("triage pool closed")
)

// Runner executes one triage run.
type Runner interface {
	Triage(ctx context.Context, ticketID, traceID string) (*triage.Result, error)
}

// Job identifies a detached triage run.
type Job struct {
	TicketID string
	TraceID  string
}

// PoolConfig sizes a TriagePool.
type PoolConfig struct {
	Concurrency int
	QueueSize   int
	RunTimeout  time.Duration
}

type queued struct {
	ctx context.Context
	job Job
}

// TriagePool runs triage jobs on a fixed set of workers fed by a bounded
// queue. Job failures are logged and counted, never returned to the submitter.
type TriagePool struct {
	runner     Runner
	logger     *zap.Logger
	metrics    *PoolMetrics
	runTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	group  errgroup.Group
}

// NewTriagePool starts the workers. metrics may be nil.
func NewTriagePool(runner Runner, cfg PoolConfig, logger *zap.Logger, metrics *PoolMetrics) *TriagePool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &TriagePool{
		runner:     runner,
		logger:     logger,
		metrics:    metrics,
		runTimeout: cfg.RunTimeout,
		queue:      make(chan queued, cfg.QueueSize),
	}
	for i := 0; i < cfg.Concurrency; i++ {
		p.group.Go(func() error {
			for item := range p.queue {
				p.metrics.dequeued()
				p.run(item)
			}
			return nil
		})
	}
	return p
}

// Submit enqueues a job without blocking. The job keeps ctx's values but not
// its cancellation, so a finished HTTP request does not abort the run.
func (p *TriagePool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.observe(resultRejected)
		return ErrPoolClosed
	}
	select {
	case p.queue <- queued{ctx: context.WithoutCancel(ctx), job: job}:
		p.metrics.enqueued()
		return nil
	default:
		p.metrics.observe(resultRejected)
		p.logger.Warn("triage queue full", zap.String("ticket_id", job.TicketID), zap.String("trace_id", job.TraceID))
		return ErrPoolFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (p *TriagePool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("triage pool shutdown: %w", ctx.Err())
	}
}

func (p *TriagePool) run(item queued) {
	ctx := item.ctx
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}
	logger := p.logger.With(zap.String("ticket_id", item.job.TicketID), zap.String("trace_id", item.job.TraceID))

	defer func() {
		if r := recover(); r != nil {
			p.metrics.observe(resultPanic)
			logger.Error("triage job panicked", zap.Any("panic", r))
		}
	}()

	if _, err := p.runner.Triage(ctx, item.job.TicketID, item.job.TraceID); err != nil {
		p.metrics.observe(resultFailed)
		logger.Error("triage job failed", zap.String("kind", triage.ErrorKind(err)), zap.Error(err))
		return
	}
	p.metrics.observe(resultSucceeded)
}

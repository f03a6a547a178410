package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

const slaSweepBatch = 200

// SLADependencies wires an SLASweeper.
type SLADependencies struct {
	Tickets    repository.TicketRepository
	Audit      repository.AuditRepository
	Recorder   *triage.Recorder
	Config     triage.ConfigProvider
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// SLASweeper flags tickets that have waited for a human longer than the
// configured SLA. Each ticket is flagged at most once.
type SLASweeper struct {
	deps SLADependencies
	cron *cron.Cron
}

// NewSLASweeper builds a sweeper. Start schedules it.
func NewSLASweeper(deps SLADependencies) *SLASweeper {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &SLASweeper{deps: deps}
}

// Start runs Sweep on schedule, a six-field cron expression with seconds.
func (s *SLASweeper) Start(ctx context.Context, schedule string) error {
	s.cron = cron.New(cron.WithSeconds())
	_, err := s.cron.AddFunc(schedule, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.deps.Logger.Error("sla sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			s.deps.Logger.Info("sla breaches recorded", zap.Int("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sla sweep %q: %w", schedule, err)
	}
	s.cron.Start()
	s.deps.Logger.Info("sla sweeper started", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *SLASweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.deps.Logger.Warn("sla sweeper stop timed out")
	}
}

// Sweep records SLA_BREACHED for overdue waiting_human tickets and returns
// how many were newly flagged.
func (s *SLASweeper) Sweep(ctx context.Context) (int, error) {
	cfg, err := s.deps.Config.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("read runtime config: %w", err)
	}
	now := s.deps.Now().UTC()
	cutoff := now.Add(-cfg.SLA())
	waiting := domain.TicketStatusWaitingHuman

	tickets, err := s.deps.Tickets.List(ctx, repository.TicketFilter{
		Status:        &waiting,
		UpdatedBefore: &cutoff,
		Limit:         slaSweepBatch,
	})
	if err != nil {
		return 0, fmt.Errorf("list overdue tickets: %w", err)
	}

	flagged := 0
	for _, t := range tickets {
		seen, err := s.deps.Audit.HasAction(ctx, t.ID, domain.ActionSLABreached)
		if err != nil {
			s.deps.Logger.Warn("sla breach lookup failed", zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if seen {
			continue
		}
		traceID := uuid.NewString()
		waited := now.Sub(t.UpdatedAt).Truncate(time.Minute)
		s.deps.Recorder.Record(ctx, t.ID, traceID, domain.ActorSystem, domain.ActionSLABreached, map[string]any{
			"slaHours":     cfg.SLAHours,
			"waitingSince": t.UpdatedAt.UTC().Format(time.RFC3339),
		})
		flagged++

		if s.deps.Dispatcher != nil {
			event := events.New(events.EventSLABreached, t.ID, traceID, events.Actor{Type: domain.ActorSystem}, events.SLABreachedPayload{
				Title:      t.Title,
				WaitingFor: waited.String(),
				Since:      t.UpdatedAt,
			})
			if err := s.deps.Dispatcher.Publish(ctx, event); err != nil {
				s.deps.Logger.Warn("sla event handlers failed", zap.String("ticket_id", t.ID), zap.Error(err))
			}
		}
	}
	return flagged, nil
}

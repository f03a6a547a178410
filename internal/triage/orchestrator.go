package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

var tracer = otel.Tracer("github.com/spec-kit/ticket-triage/internal/triage")

// DefaultBackendTimeout bounds a single classify or draft call.
const DefaultBackendTimeout = 15 * time.Second

// Result identifies a completed run.
type Result struct {
	TraceID      string
	SuggestionID string
}

// Outcome summarizes a run for hooks, successful or not.
type Outcome struct {
	TicketID     string
	TraceID      string
	SuggestionID string
	Category     domain.TicketCategory
	Confidence   float64
	AutoClosed   bool
	Status       domain.TicketStatus
	Fallback     bool
	Duration     float64
	Err          error
}

// Hooks are optional callbacks invoked during a run.
type Hooks struct {
	OnBackendCall func(op string, seconds float64, err error)
	OnRetrieve    func(results int, fallback bool)
	OnComplete    func(Outcome)
}

// MergeHooks fans every callback out to all of hooks.
func MergeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnBackendCall: func(op string, seconds float64, err error) {
			for _, h := range hooks {
				if h.OnBackendCall != nil {
					h.OnBackendCall(op, seconds, err)
				}
			}
		},
		OnRetrieve: func(results int, fallback bool) {
			for _, h := range hooks {
				if h.OnRetrieve != nil {
					h.OnRetrieve(results, fallback)
				}
			}
		},
		OnComplete: func(o Outcome) {
			for _, h := range hooks {
				if h.OnComplete != nil {
					h.OnComplete(o)
				}
			}
		},
	}
}

// Dependencies wires an Orchestrator.
type Dependencies struct {
	Tickets     TicketStore
	Suggestions SuggestionStore
	Messages    MessageStore
	Config      ConfigProvider
	Backend     Backend
	Retriever   *Retriever
	Audit       *Recorder
	// Guard is optional; nil allows concurrent runs for the same ticket.
	Guard          Guard
	Hooks          Hooks
	Logger         *zap.Logger
	BackendTimeout time.Duration
}

// Orchestrator sequences one triage run per call.
type Orchestrator struct {
	tickets        TicketStore
	suggestions    SuggestionStore
	messages       MessageStore
	config         ConfigProvider
	backend        Backend
	retriever      *Retriever
	audit          *Recorder
	guard          Guard
	hooks          Hooks
	logger         *zap.Logger
	backendTimeout time.Duration
}

// NewOrchestrator builds an orchestrator from deps.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.BackendTimeout
	if timeout <= 0 {
		timeout = DefaultBackendTimeout
	}
	return &Orchestrator{
		tickets:        deps.Tickets,
		suggestions:    deps.Suggestions,
		messages:       deps.Messages,
		config:         deps.Config,
		backend:        deps.Backend,
		retriever:      deps.Retriever,
		audit:          deps.Audit,
		guard:          deps.Guard,
		hooks:          deps.Hooks,
		logger:         logger,
		backendTimeout: timeout,
	}
}

// Triage classifies, retrieves, drafts and decides for one ticket. An empty
// traceID is replaced with a generated one. Runs are not idempotent: every
// successful call creates a new Suggestion.
func (o *Orchestrator) Triage(ctx context.Context, ticketID, traceID string) (_ *Result, err error) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	started := time.Now()
	outcome := Outcome{TicketID: ticketID, TraceID: traceID}

	ctx, span := tracer.Start(ctx, "triage.Run", trace.WithAttributes(
		attribute.String("ticket.id", ticketID),
		attribute.String("triage.trace_id", traceID),
	))
	defer span.End()
	defer func() {
		outcome.Duration = time.Since(started).Seconds()
		outcome.Err = err
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if o.hooks.OnComplete != nil {
			o.hooks.OnComplete(outcome)
		}
	}()

	if o.guard != nil {
		release, err := o.guard.Acquire(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	ticket, err := o.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
		}
		return nil, fmt.Errorf("load ticket: %w", err)
	}

	var backendTime time.Duration
	text := ticket.Text()

	classification, err := callBackend(ctx, o, "classify", &backendTime, func(ctx context.Context) (Classification, error) {
		return o.backend.Classify(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	outcome.Category = classification.Category
	outcome.Confidence = classification.Confidence
	o.audit.Record(ctx, ticket.ID, traceID, domain.ActorSystem, domain.ActionAgentClassified, map[string]any{
		"predictedCategory": string(classification.Category),
		"confidence":        classification.Confidence,
	})

	retrieval, err := o.retrieve(ctx, ticket.SearchQuery())
	if err != nil {
		return nil, err
	}
	outcome.Fallback = retrieval.Fallback
	articleIDs := make([]string, 0, len(retrieval.Articles))
	for _, a := range retrieval.Articles {
		articleIDs = append(articleIDs, a.ID)
	}
	o.audit.Record(ctx, ticket.ID, traceID, domain.ActorSystem, domain.ActionKBRetrieved, map[string]any{
		"articleIds": articleIDs,
		"fallback":   retrieval.Fallback,
	})

	refs := ReferencesFrom(retrieval.Articles)
	draft, err := callBackend(ctx, o, "draft", &backendTime, func(ctx context.Context) (Draft, error) {
		return o.backend.Draft(ctx, text, refs)
	})
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, ticket.ID, traceID, domain.ActorSystem, domain.ActionDraftGenerated, map[string]any{
		"draftReply": draft.Reply,
		"citations":  draft.Citations,
	})

	cfg, err := o.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read runtime config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	decision := Decide(classification.Confidence, cfg)

	info := o.backend.Info()
	info.LatencyMs = backendTime.Milliseconds()
	suggestion := &domain.Suggestion{
		TicketID:          ticket.ID,
		PredictedCategory: classification.Category,
		ArticleIDs:        articleIDs,
		DraftReply:        draft.Reply,
		Confidence:        classification.Confidence,
		AutoClosed:        decision.AutoClose,
		ModelInfo:         info,
	}
	if err := o.suggestions.Create(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("create suggestion: %w", err)
	}

	// the suggestion must exist before the ticket references it
	ticket.Category = classification.Category
	ticket.SuggestionID = &suggestion.ID
	ticket.Status = decision.Status
	if err := o.tickets.Update(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}

	meta := map[string]any{"suggestionId": suggestion.ID}
	if decision.AutoClose {
		msg := &domain.TicketMessage{TicketID: ticket.ID, Author: domain.AuthorSystem, Body: draft.Reply}
		if err := o.messages.Create(ctx, msg); err != nil {
			return nil, fmt.Errorf("append system reply: %w", err)
		}
		o.audit.Record(ctx, ticket.ID, traceID, domain.ActorSystem, domain.ActionAutoClosed, meta)
	} else {
		o.audit.Record(ctx, ticket.ID, traceID, domain.ActorSystem, domain.ActionAssignedToHuman, meta)
	}

	outcome.SuggestionID = suggestion.ID
	outcome.AutoClosed = decision.AutoClose
	outcome.Status = decision.Status
	span.SetAttributes(
		attribute.String("triage.category", string(classification.Category)),
		attribute.Float64("triage.confidence", classification.Confidence),
		attribute.Bool("triage.auto_closed", decision.AutoClose),
	)
	o.logger.Info("ticket triaged",
		zap.String("ticket_id", ticket.ID),
		zap.String("trace_id", traceID),
		zap.String("suggestion_id", suggestion.ID),
		zap.String("category", string(classification.Category)),
		zap.Float64("confidence", classification.Confidence),
		zap.Bool("auto_closed", decision.AutoClose))

	return &Result{TraceID: traceID, SuggestionID: suggestion.ID}, nil
}

// LatestSuggestion returns the most recent suggestion for the ticket, if any.
func (o *Orchestrator) LatestSuggestion(ctx context.Context, ticketID string) (*domain.Suggestion, bool, error) {
	s, err := o.suggestions.LatestByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("latest suggestion: %w", err)
	}
	return s, true, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string) (Retrieval, error) {
	ctx, span := tracer.Start(ctx, "triage.retrieve")
	defer span.End()

	r, err := o.retriever.Retrieve(ctx, query, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Retrieval{}, fmt.Errorf("retrieve references: %w", err)
	}
	span.SetAttributes(
		attribute.Int("triage.articles", len(r.Articles)),
		attribute.Bool("triage.fallback", r.Fallback),
	)
	if o.hooks.OnRetrieve != nil {
		o.hooks.OnRetrieve(len(r.Articles), r.Fallback)
	}
	return r, nil
}

type callResult[T any] struct {
	out T
	err error
}

// callBackend runs fn under the per-call timeout. The call runs on its own
// goroutine so a backend that ignores ctx cannot stall the run.
func callBackend[T any](ctx context.Context, o *Orchestrator, op string, spent *time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "triage."+op)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.backendTimeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	started := time.Now()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				done <- callResult[T]{out: zero, err: fmt.Errorf("backend panic: %v", p)}
			}
		}()
		out, err := fn(callCtx)
		done <- callResult[T]{out: out, err: err}
	}()

	var res callResult[T]
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}
	elapsed := time.Since(started)
	*spent += elapsed

	if res.err != nil {
		res.err = backendError(ctx, op, res.err)
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}
	if o.hooks.OnBackendCall != nil {
		o.hooks.OnBackendCall(op, elapsed.Seconds(), res.err)
	}
	return res.out, res.err
}

func backendError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrBackendTimeout), errors.Is(err, ErrBackendUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, ErrBackendTimeout)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrBackendUnavailable, err)
	}
}

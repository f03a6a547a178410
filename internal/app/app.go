// Package app assembles the triage service from configuration. The HTTP
// server and the triagectl CLI share this wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/llm"
	"github.com/spec-kit/ticket-triage/internal/notify"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/persistence"
	"github.com/spec-kit/ticket-triage/internal/repository"
	"github.com/spec-kit/ticket-triage/internal/repository/memory"
	"github.com/spec-kit/ticket-triage/internal/repository/sqlite"
	"github.com/spec-kit/ticket-triage/internal/service"
	"github.com/spec-kit/ticket-triage/internal/triage"
	"github.com/spec-kit/ticket-triage/internal/worker"
)

// Options selects which parts of the runtime New starts.
type Options struct {
	// Background starts the detached triage pool, the SLA sweeper and
	// notifications. The CLI leaves it off and triages synchronously.
	Background bool
}

// Stores groups the repositories behind every service.
type Stores struct {
	Tickets       repository.TicketRepository
	Messages      repository.TicketMessageRepository
	Suggestions   repository.SuggestionRepository
	Users         repository.UserRepository
	Articles      repository.ArticleRepository
	Audit         repository.AuditRepository
	RuntimeConfig repository.RuntimeConfigRepository
}

// App holds the assembled components.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry

	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	KBStore  *sqlite.ArticleStore

	Stores       Stores
	Dispatcher   events.Dispatcher
	Recorder     *triage.Recorder
	Orchestrator *triage.Orchestrator
	Pool         *worker.TriagePool
	Sweeper      *worker.SLASweeper

	Auth          *service.AuthService
	Tickets       *service.TicketService
	KB            *service.KBService
	RuntimeConfig *service.ConfigService
	Notifications *service.NotificationService

	HTTPMetrics *observability.Metrics

	closers []func(context.Context) error
}

// New connects storage and builds every service. Close releases what New
// opened, also when New fails halfway.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   prometheus.NewRegistry(),
		Dispatcher: events.NewInMemoryDispatcher(),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.HTTPMetrics = observability.NewMetrics(a.Registry)

	shutdownTracing, err := observability.NewTracerProvider(ctx, cfg.App, cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	backend, err := NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	guard, err := a.guard()
	if err != nil {
		return nil, err
	}

	metrics := triage.NewMetrics(a.Registry)
	a.Recorder = triage.NewRecorder(a.Stores.Audit, logger).WithFailureHook(metrics.AuditFailureHook())
	a.Orchestrator = triage.NewOrchestrator(triage.Dependencies{
		Tickets:        a.Stores.Tickets,
		Suggestions:    a.Stores.Suggestions,
		Messages:       a.Stores.Messages,
		Config:         a.Stores.RuntimeConfig,
		Backend:        backend,
		Retriever:      triage.NewRetriever(a.Stores.Articles, cfg.Triage.RetrievalLimit),
		Audit:          a.Recorder,
		Guard:          guard,
		Hooks:          triage.MergeHooks(metrics.Hooks(), worker.OutcomeEvents(a.Dispatcher, logger)),
		Logger:         logger,
		BackendTimeout: cfg.Backend.Timeout(),
	})
	logger.Info("triage backend selected",
		zap.String("provider", backend.Info().Provider),
		zap.String("model", backend.Info().Model))

	a.Auth = service.NewAuthService(cfg.Auth, service.AuthDependencies{UserRepo: a.Stores.Users})
	a.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:  a.Stores.Tickets,
		MessageRepo: a.Stores.Messages,
		UserRepo:    a.Stores.Users,
		Audit:       a.Recorder,
		Dispatcher:  a.Dispatcher,
		Logger:      logger,
	})
	a.KB = service.NewKBService(a.Stores.Articles)
	a.RuntimeConfig = service.NewConfigService(a.Stores.RuntimeConfig)

	if opts.Background {
		if err := a.startBackground(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// NewBackend selects the classification backend once at startup.
func NewBackend(cfg config.BackendConfig) (triage.Backend, error) {
	switch cfg.Kind {
	case config.BackendAnthropic:
		backend, err := llm.NewAnthropic(llm.Config{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			BaseURL:   cfg.AnthropicURL,
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic backend: %w", err)
		}
		return backend, nil
	case config.BackendOpenAI:
		backend, err := llm.NewOpenAI(llm.Config{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			BaseURL:   cfg.OpenAIURL,
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("openai backend: %w", err)
		}
		return backend, nil
	case config.BackendStub, "":
		return triage.NewStubBackend(), nil
	default:
		return nil, fmt.Errorf("unknown triage backend %q", cfg.Kind)
	}
}

// RuntimeDefaults seeds the runtime config row from the environment.
func RuntimeDefaults(cfg config.TriageConfig) domain.RuntimeConfig {
	return domain.RuntimeConfig{
		AutoCloseEnabled:    cfg.AutoCloseEnabled,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		SLAHours:            cfg.SLAHours,
	}
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	defaults := RuntimeDefaults(cfg.Triage)

	a.Redis = persistence.NewRedis(cfg.Redis, a.Logger)
	a.closers = append(a.closers, func(context.Context) error {
		a.Redis.Close()
		return nil
	})

	if cfg.Postgres.DSN == "" {
		a.Logger.Warn("POSTGRES_DSN not provided; using in-memory stores")
		a.Stores = Stores{
			Tickets:       memory.NewTicketStore(),
			Messages:      memory.NewMessageStore(),
			Suggestions:   memory.NewSuggestionStore(),
			Users:         memory.NewUserStore(),
			Articles:      memory.NewArticleStore(),
			Audit:         memory.NewAuditStore(),
			RuntimeConfig: memory.NewConfigStore(defaults),
		}
	} else {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, a.Logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.Postgres = pg
		a.closers = append(a.closers, func(context.Context) error {
			pg.Close()
			return nil
		})
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), a.Logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		ttl := time.Duration(cfg.Triage.ConfigCacheTTLSeconds) * time.Second
		a.Stores = Stores{
			Tickets:       repository.NewTicketRepository(pool),
			Messages:      repository.NewTicketMessageRepository(pool),
			Suggestions:   repository.NewSuggestionRepository(pool),
			Users:         repository.NewUserRepository(pool),
			Articles:      repository.NewArticleRepository(pool),
			Audit:         repository.NewAuditRepository(pool),
			RuntimeConfig: repository.NewCachedRuntimeConfigRepository(repository.NewRuntimeConfigRepository(pool, defaults), a.Redis.Client, ttl, a.Logger),
		}
	}

	switch cfg.KB.Store {
	case config.KBStoreSQLite:
		store, err := sqlite.Open(cfg.KB.SQLitePath)
		if err != nil {
			return fmt.Errorf("open knowledge base: %w", err)
		}
		a.KBStore = store
		a.Stores.Articles = store
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
		a.Logger.Info("knowledge base on sqlite", zap.String("path", cfg.KB.SQLitePath))
	case config.KBStoreMemory:
		a.Stores.Articles = memory.NewArticleStore()
	}
	return nil
}

func (a *App) guard() (triage.Guard, error) {
	switch a.Config.Triage.Guard {
	case config.GuardNone:
		return nil, nil
	case config.GuardRedis:
		if a.Redis == nil || a.Redis.Client == nil {
			return nil, errors.New("redis guard requires a redis client")
		}
		ttl := time.Duration(a.Config.Triage.GuardTTLSeconds) * time.Second
		return triage.NewRedisGuard(a.Redis.Client, ttl, a.Logger), nil
	default:
		return triage.NewLocalGuard(), nil
	}
}

func (a *App) startBackground(ctx context.Context) error {
	cfg := a.Config

	notifier, err := a.notifier()
	if err != nil {
		return err
	}
	a.Notifications = service.NewNotificationService(a.Dispatcher, notifier, a.Stores.Tickets, a.Logger)
	worker.StartNotificationWorker(a.Notifications, a.Logger)

	a.Pool = worker.NewTriagePool(a.Orchestrator, worker.PoolConfig{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
		RunTimeout:  cfg.Worker.RunTimeout(),
	}, a.Logger, worker.NewPoolMetrics(a.Registry))
	a.closers = append(a.closers, a.Pool.Shutdown)
	worker.StartTriageWorker(a.Dispatcher, a.Pool, a.Logger)

	a.Sweeper = worker.NewSLASweeper(worker.SLADependencies{
		Tickets:    a.Stores.Tickets,
		Audit:      a.Stores.Audit,
		Recorder:   a.Recorder,
		Config:     a.Stores.RuntimeConfig,
		Dispatcher: a.Dispatcher,
		Logger:     a.Logger,
	})
	if err := a.Sweeper.Start(ctx, cfg.Triage.SLASweepSchedule); err != nil {
		return err
	}
	a.closers = append(a.closers, func(ctx context.Context) error {
		a.Sweeper.Stop(ctx)
		return nil
	})
	return nil
}

func (a *App) notifier() (notify.Notifier, error) {
	n := a.Config.Notification
	if !n.Enabled() {
		a.Logger.Info("discord not configured; notices are logged")
		return notify.LogNotifier{Logger: a.Logger}, nil
	}
	discord, err := notify.NewDiscordNotifier(n.DiscordBotToken, n.DiscordChannelID)
	if err != nil {
		return nil, fmt.Errorf("discord notifier: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error {
		discord.Close()
		return nil
	})
	return discord, nil
}

// Close stops background work and releases storage in reverse start order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

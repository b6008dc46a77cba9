package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Encyclopedia/internal/backoff"
	"Encyclopedia/internal/config"
	"Encyclopedia/internal/domain"
	"Encyclopedia/internal/infrastructure/authz"
	"Encyclopedia/internal/infrastructure/cache"
	"Encyclopedia/internal/infrastructure/llm"
	"Encyclopedia/internal/infrastructure/markup"
	"Encyclopedia/internal/infrastructure/media"
	"Encyclopedia/internal/infrastructure/metrics"
	"Encyclopedia/internal/infrastructure/ml"
	"Encyclopedia/internal/infrastructure/scheduler"
	"Encyclopedia/internal/infrastructure/storage"
	"Encyclopedia/internal/infrastructure/telegram"
	"Encyclopedia/internal/logging"
	"Encyclopedia/internal/ports"
	"Encyclopedia/internal/transport/httpapi"
	"Encyclopedia/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	server    *http.Server
	scheduler *usecase.Scheduler
	closers   []func() error
}

// New builds every adapter named in cfg. Optional integrations (redis, s3,
// telegram, ml) are skipped when their section is empty.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	repo, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authorizer, err := authz.NewCasbinAuthorizer(domain.Permissions, baseLogger.With("component", "authz"))
	if err != nil {
		a.Close()
		return nil, err
	}
	inspector := markup.NewInspector()

	deps := usecase.Deps{
		Repository: repo,
		Inspector:  inspector,
		Authorizer: authorizer,
		Metrics:    metrics.NewPrometheus(registry),
		Logger:     baseLogger.With("component", "usecase"),
	}
	a.wireOptional(ctx, &deps)

	versions := usecase.NewVersionStore(deps)
	slugs := usecase.NewSlugResolver(deps)
	articles := usecase.NewArticles(deps, versions, slugs)
	moderation := usecase.NewModeration(deps, versions)

	var orchestrator *usecase.Orchestrator
	if generator := a.generator(); generator != nil {
		policy := backoff.Default().WithAttempts(cfg.Generation.MaxRetriesPerItem)
		if cfg.Generation.RetryDelay > 0 {
			policy.Delay = cfg.Generation.RetryDelay
		}
		if cfg.Generation.FailureDelay > 0 {
			policy.FailureDelay = cfg.Generation.FailureDelay
		}
		genDeps := deps
		genDeps.Logger = baseLogger.With("component", "generation")
		orchestrator = usecase.NewOrchestrator(genDeps, articles, generator, policy)
		a.scheduler = usecase.NewScheduler(
			scheduler.NewCronScheduler(cfg.Scheduler.Location()),
			orchestrator,
			batchJobs(cfg),
			baseLogger.With("component", "scheduler"),
		)
	}

	if cfg.Auth.JWTSecret == "" {
		baseLogger.Warn("auth.jwtSecret is empty; authenticated routes will reject every request")
	}

	router := httpapi.NewRouter(httpapi.Handlers{
		Articles:       articles,
		Versions:       versions,
		Moderation:     moderation,
		Generation:     orchestrator,
		Renderer:       inspector,
		Auth:           httpapi.TokenVerifier{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.Issuer},
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         baseLogger.With("component", "http"),
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	})

	a.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.Repository, error) {
	db := a.cfg.Database
	if db.Driver == "memory" {
		a.logger.Warn("using in-memory store; data is lost on exit")
		return storage.NewMemory(), nil
	}

	store, err := storage.Open(db.Driver, db.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	if err := store.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ping %s: %w", db.Driver, err)
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("database ready", "driver", db.Driver, "migrations_applied", applied)
	return store, nil
}

// wireOptional attaches the integrations that are configured. A failing
// integration is logged and left out rather than stopping the service.
func (a *Application) wireOptional(ctx context.Context, deps *usecase.Deps) {
	cfg := a.cfg

	if cfg.Redis.Addr != "" {
		slugCache, err := cache.Connect(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			a.logger.Warn("slug cache disabled", "error", err)
		} else {
			deps.SlugCache = slugCache
			a.closers = append(a.closers, slugCache.Close)
		}
	}

	if cfg.S3.Bucket != "" {
		images, err := media.NewS3ImageStore(ctx, media.Config(cfg.S3))
		if err != nil {
			a.logger.Warn("image uploads disabled", "error", err)
		} else {
			deps.Images = images
		}
	}

	if cfg.Notifications.Telegram.BotToken != "" {
		notifier, err := telegram.NewNotifier(cfg.Notifications.Telegram)
		if err != nil {
			a.logger.Warn("telegram notifications disabled", "error", err)
		} else {
			deps.Notifier = notifier
		}
	}

	if cfg.ML.InferenceURL != "" {
		deps.Classifier = ml.NewClient(cfg.ML.InferenceURL, cfg.ML.APIKey)
	}
}

// generator registers every configured backend and returns the selected one.
func (a *Application) generator() ports.ContentGenerator {
	registry := llm.NewRegistry()
	if a.cfg.ChatGPT.APIKey != "" {
		registry.Register(llm.NewChatGPTClient(a.cfg.ChatGPT))
	}
	if a.cfg.Ollama.Model != "" {
		client, err := llm.NewOllamaClient(a.cfg.Ollama, nil)
		if err != nil {
			a.logger.Warn("ollama backend disabled", "error", err)
		} else {
			registry.Register(client)
		}
	}

	generator, err := registry.Resolve(a.cfg.Generation.Backend)
	if err != nil {
		a.logger.Warn("generation disabled", "backend", a.cfg.Generation.Backend, "available", registry.Names(), "error", err)
		return nil
	}
	return generator
}

func batchJobs(cfg config.Config) []usecase.BatchJob {
	jobs := make([]usecase.BatchJob, 0, len(cfg.Scheduler.Jobs))
	for _, job := range cfg.Scheduler.Jobs {
		requester := domain.Actor{ID: job.RequesterID, Name: job.RequesterName, Role: domain.RoleAuthor}
		if requester.ID == "" {
			requester.ID = "scheduler"
		}
		if requester.Name == "" {
			requester.Name = "Scheduled generation"
		}

		minWords, maxWords := job.MinWords, job.MaxWords
		if minWords == 0 && maxWords == 0 {
			minWords, maxWords = cfg.Generation.MinWords, cfg.Generation.MaxWords
		}
		retries := job.MaxRetriesPerItem
		if retries == 0 {
			retries = cfg.Generation.MaxRetriesPerItem
		}

		jobs = append(jobs, usecase.BatchJob{
			Name: job.Name,
			Spec: job.Cron,
			Request: usecase.BatchRequest{
				Topics:            job.Topics,
				Count:             job.Count,
				MinWords:          minWords,
				MaxWords:          maxWords,
				MaxRetriesPerItem: retries,
				Requester:         requester,
			},
		})
	}
	return jobs
}

// Run serves HTTP and the batch schedule until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("application stopped")
	return nil
}

// Close releases store and cache connections.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", "error", err)
		}
	}
	a.closers = nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/modules/notifier"
	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/dispatch"
	"github.com/dmitrymomot/notifykit/pkg/idempotency"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/ratelimit"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/templates"
)

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.Env, cfg.ServiceName))
	logger.SetAsDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	store := notifier.NewPostgresStorage(pool)
	queueStorage := dispatch.NewPostgresStorage(pool)

	guard, err := idempotency.NewGuard(
		idempotency.NewRedisCache(redisClient),
		notifier.GuardStore(store),
		idempotency.WithLogger(log),
	)
	if err != nil {
		return err
	}

	enqueuer, err := dispatch.NewEnqueuer(queueStorage)
	if err != nil {
		return err
	}

	svc, err := notifier.NewService(store, store, guard, enqueuer, log)
	if err != nil {
		return err
	}

	registry := buildRegistry(cfg, log)

	source, err := templateSource(cfg, pool)
	if err != nil {
		return err
	}

	processor, err := notifier.NewProcessor(store, store, registry, source,
		notifier.WithSendTimeout(cfg.Worker.SendTimeout),
		notifier.WithProcessorLogger(log),
	)
	if err != nil {
		return err
	}

	workerOpts := []dispatch.WorkerOption{
		dispatch.WithPullInterval(cfg.Worker.PullInterval),
		dispatch.WithLockTimeout(cfg.Worker.LockTimeout),
		dispatch.WithMaxConcurrentJobs(cfg.Worker.MaxConcurrentJobs),
		dispatch.WithBackoff(dispatch.Backoff{
			Base:       cfg.Worker.BackoffBase,
			Multiplier: cfg.Worker.BackoffMultiplier,
		}),
		dispatch.WithWorkerLogger(log),
	}
	if cfg.RateLimitEnabled {
		limiter, err := ratelimit.NewBucket(ratelimit.NewMemoryStore(), cfg.rateLimitConfig())
		if err != nil {
			return err
		}
		workerOpts = append(workerOpts, dispatch.WithRateLimiter(limiter))
	}

	worker, err := dispatch.NewWorker(queueStorage, processor.Process, workerOpts...)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Mount("/", notifier.Router(notifier.RouterOptions{
		Service: svc,
		Stats:   queueStorage,
		Healthchecks: map[string]notifier.Healthcheck{
			"postgres": pg.Healthcheck(pool),
			"redis":    redis.Healthcheck(redisClient),
		},
	}))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(worker.Run(gctx))

	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildRegistry wires the enabled delivery channels. A channel left
// disabled is served by the dev sender, which logs instead of delivering.
func buildRegistry(cfg appConfig, log *slog.Logger) *channel.Registry {
	channels := make([]channel.Channel, 0, 3)

	if cfg.EmailEnabled {
		email, err := channel.NewEmailChannel(cfg.Email)
		if err != nil {
			log.Error("email channel misconfigured, using dev sender", slog.Any("error", err))
			channels = append(channels, channel.NewDevChannel("email", log))
		} else {
			channels = append(channels, email)
		}
	} else {
		channels = append(channels, channel.NewDevChannel("email", log))
	}

	if cfg.SMSEnabled {
		sms, err := channel.NewSMSChannel(cfg.SMS)
		if err != nil {
			log.Error("sms channel misconfigured, using dev sender", slog.Any("error", err))
			channels = append(channels, channel.NewDevChannel("sms", log))
		} else {
			channels = append(channels, sms)
		}
	} else {
		channels = append(channels, channel.NewDevChannel("sms", log))
	}

	if cfg.PushEnabled {
		push, err := channel.NewPushChannel(cfg.Push)
		if err != nil {
			log.Error("push channel misconfigured, using dev sender", slog.Any("error", err))
			channels = append(channels, channel.NewDevChannel("push", log))
		} else {
			channels = append(channels, push)
		}
	} else {
		channels = append(channels, channel.NewDevChannel("push", log))
	}

	return channel.NewRegistry(channels...)
}

// templateSource picks the YAML catalog when configured, the database
// otherwise, and puts an LRU cache in front of either.
func templateSource(cfg appConfig, pool *pgxpool.Pool) (templates.Source, error) {
	var (
		source templates.Source
		err    error
	)
	if cfg.TemplatesFile != "" {
		source, err = templates.NewYAMLSource(cfg.TemplatesFile)
	} else {
		source, err = templates.NewPGSource(pool)
	}
	if err != nil {
		return nil, err
	}
	return templates.NewCachedSource(source, cfg.TemplateCacheSize, cfg.TemplateCacheTTL), nil
}

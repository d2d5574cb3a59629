package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go/jetstream"

	nvhttp "github.com/Strob0t/NoteVault/internal/adapter/http"
	"github.com/Strob0t/NoteVault/internal/adapter/memory"
	nvnats "github.com/Strob0t/NoteVault/internal/adapter/nats"
	"github.com/Strob0t/NoteVault/internal/adapter/natskv"
	nvotel "github.com/Strob0t/NoteVault/internal/adapter/otel"
	"github.com/Strob0t/NoteVault/internal/adapter/postgres"
	nvredis "github.com/Strob0t/NoteVault/internal/adapter/redis"
	"github.com/Strob0t/NoteVault/internal/adapter/ristretto"
	"github.com/Strob0t/NoteVault/internal/adapter/tiered"
	"github.com/Strob0t/NoteVault/internal/config"
	"github.com/Strob0t/NoteVault/internal/hashing"
	"github.com/Strob0t/NoteVault/internal/logger"
	"github.com/Strob0t/NoteVault/internal/middleware"
	"github.com/Strob0t/NoteVault/internal/port/cache"
	"github.com/Strob0t/NoteVault/internal/port/database"
	"github.com/Strob0t/NoteVault/internal/port/messagequeue"
	"github.com/Strob0t/NoteVault/internal/resilience"
	"github.com/Strob0t/NoteVault/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	holder := config.NewHolder(cfg, cfgPath)

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"version", version,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"log_level", cfg.Logging.Level,
		"nats", cfg.NATS.URL != "",
		"redis", cfg.Redis.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := nvotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(flushCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := nvotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	var statsCache cache.Cache = l1

	var (
		queue         messagequeue.Queue
		idempotencyKV jetstream.KeyValue
	)
	if cfg.NATS.URL != "" {
		q, err := nvnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		queue = q

		idempotencyKV, err = q.KeyValue(ctx, cfg.NATS.IdempotencyBucket, cfg.NATS.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("idempotency bucket: %w", err)
		}
		cacheKV, err := q.KeyValue(ctx, cfg.NATS.CacheBucket, cfg.Cache.StatsTTL)
		if err != nil {
			return fmt.Errorf("cache bucket: %w", err)
		}
		statsCache = tiered.New(l1, natskv.New(cacheKV), cfg.Cache.StatsTTL)
		slog.Info("nats connected", "stream", cfg.NATS.Stream)
	}

	// --- Services ---

	hasher := hashing.NewPool(cfg.Auth.HashConcurrency, cfg.Auth.BcryptCost)
	events := service.NewEventPublisher(queue)
	sessions := service.NewSessionIssuer(&cfg.Auth)
	stats := service.NewStatsService(store, statsCache, cfg.Cache.StatsTTL)
	quotaSvc := service.NewQuotaService(store)
	authSvc := service.NewAuthService(store, sessions, events, hasher)
	noteSvc := service.NewNoteService(store, quotaSvc, stats, events)
	subSvc := service.NewSubscriptionService(store, quotaSvc, stats, events)
	tenantSvc := service.NewTenantService(store, quotaSvc)

	authSvc.SetObserver(metrics)
	quotaSvc.SetObserver(metrics)
	subSvc.SetObserver(metrics)

	if queue != nil {
		cancelStats, err := stats.Subscribe(ctx, queue)
		if err != nil {
			return fmt.Errorf("stats subscriber: %w", err)
		}
		defer cancelStats()
	}

	if cfg.Storage.Driver == "memory" {
		slog.Warn("memory storage: seeding demo tenants, data is lost on exit")
		if err := seedDemo(ctx, tenantSvc, authSvc); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	// --- Rate limiting ---

	var loginLimiter middleware.WindowLimiter
	var redisWindow *nvredis.Window
	if cfg.Redis.URL != "" {
		client, err := nvredis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = client.Close() }()
		redisWindow = nvredis.NewWindow(client, cfg.Rate.LoginAttempts, cfg.Rate.LoginWindow)
		loginLimiter = redisWindow
	} else {
		mem := middleware.NewMemoryWindow(cfg.Rate.LoginAttempts, cfg.Rate.LoginWindow)
		defer mem.StartCleanup(cfg.Rate.CleanupInterval)()
		loginLimiter = mem
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	defer rateLimiter.StartCleanup(cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)()

	// --- HTTP ---

	handlers := &nvhttp.Handlers{
		Auth:          authSvc,
		Notes:         noteSvc,
		Subscriptions: subSvc,
		Tenants:       tenantSvc,
		Quota:         quotaSvc,
		Checks:        readinessChecks(store, queue, events, redisWindow),
		BodyLimit:     cfg.Server.BodyLimit,
		Debug:         cfg.Server.Debug,
		Version:       version,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(nvhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(nvhttp.SecurityHeaders)
	r.Use(nvhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(nvotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(rateLimiter.Handler)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	nvhttp.MountRoutes(r, handlers, nvhttp.RouteDeps{
		Authn:         authSvc,
		LoginLimiter:  loginLimiter,
		IdempotencyKV: idempotencyKV,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go watchReload(ctx, holder, rateLimiter)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured database.Store and its close function.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		return memory.NewStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	slog.Info("postgres connected", "max_conns", cfg.Postgres.MaxConns)

	applied, err := postgres.RunMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied", "count", applied)

	return postgres.NewStore(pool), pool.Close, nil
}

// readinessChecks lists the dependencies probed by GET /health/ready. Only
// the store is required; the broker and limiter backends degrade gracefully.
func readinessChecks(store database.Store, queue messagequeue.Queue, events *service.EventPublisher, redisWindow *nvredis.Window) []nvhttp.ReadinessCheck {
	checks := []nvhttp.ReadinessCheck{
		{Name: "store", Required: true, Check: store.Ping},
	}
	if queue != nil {
		checks = append(checks,
			nvhttp.ReadinessCheck{Name: "nats", Check: func(context.Context) error {
				if !queue.IsConnected() {
					return errors.New("disconnected")
				}
				return nil
			}},
			nvhttp.ReadinessCheck{Name: "events", Check: func(context.Context) error {
				if state := events.BreakerState(); state != resilience.StateClosed {
					return fmt.Errorf("publisher circuit %s", state)
				}
				return nil
			}},
		)
	}
	if redisWindow != nil {
		checks = append(checks, nvhttp.ReadinessCheck{Name: "redis", Check: redisWindow.Ping})
	}
	return checks
}

// watchReload re-reads the config file on SIGHUP and applies the settings
// that can change at runtime: log level and the global rate limit.
func watchReload(ctx context.Context, holder *config.Holder, rl *middleware.RateLimiter) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := holder.Reload(); err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			cfg := holder.Get()
			logger.SetLevel(cfg.Logging.Level)
			rl.SetLimits(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
			slog.Info("config reloaded",
				"log_level", cfg.Logging.Level,
				"rate_rps", cfg.Rate.RequestsPerSecond,
				"rate_burst", cfg.Rate.Burst,
			)
		}
	}
}

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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"ajira/internal/audit"
	httpapi "ajira/internal/http"
	"ajira/internal/platform/config"
	"ajira/internal/platform/httpserver"
	"ajira/internal/platform/logger"
	"ajira/internal/platform/metrics"
	platredis "ajira/internal/platform/redis"
	"ajira/internal/store"
	"ajira/internal/sync/aggregate"
	"ajira/internal/sync/degrade"
	"ajira/internal/sync/mutate"
	"ajira/internal/sync/subscribe"
	"ajira/internal/verify"
)

// main wires the sync core: store session, degradation controller,
// subscription manager, mutation orchestrator, metrics engine and audit
// trail. Business logic lives in the internal packages.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()
	mx := metrics.New()

	session := store.NewSession(dialFunc(cfg, log), log)
	ctrl := degrade.New(session,
		degrade.WithProbeTimeout(cfg.ProbeTimeout),
		degrade.WithLogger(log),
		degrade.WithMetrics(mx),
	)
	manager := subscribe.NewManager(session, ctrl,
		subscribe.WithLogger(log),
		subscribe.WithMetrics(mx),
	)
	_ = manager // handed to the presentation layer embedding this binary

	engine := aggregate.New(session,
		aggregate.WithLogger(log),
		aggregate.WithMetrics(mx),
	)

	auditor := audit.NewPublisher(256, log)
	var sink audit.Store
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaStore(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka audit sink unavailable, using in-memory store", "error", err)
			sink = audit.NewInMemoryStore()
		} else {
			defer kafkaSink.Close()
			sink = kafkaSink
		}
	} else {
		sink = audit.NewInMemoryStore()
	}
	worker := audit.NewWorker(sink, auditor.Inbox(), log)

	var verifier verify.Client
	if cfg.VerifierURL != "" {
		verifier = verify.NewHTTPClient(cfg.VerifierURL, cfg.VerifierKey)
		if redisClient, err := platredis.New(cfg.RedisURL); err != nil {
			log.Warn("verification cache disabled", "error", err)
		} else if redisClient != nil {
			defer redisClient.Close()
			verifier = verify.NewCachedClient(verifier, redisClient.Client, verify.DefaultCacheTTL, log)
		}
	}

	orchestratorOpts := []mutate.Option{
		mutate.WithLogger(log),
		mutate.WithMetrics(mx),
		mutate.WithAudit(auditor),
		mutate.WithRetryUnit(cfg.RetryUnit),
		mutate.WithProbeTimeout(cfg.ProbeTimeout),
	}
	if verifier != nil {
		orchestratorOpts = append(orchestratorOpts, mutate.WithVerifier(verifier))
	}
	orchestrator := mutate.New(session, engine, orchestratorOpts...)
	_ = orchestrator

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("metrics engine stopped", "error", err)
		}
	}()
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(httpapi.NewHandler(session, ctrl)))
	log.Info("starting ajira sync core", "addr", cfg.Addr, "store", cfg.StoreBackend)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// dialFunc builds the lazy store dialer for the configured backend. The
// session calls it on first use and shares the result process-wide.
func dialFunc(cfg config.Config, log *slog.Logger) store.DialFunc {
	switch cfg.StoreBackend {
	case "postgres":
		return func(ctx context.Context) (store.Client, error) {
			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return nil, err
			}
			if err := pool.Ping(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			s := store.NewPostgresStore(pool, log)
			if err := s.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			return s, nil
		}
	case "supabase":
		return func(context.Context) (store.Client, error) {
			return store.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, log,
				store.WithPollInterval(cfg.PollInterval))
		}
	default:
		mem := store.NewMemoryStore()
		return func(context.Context) (store.Client, error) {
			return mem, nil
		}
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/billbatista/acasinha-events/api"
	"github.com/billbatista/acasinha-events/config"
	"github.com/billbatista/acasinha-events/currency"
	"github.com/billbatista/acasinha-events/eventlogger"
	"github.com/billbatista/acasinha-events/ledger"
	"github.com/billbatista/acasinha-events/lock"
	"github.com/billbatista/acasinha-events/migrations"
	"github.com/billbatista/acasinha-events/session"
	"github.com/billbatista/acasinha-events/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// rateReference is the currency the rate feed is rebased onto.
const rateReference = "CHF"

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	defer db.Close()
	if err = db.PingContext(ctx); err != nil {
		printErrorAndExit("pinging database", err)
	}
	if err = migrations.Up(db); err != nil {
		printErrorAndExit("migrating database", err)
	}

	registry := currency.NewRepository(db)
	seeded, err := currency.Seed(ctx, registry, false)
	if err != nil {
		printErrorAndExit("seeding currencies", err)
	}
	slog.Info("currencies seeded", "count", seeded)

	sinks := eventlogger.MultiSink{eventlogger.NewSqlEventLogger(db)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := eventlogger.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	worker := eventlogger.NewWorker(sinks, cfg.EventBuffer)
	worker.Start()
	defer worker.Shutdown()

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			printErrorAndExit("pinging redis", err)
		}
		locker = lock.NewRedisLocker(rdb, 0)
	}

	svc := ledger.NewService(ledger.NewRepository(db), registry, locker, worker)
	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db, cfg.SessionTTL)

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType("health_request"),
			eventlogger.WithData(map[string]string{
				"message":     "ok",
				"http_status": strconv.Itoa(http.StatusOK),
			}),
		))
		w.Write([]byte("ok"))
	})
	router.Mount("/api", api.New(svc, userRepo, sessionRepo, registry, worker, cfg.RegistryAdmin).Routes())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("server shutting down")
		return server.Shutdown(shutdownCtx)
	})
	if cfg.RateFeedURL != "" {
		syncer := currency.NewSyncer(registry, currency.NewHTTPFeed(cfg.RateFeedURL, rateReference), cfg.RateFeedInterval, cfg.RateFeedRPS)
		g.Go(func() error {
			return syncer.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "error", err)
	}
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}

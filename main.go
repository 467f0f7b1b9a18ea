package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EmpoweredVote/lots-backend/internal/cache"
	"github.com/EmpoweredVote/lots-backend/internal/config"
	"github.com/EmpoweredVote/lots-backend/internal/db"
	"github.com/EmpoweredVote/lots-backend/internal/logger"
	"github.com/EmpoweredVote/lots-backend/internal/lots"
	"github.com/EmpoweredVote/lots-backend/internal/metrics"
	"github.com/EmpoweredVote/lots-backend/internal/middleware"
	"github.com/EmpoweredVote/lots-backend/internal/owners"
	"github.com/EmpoweredVote/lots-backend/internal/parcels"
	"github.com/EmpoweredVote/lots-backend/internal/tracing"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	conn, err := db.Connect(cfg, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn, owners.Migrate, lots.Migrate, parcels.Migrate); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	shutdownTracing, err := tracing.Setup(cfg.TraceStdout, log)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var exports lots.ExportCache = cache.NewMemory()
	if cfg.ExportCacheTTL <= 0 {
		exports = cache.Noop{}
	} else {
		rc, err := cache.OpenRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("redis unavailable, caching exports in memory", "error", err)
		} else if rc != nil {
			defer rc.Close()
			exports = rc
		}
	}

	svc := lots.NewService(lots.Deps{
		DB:           conn,
		Log:          log,
		Hooks:        metrics.LotHooks{},
		Owners:       owners.NewResolver(conn, log),
		Parcels:      parcels.NewStore(conn, log),
		DefaultState: cfg.DefaultState,
	})
	handler := lots.NewHandler(svc, exports, metrics.ExportCacheObserver{}, lots.HandlerConfig{
		SiteName:    cfg.SiteName,
		NearbyMiles: cfg.NearbyMiles,
	}, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/lots", lots.SetupRoutes(handler, middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

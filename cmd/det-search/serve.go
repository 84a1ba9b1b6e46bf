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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/filterjob"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher"
	searchhandler "github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/ratelimit"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the search and filter-run HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// routes holds what newRouter mounts.
type routes struct {
	search  *searchhandler.Handler
	filters *filterjob.Handler
	checker *health.Checker
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter
	server  config.ServerConfig
}

func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	if rt.metrics != nil {
		r.Use(middleware.Metrics(rt.metrics))
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	r.Get("/health/live", rt.checker.LiveHandler())
	r.Get("/health/ready", rt.checker.ReadyHandler())
	r.Route("/api/v1", func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter))
		}
		r.Use(middleware.Timeout(rt.server.WriteTimeout))
		rt.search.Routes(r)
		rt.filters.Routes(r)
	})
	return r
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	m := metrics.New()
	checker := health.NewChecker()

	store, db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db))
	}
	queryCache, redisClient, closeCache := a.openCache()
	defer closeCache()
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient))
	}

	requests := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FilterRequests)
	defer requests.Close()

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		defer limiter.Stop()
	}

	handler := newRouter(routes{
		search:  searchhandler.New(searcher.New(cfg.Indexer, m, queryCache), cfg.Search.Timeout),
		filters: filterjob.NewHandler(store, requests),
		checker: checker,
		metrics: m,
		limiter: limiter,
		server:  cfg.Server,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

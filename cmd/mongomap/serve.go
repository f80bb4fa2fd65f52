package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/metrics"
	searchrepo "github.com/kailas-cloud/mongomap/internal/repository/search"
	chiTransport "github.com/kailas-cloud/mongomap/internal/transport/chi"
	healthuc "github.com/kailas-cloud/mongomap/internal/usecase/health"
	searchuc "github.com/kailas-cloud/mongomap/internal/usecase/search"
	usageuc "github.com/kailas-cloud/mongomap/internal/usecase/usage"
	"github.com/kailas-cloud/mongomap/internal/version"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API",
		Long: `Run the admin HTTP API: collection and index administration, vector, text and hybrid
search, embedding usage, /health and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}
}

func runServe(ctx context.Context, flags *globalFlags) error {
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	cfg, logger := a.cfg, a.logger
	logger.Info("Starting mongomap API server", append(version.Fields(),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("database", cfg.Database.Name),
		zap.Bool("cache", cfg.Cache.Enabled()),
	)...)

	metrics.RegisterODMMetrics()
	metrics.RegisterEmbeddingMetrics()

	chain, err := buildEmbedding(ctx, &cfg, a.cache, logger)
	if err != nil {
		return err
	}

	searchSvc := searchuc.New(searchrepo.New(a.store), chain.query, logger)
	usageSvc := usageuc.New(chain.budgetReader())

	healthOpts := []healthuc.Option{}
	if a.cache != nil {
		healthOpts = append(healthOpts, healthuc.WithCache(a.cache))
	}
	if chain.health != nil {
		healthOpts = append(healthOpts, healthuc.WithEmbedding(chain.health))
	}
	healthSvc := healthuc.New(a.store, healthOpts...)

	server := chiTransport.NewServer(a.collections, a.indexes, searchSvc, usageSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/fer-emotion/internal/app"
	"github.com/Brownie44l1/fer-emotion/internal/config"
	"github.com/Brownie44l1/fer-emotion/internal/handlers"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
)

func main() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	log := logger.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "server stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}

	mm := metrics.NewManager()
	classifier, err := app.NewClassifier(ctx, cfg, logger.Named("classifier"), mm)
	if err != nil {
		return err
	}
	defer classifier.Close()

	h := handlers.NewHandler(classifier,
		handlers.WithLogger(logger.Named("http")),
		handlers.WithMetrics(mm),
		handlers.WithMaxUploadBytes(cfg.MaxUploadBytes))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting",
			logger.String("addr", cfg.Addr),
			logger.Any("classes", classifier.Metadata().Classes))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

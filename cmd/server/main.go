package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"codeassist/internal/alert"
	"codeassist/internal/app"
	"codeassist/internal/config"
	"codeassist/internal/server"
	"codeassist/internal/util"
	"codeassist/pkg/ai"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel, "codeassist")
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator, err := ai.NewTextGenerator(ctx, ai.Config{
		Provider: cfg.GenerationProvider,
		Model:    cfg.GenerationModel,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.ProviderAPIKey(),
		Timeout:  cfg.GenerationTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	if closer, ok := generator.(io.Closer); ok {
		defer closer.Close()
	}
	if cfg.ProviderAPIKey() == "" && cfg.GenerationProvider == ai.ProviderGemini {
		logger.Warn("gemini api key not set; generation requests will fail until GEMINI_API_KEY is provided")
	}

	alerter, err := alert.NewFailureAlerter(alert.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		Threshold: cfg.FailureAlertThreshold,
		Window:    cfg.FailureAlertWindow(),
	})
	if err != nil {
		return fmt.Errorf("init failure alerter: %w", err)
	}
	defer alerter.Close()

	appCore, err := app.New(app.Config{Generator: generator, Alerter: alerter})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer appCore.Wait()

	httpServer := server.New(server.Config{
		App:             appCore,
		MaxRequestBytes: cfg.MaxRequestBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout(cfg.GenerationTimeout()),
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening",
			"addr", addr,
			"provider", cfg.GenerationProvider,
			"model", cfg.GenerationModel,
			"failure_alerts", alerter != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// writeTimeout leaves room past the upstream timeout for writing the
// response. An unbounded upstream call gets an unbounded write.
func writeTimeout(generation time.Duration) time.Duration {
	if generation <= 0 {
		return 0
	}
	return generation + 15*time.Second
}

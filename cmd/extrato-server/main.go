package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"extrato/internal/cli"
	apphttp "extrato/internal/http"
	"extrato/internal/log"
	"extrato/internal/source"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	pipeline, err := cli.NewPipeline(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize pipeline", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(cfg, pipeline, source.NewFactory(logger), logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Starting extrato server",
			"port", cfg.Port,
			"max_upload_bytes", cfg.MaxUploadBytes,
			"rules", len(pipeline.Rules()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

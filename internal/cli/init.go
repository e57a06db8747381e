// Package cli provides common initialization utilities shared by
// cmd/extrato, cmd/extrato-server and cmd/extrato-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"extrato/internal/analysis"
	"extrato/internal/classifier"
	"extrato/internal/config"
	"extrato/internal/log"
)

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Format = format
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadRules returns the rules from path, or the built-in rules when path is
// empty.
func LoadRules(logger *log.Logger, path string) (classifier.Rules, error) {
	if path == "" {
		rules := classifier.DefaultRules()
		logger.Debug("Using built-in category rules", "rules", len(rules))
		return rules, nil
	}
	rules, err := classifier.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("load category rules %s: %w", path, err)
	}
	logger.Info("Loaded category rules", "path", path, "rules", len(rules))
	return rules, nil
}

// NewPipeline builds an analysis pipeline from the configuration.
func NewPipeline(logger *log.Logger, cfg *config.Config) (*analysis.Pipeline, error) {
	rules, err := LoadRules(logger, cfg.CategoryRulesFile)
	if err != nil {
		return nil, err
	}
	return analysis.New(rules, cfg.AnalysisOptions(), logger)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Command server runs the accounts HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/accounts/internal/app"
	"github.com/utafrali/accounts/internal/config"
	"github.com/utafrali/accounts/pkg/logger"
)

func main() {
	envFile := flag.String("env-file", ".env", "dotenv file to load before reading the environment; missing files are ignored")
	flag.Parse()

	if err := run(*envFile); err != nil {
		slog.Error("accounts service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting accounts service",
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.ServiceVersion),
		slog.Int("http_port", cfg.HTTPPort),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until ctx is canceled and shutdown has drained.
	if err := application.Run(ctx); err != nil {
		return err
	}

	log.Info("accounts service stopped")
	return nil
}

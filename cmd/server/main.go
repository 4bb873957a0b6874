package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-git-mirror/internal/app"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/pkg/config"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.New("info", "text").Fatal("failed to load configuration", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	log.With("port", cfg.Port).
		With("store_root", cfg.StoreRoot).
		With("persistence", cfg.PersistenceEnabled()).
		With("webhook_workers", cfg.WebhookWorkers).
		Infof("Starting %s", cfg.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Services ─────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", err)
	}
	defer a.Close()

	workers, cancelWorkers := context.WithCancel(context.Background())
	a.Webhooks.Start(workers)

	// ── Fiber App ────────────────────────────────────────────────────────
	server := a.HTTP()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("server shutdown failed", err)
		}
	}()

	// ── Start ────────────────────────────────────────────────────────────
	log.Infof("Fiber listening on %s", cfg.Address())
	if err := server.Listen(cfg.Address()); err != nil {
		log.Error("server failed", err)
	}

	cancelWorkers()
	a.Webhooks.Wait()
	log.Info("Server stopped")
}

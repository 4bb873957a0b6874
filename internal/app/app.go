package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/gofiber/fiber/v3/middleware/static"

	"github.com/arturoeanton/go-git-mirror/internal/adapter/store"
	"github.com/arturoeanton/go-git-mirror/internal/adapter/vcs"
	"github.com/arturoeanton/go-git-mirror/internal/handler"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/middleware"
	"github.com/arturoeanton/go-git-mirror/internal/port"
	"github.com/arturoeanton/go-git-mirror/internal/service"
	"github.com/arturoeanton/go-git-mirror/pkg/config"
)

const version = "1.0.0"

// App wires adapters and services together. Both the HTTP server and the
// CLI build one.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    port.Store
	Events   *service.MirrorEventBus
	Mirrors  *service.MirrorService
	Diffs    *service.DiffService
	Webhooks *service.WebhookProcessor
}

// New builds the application from cfg. With no DATABASE_URL the store only
// logs.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	var st port.Store
	if cfg.PersistenceEnabled() {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, audit logs and deliveries are only logged")
		st = store.NewLogStore(log)
	}
	return NewWithStore(cfg, log, vcs.NewGitProvider(cfg.GitBinary), st), nil
}

// NewWithStore builds the application around the given adapters.
func NewWithStore(cfg *config.Config, log *logger.Logger, git port.VCSProvider, st port.Store) *App {
	events := service.NewMirrorEventBus()
	mirrors := service.NewMirrorService(git, cfg.StoreRoot, cfg.SyncTimeout, events, log)
	diffs := service.NewDiffService(mirrors, git, cfg.DiffTimeout, log)
	webhooks := service.NewWebhookProcessor(mirrors, diffs, st, service.NewJobTracker(), service.WebhookOptions{
		Workers:   cfg.WebhookWorkers,
		AutoClone: cfg.WebhookAutoClone,
		Retention: cfg.JobRetention,
	}, log)

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Events:   events,
		Mirrors:  mirrors,
		Diffs:    diffs,
		Webhooks: webhooks,
	}
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// HTTP builds the fiber application with every route registered.
func (a *App) HTTP() *fiber.App {
	cfg := a.Config
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.SyncTimeout + cfg.DiffTimeout,
		BodyLimit:    25 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(a.Log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-GitHub-Event", "X-Gitee-Event"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	app.Use(middleware.AuditMiddleware(a.Store, a.Log))

	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": version,
		})
	})

	handler.NewWebhookHandler(a.Webhooks, a.Log).Register(app)

	api := app.Group("/api/v1")
	handler.NewRepoHandler(a.Mirrors, a.Events, a.Log).Register(api)
	handler.NewChangesHandler(a.Diffs).Register(api)
	handler.NewJobsHandler(a.Webhooks.Jobs(), a.Log).Register(api)
	handler.NewAuditHandler(a.Store, a.Store).Register(api)

	if info, err := os.Stat(cfg.FrontendDir); err == nil && info.IsDir() {
		app.Get("/*", static.New(cfg.FrontendDir))
	}

	return app
}

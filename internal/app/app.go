// Package app assembles the lessonbot runtime from configuration: storage,
// the upload machine, metrics and the Telegram handlers.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/lessonbot/core/bootstrap"
	corecmd "github.com/m3rciful/lessonbot/core/cmd"
	coredatabase "github.com/m3rciful/lessonbot/core/database"
	"github.com/m3rciful/lessonbot/core/logger"
	coretelegram "github.com/m3rciful/lessonbot/core/telegram"
	"github.com/m3rciful/lessonbot/core/telegram/middleware"
	"github.com/m3rciful/lessonbot/core/telegram/router"
	"github.com/m3rciful/lessonbot/core/telegram/sender"
	"github.com/m3rciful/lessonbot/internal/bot"
	"github.com/m3rciful/lessonbot/internal/config"
	"github.com/m3rciful/lessonbot/internal/library"
	"github.com/m3rciful/lessonbot/internal/metrics"
	"github.com/m3rciful/lessonbot/internal/store"
	"github.com/m3rciful/lessonbot/internal/upload"
)

// App is the assembled bot.
type App struct {
	cfg     *config.Config
	infra   *bootstrap.Result[library.Store]
	store   library.Store
	machine *upload.Machine
	metrics *metrics.Metrics
	bot     *bot.Bot
}

// LoadConfig adapts config.Load to the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap prepares infrastructure and wires every component.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	infra, err := bootstrap.Run(ctx, bootstrap.Options[library.Store]{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		OpenStorage: func(db *sqlx.DB) (library.Store, error) {
			return OpenStore(cfg.Database.Driver, db)
		},
		Seeders: []bootstrap.NamedSeeder[library.Store]{
			{Name: "admins", Seeder: AdminSeeder(cfg.Admins)},
		},
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, infra, infra.Storage), nil
}

// New wires components over an opened store. infra may be nil in tests.
func New(cfg *config.Config, infra *bootstrap.Result[library.Store], st library.Store) *App {
	m := metrics.New()
	machine := upload.New(st, upload.Config{
		IdleTimeout:     cfg.Upload.SessionIdleTimeout,
		SweepInterval:   cfg.Upload.SweepInterval,
		DefaultCategory: cfg.Upload.DefaultCategory,
	}, m)
	m.TrackActiveSessions(machine.ActiveSessions)
	return &App{
		cfg:     cfg,
		infra:   infra,
		store:   st,
		machine: machine,
		metrics: m,
		bot: bot.New(bot.Options{
			Store:   st,
			Machine: machine,
			Driver:  cfg.Database.Driver,
		}),
	}
}

// OpenStore selects the store implementation for driver.
func OpenStore(driver string, db *sqlx.DB) (library.Store, error) {
	switch driver {
	case coredatabase.DriverMemory:
		return store.NewMemoryStore(), nil
	case coredatabase.DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("app: postgres driver without a database handle")
		}
		return store.NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("app: unknown database driver %q", driver)
}

// AdminSeeder grants the admin flag to every configured id.
func AdminSeeder(ids []int64) bootstrap.Seeder[library.Store] {
	return bootstrap.SeederFunc[library.Store](func(ctx context.Context, st library.Store) error {
		for _, id := range ids {
			if err := st.SetAdmin(ctx, id, true); err != nil {
				return fmt.Errorf("grant admin %d: %w", id, err)
			}
		}
		logger.Info(ctx, logger.CompSeed, "seed.admins", slog.Int("count", len(ids)))
		return nil
	})
}

// TelegramRunOptions builds the registry, routes and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	var fallback router.Fallbacks = a.bot
	admin := middleware.AdminOptions{IsAdmin: a.store.IsAdmin, OnReject: a.bot.RejectAdmin}
	routes := router.CommandRoutes(reg, admin)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fallback.UnknownCallback()}))
	routes = append(routes, router.MessageRoutes(a.bot, reg, router.MessageOptions{
		UnknownText:  fallback.UnknownText(),
		UnknownMedia: fallback.UnknownMedia(),
		Admin:        admin,
	})...)

	mws := coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), coretelegram.MiddlewareOptions{
		OnLimited:   a.bot.RateLimited,
		RateExempt:  a.machine.InProgress,
		CountUpdate: a.metrics.UpdateReceived,
		SessionID:   a.machine.SessionID,
		Track:       a.bot.TrackUsers(),
	})

	return coretelegram.RunOptions{
		Config:            a.cfg.CoreConfig(),
		Registry:          reg,
		Middlewares:       mws,
		Routes:            routes,
		DispatcherOptions: sender.Options{OnFailure: a.metrics.SendFailed},
	}, nil
}

// BackgroundTasks returns the session janitor and the metrics endpoint when enabled.
func (a *App) BackgroundTasks() []corecmd.Task {
	var tasks []corecmd.Task
	if a.cfg.Upload.SessionIdleTimeout > 0 {
		tasks = append(tasks, corecmd.Task{Name: "upload.janitor", Run: a.machine.RunJanitor})
	}
	if a.cfg.Metrics.Listen != "" {
		listen := a.cfg.Metrics.Listen
		tasks = append(tasks, corecmd.Task{Name: "metrics", Run: func(ctx context.Context) error {
			return a.metrics.Serve(ctx, listen)
		}})
	}
	return tasks
}

// Close releases the database pool.
func (a *App) Close() error {
	return a.infra.Close()
}

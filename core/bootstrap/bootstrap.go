package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/lessonbot/core/config"
	coredatabase "github.com/m3rciful/lessonbot/core/database"
	"github.com/m3rciful/lessonbot/core/logger"
)

// Options control the startup pipeline for a bot whose storage has type S.
type Options[S any] struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error

	// OpenStorage builds the storage handed to seeders and returned in Result.
	// db is nil when the memory driver is selected.
	OpenStorage func(db *sqlx.DB) (S, error)
	Seeders     []NamedSeeder[S]
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result[S any] struct {
	DB      *sqlx.DB
	Storage S
}

// Close releases the database pool when one was opened.
func (r *Result[S]) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database, applies migrations,
// opens storage and runs seeders.
func Run[S any](ctx context.Context, opts Options[S]) (*Result[S], error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result[S]{}
	if opts.Database.Driver != coredatabase.DriverMemory {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.Migrate
		}
		if err := migrate(ctx, opts.Database); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	} else {
		logger.Warn(ctx, logger.CompDB, "db.connect",
			slog.String("status", "skip"),
			slog.String("driver", coredatabase.DriverMemory),
		)
	}

	if opts.OpenStorage != nil {
		storage, err := opts.OpenStorage(res.DB)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: open storage: %w", err)
		}
		res.Storage = storage
	}

	for _, s := range opts.Seeders {
		if s.Seeder == nil {
			continue
		}
		start := time.Now()
		if err := s.Seeder.Seed(ctx, res.Storage); err != nil {
			logger.Error(ctx, logger.CompSeed, "db.seed",
				slog.String("status", "fail"),
				slog.String("seeder", s.Name),
				logger.Err(err),
			)
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: seeder %s: %w", s.Name, err)
		}
		logger.Info(ctx, logger.CompSeed, "db.seed",
			slog.String("status", "ok"),
			slog.String("seeder", s.Name),
			slog.Duration("duration", logger.Took(start)),
		)
	}

	return res, nil
}

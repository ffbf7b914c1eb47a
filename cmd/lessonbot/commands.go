package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/m3rciful/lessonbot/core/buildinfo"
	corecmd "github.com/m3rciful/lessonbot/core/cmd"
	coredatabase "github.com/m3rciful/lessonbot/core/database"
	"github.com/m3rciful/lessonbot/core/logger"
	"github.com/m3rciful/lessonbot/internal/app"
	"github.com/m3rciful/lessonbot/internal/config"
	"github.com/m3rciful/lessonbot/internal/store"
)

func runBot(configPath string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	})
}

func buildRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(*configPath)
		},
	}
}

// loadDatabaseConfig reads the database section and starts the logger for
// one-shot commands.
func loadDatabaseConfig(configPath string) (*config.Config, error) {
	path, err := corecmd.ResolveConfigPath(configPath, configEnvVar, defaultConfigPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	if cfg.Database.Driver == coredatabase.DriverMemory {
		_ = logger.Shutdown()
		return nil, fmt.Errorf("database.driver is %q; this command needs postgres", cfg.Database.Driver)
	}
	return cfg, nil
}

func buildMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadDatabaseConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()
			return coredatabase.Migrate(cmd.Context(), cfg.Database)
		},
	}
}

func buildAdminCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke upload rights",
	}
	cmd.AddCommand(
		buildAdminSetCmd(configPath, "grant", true),
		buildAdminSetCmd(configPath, "revoke", false),
	)
	return cmd
}

func buildAdminSetCmd(configPath *string, verb string, admin bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <user_id>",
		Short: verb + " the admin flag for a Telegram user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			cfg, err := loadDatabaseConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			ctx := cmd.Context()
			db, err := coredatabase.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.NewPostgresStore(db).SetAdmin(ctx, userID, admin); err != nil {
				return err
			}
			logger.Info(ctx, logger.CompApp, "admin."+verb,
				slog.Int64("user_id", userID),
				slog.String("status", "ok"),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "user %d admin=%t\n", userID, admin)
			return nil
		},
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

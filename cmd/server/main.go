// Command server runs the dance competition entry service and its
// maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/DanceEntry/internal/config"
	"github.com/JonMunkholm/DanceEntry/internal/core"
	_ "github.com/JonMunkholm/DanceEntry/internal/core/sections" // Register all sections
	"github.com/JonMunkholm/DanceEntry/internal/database"
	"github.com/JonMunkholm/DanceEntry/internal/logging"
	"github.com/JonMunkholm/DanceEntry/internal/mail"
	"github.com/JonMunkholm/DanceEntry/internal/storage"
	"github.com/JonMunkholm/DanceEntry/internal/web"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. The root command serves when no
// subcommand is given.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "Dance competition entry service",
		Long: `Dance competition entry service.

Available subcommands:
  serve     - Run the HTTP server (default)
  migrate   - Apply, roll back or list schema migrations
  import    - Bulk-create entries from a CSV file
  token     - Mint a development access token
  template  - Print a CSV template`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before configuration")
	root.Flags().Bool("migrate", false, "Apply pending migrations before serving")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
	serve.Flags().Bool("migrate", false, "Apply pending migrations before serving")

	root.AddCommand(serve, newMigrateCommand(), newImportCommand(), newTokenCommand(), newTemplateCommand())
	return root
}

// loadEnv reads the env file named by --env-file. A missing file is not an
// error; values in the file override the process environment.
func loadEnv(cmd *cobra.Command) {
	path, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Overload(path); err != nil {
		slog.Debug("no env file loaded, using environment variables", "path", path)
	} else {
		slog.Debug("loaded env file", "path", path)
	}
}

// bootstrap loads configuration, sets up logging and connects to the
// database. The caller closes the pool.
func bootstrap(cmd *cobra.Command) (*config.Config, *pgxpool.Pool, error) {
	loadEnv(cmd)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.RingSize)

	pool, err := database.Connect(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to database", "name", database.Name(cfg.Database.URL))
	return cfg, pool, nil
}

// newService wires the object store and mailer into a core.Service.
func newService(cfg *config.Config, pool *pgxpool.Pool) (*core.Service, error) {
	store, err := storage.New(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	sender := mail.NewSender(cfg.Mail.FunctionURL, cfg.Mail.FunctionKey, cfg.Mail.From, cfg.Mail.Timeout)
	if !sender.Enabled() {
		slog.Warn("email function not configured, notifications are disabled")
	}
	return core.NewService(pool, cfg, store, sender), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, pool, err := bootstrap(cmd)
	if err != nil {
		slog.Error("startup failed", "error", err)
		return err
	}
	defer pool.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"timezone", cfg.App.Timezone,
	)

	ctx := cmd.Context()
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		n, err := database.Migrate(ctx, pool)
		if err != nil {
			slog.Error("migration failed", "error", err)
			return err
		}
		slog.Info("migrations applied", "count", n)
	}

	service, err := newService(cfg, pool)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		return err
	}
	if n, err := service.SeedTemplates(ctx); err != nil {
		slog.Warn("seeding notification templates failed", "error", err)
	} else if n > 0 {
		slog.Info("notification templates seeded", "count", n)
	}

	slog.Info("sections registered", "count", core.SectionCount())
	for _, info := range service.Sections() {
		slog.Debug("section", "key", info.Key, "order", info.Order, "required", info.RequiredForSubmit)
	}

	server := web.NewServer(cfg, service)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if limits := server.RateLimits(); limits != nil {
		go limits.Run(jobCtx, cfg.Rate.SweepInterval)
	}
	go service.StartMaintenanceScheduler(jobCtx, core.MaintenanceConfig{
		RetentionDays: cfg.Maintenance.LogRetentionDays,
		CheckInterval: cfg.Maintenance.CheckInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active uploads to complete (with timeout)
		limiter := service.UploadLimiter()
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		return err
	}
	<-done
	slog.Info("server stopped")
	return nil
}

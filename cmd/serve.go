package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/josephgoksu/deepagent/internal/config"
	"github.com/josephgoksu/deepagent/internal/integrity"
	"github.com/josephgoksu/deepagent/internal/logger"
	"github.com/josephgoksu/deepagent/internal/server"
	"github.com/josephgoksu/deepagent/internal/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides server.port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the plan integrity sweep",
	Long: `Serve the conversation, plan and notes API under /api/v1.

The integrity sweep runs on integrity.schedule and logs threads that hold
more than one active plan. Changing log.level in the config file takes
effect without a restart. SIGINT or SIGTERM shuts down gracefully.`,
	RunE: runWithApp(func(app *application, cmd *cobra.Command, _ []string) error {
		cfg := app.cfg
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}

		chats, err := app.conversations()
		if err != nil {
			return err
		}
		srv := server.New(app.plans, chats, app.notes, server.Options{
			Port:              cfg.Server.Port,
			APIKey:            cfg.Server.APIKey,
			AllowedOrigins:    cfg.Server.AllowedOrigins,
			ChatRatePerSecond: cfg.Server.ChatRatePerSecond,
			ChatBurst:         cfg.Server.ChatBurst,
			Version:           version,
			Logger:            app.log,
		})

		var sweeper *integrity.Sweeper
		if cfg.Integrity.Enabled {
			sweeper = integrity.NewSweeper(app.store, integrity.Options{
				Schedule: cfg.Integrity.Schedule,
				Tracker:  app.telemetry,
				Logger:   app.log,
			})
			if err := sweeper.Start(); err != nil {
				return fmt.Errorf("start integrity sweep: %w", err)
			}
		}

		watchLogLevel(app)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var wg sync.WaitGroup
		errChan := make(chan error, 1)
		srv.Start(&wg, errChan)
		app.telemetry.Track(telemetry.EventServerStarted, map[string]any{
			"integrity": cfg.Integrity.Enabled,
			"provider":  cfg.LLM.Provider,
		})
		fmt.Fprintf(os.Stderr, "deepagent %s listening on %s\n", version, srv.Addr())

		var runErr error
		select {
		case <-ctx.Done():
			app.log.Info("shutdown signal received")
		case runErr = <-errChan:
			app.log.Error("server stopped", "error", runErr)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var g errgroup.Group
		g.Go(func() error { return srv.Shutdown(shutdownCtx) })
		if sweeper != nil {
			g.Go(func() error {
				sweeper.Stop(shutdownCtx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			app.log.Error("shutdown", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
		wg.Wait()
		app.log.Info("server stopped")
		return runErr
	}),
}

// watchLogLevel re-reads the config file on change and applies log.level.
// Other keys need a restart.
func watchLogLevel(app *application) {
	if settings == nil || settings.ConfigFileUsed() == "" {
		return
	}
	settings.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Load(settings)
		if err != nil {
			app.log.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logLevel.Set(logger.ParseLevel(level))
		app.log.Info("config reloaded", "file", e.Name, "log_level", level)
	})
	settings.WatchConfig()
}

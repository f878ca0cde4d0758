package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/josephgoksu/deepagent/internal/config"
	"github.com/josephgoksu/deepagent/internal/conversation"
	"github.com/josephgoksu/deepagent/internal/llm"
	"github.com/josephgoksu/deepagent/internal/logger"
	"github.com/josephgoksu/deepagent/internal/memory"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
	"github.com/josephgoksu/deepagent/internal/telemetry"
	"github.com/josephgoksu/deepagent/types"
	"github.com/spf13/cobra"
)

// logLevel backs every logger the CLI builds. serve changes it on config reload.
var logLevel = new(slog.LevelVar)

// application holds the services one command needs.
type application struct {
	cfg       *types.AppConfig
	log       *slog.Logger
	store     *memory.SQLiteStore
	telemetry telemetry.Client
	plans     *planning.Service
	notes     *notes.Service
}

func newApplication(cfg *types.AppConfig) (*application, error) {
	log := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Writer:   os.Stderr,
		LevelVar: logLevel,
	})

	store, err := memory.NewSQLiteStore(cfg.Storage.DataDir, memory.StoreOptions{
		BusyTimeout:  config.Millis(cfg.Storage.BusyTimeoutMs),
		QueryTimeout: config.Millis(cfg.Storage.QueryTimeoutMs),
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Storage.DataDir, err)
	}

	tc, err := telemetry.New(telemetry.Options{
		Enabled:  cfg.Telemetry.Enabled,
		APIKey:   cfg.Telemetry.APIKey,
		Endpoint: cfg.Telemetry.Endpoint,
		Version:  version,
		DataDir:  cfg.Storage.DataDir,
	})
	if err != nil {
		log.Warn("telemetry disabled", "error", err)
		tc = telemetry.NewNoopClient()
	}

	return &application{
		cfg:       cfg,
		log:       log,
		store:     store,
		telemetry: tc,
		plans:     planning.NewService(store, planning.WithLogger(log), planning.WithTracker(tc)),
		notes:     notes.NewService(store, log),
	}, nil
}

// conversations builds the agent-backed conversation service. It fails only
// on an unusable LLM config; provider errors surface on the first turn.
func (a *application) conversations() (*conversation.Service, error) {
	llmCfg, err := config.LLMConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	agent := llm.NewAgent(llmCfg, a.plans, llm.NewPlanningTools(a.plans, a.notes),
		llm.WithMaxIterations(a.cfg.LLM.MaxIterations),
		llm.WithSystemPrompt(a.cfg.LLM.SystemPrompt),
		llm.WithAgentLogger(a.log),
	)
	return conversation.NewService(a.store, agent, a.log), nil
}

func (a *application) Close() error {
	return errors.Join(a.telemetry.Close(), a.store.Close())
}

// runWithApp opens the application around a command and closes it afterwards.
func runWithApp(runFunc func(app *application, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := newApplication(appConfig)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := app.Close(); cerr != nil {
				app.log.Warn("close application", "error", cerr)
			}
		}()

		app.telemetry.Track(telemetry.EventCommandExecuted, map[string]any{"command": cmd.CommandPath()})
		return runFunc(app, cmd, args)
	}
}

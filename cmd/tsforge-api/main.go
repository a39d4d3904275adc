// Command tsforge-api serves tsforge's REST and WebSocket API (spec.md
// §6): file upload/lookup/viewport/reparse, and the auto-detection/chat
// WebSocket endpoints. Grounded on the teacher's cmd/tarsy/main.go
// startup sequence: load config, connect the database, run migrations,
// wire services, start the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tsforge/tsforge/pkg/agent"
	"github.com/tsforge/tsforge/pkg/api"
	"github.com/tsforge/tsforge/pkg/config"
	"github.com/tsforge/tsforge/pkg/database"
	"github.com/tsforge/tsforge/pkg/events"
	"github.com/tsforge/tsforge/pkg/queue"
	"github.com/tsforge/tsforge/pkg/services"
	"github.com/tsforge/tsforge/pkg/viewport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("tsforge-api: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}
	db, err := database.NewClient(ctx, cfg.DatabaseURL, database.DefaultConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	qc := queue.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ConsumerGroup)
	defer qc.Close()

	files := services.NewFileService(db.Pool)
	labels := services.NewLabelService(db.Pool)
	convs := services.NewConversationService(db.Pool)
	vp := viewport.NewService(files)

	llm := agent.NewAzureChatClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMAPIVersion, cfg.LLMDeployment)
	defer llm.Close()

	runner := &agent.Runner{
		Dataset: vp,
		LLM:     llm,
		Labels:  labels,
		Colors:  agent.NoClassColors{},
	}

	srv := api.NewServer(api.Deps{
		Config:        cfg,
		DB:            db,
		Queue:         qc,
		Files:         files,
		Labels:        labels,
		Conversations: convs,
		Viewport:      vp,
		Agents:        runner,
		Hub:           events.NewHub(),
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("tsforge-api: listening", "port", cfg.HTTPPort)
		errCh <- srv.Start(":" + cfg.HTTPPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("tsforge-api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

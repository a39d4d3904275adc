// Command tsforge-worker runs the file-parsing worker pool (spec.md
// §4.7): it claims upload tasks off the durable queue, parses each file
// with the template-driven parser, and writes the binary/overview
// output the API serves back out. Grounded on the teacher's
// cmd/tarsy/main.go startup sequence, scoped to the queue subsystem.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsforge/tsforge/pkg/config"
	"github.com/tsforge/tsforge/pkg/database"
	"github.com/tsforge/tsforge/pkg/parser"
	"github.com/tsforge/tsforge/pkg/queue"
	"github.com/tsforge/tsforge/pkg/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("tsforge-worker: fatal", "error", err)
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

	db, err := database.NewClient(ctx, cfg.DatabaseURL, database.DefaultConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	qc := queue.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ConsumerGroup)
	defer qc.Close()

	files := services.NewFileService(db.Pool)

	// A single generic CSV template that resolves the x column and
	// every channel by header regex, since template CRUD per folder is
	// out of scope (spec.md §1 Non-goals); a real deployment supplies a
	// FolderTemplateResolver backed by whatever store owns that CRUD.
	templates := queue.StaticTemplateResolver{Template: defaultTemplate()}

	pool := queue.NewPool(qc, files, templates, cfg.WorkerName, cfg.WorkerCount, cfg.ReadBatchSize, cfg.ReadBlockTime)
	if err := pool.Start(ctx); err != nil {
		return err
	}

	slog.Info("tsforge-worker: started", "workers", cfg.WorkerCount, "queue", queue.StreamName)
	<-ctx.Done()
	slog.Info("tsforge-worker: shutting down")
	pool.Stop()
	return nil
}

func defaultTemplate() parser.Template {
	return parser.Template{
		FileType: parser.FileTypeCSV,
		HeadRow:  0,
		X: parser.XSpec{
			Selector: parser.ColumnSelector{Raw: "^(time|timestamp|t)$"},
			IsTime:   true,
			Name:     "time",
		},
		Channels: []parser.ChannelSpec{
			{ChannelName: "value", Selector: parser.ColumnSelector{Raw: ".*"}},
		},
	}
}

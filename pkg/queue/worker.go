package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tsforge/tsforge/pkg/binformat"
	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/parser"
	"github.com/tsforge/tsforge/pkg/services"
)

// WorkerStatus mirrors the teacher's idle/working health states
// (pkg/queue/worker.go's WorkerStatus), scoped to file parsing instead of
// alert-session execution.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// TemplateResolver looks up the parse template a file should use. Template
// CRUD itself is out of scope (spec.md §1 Non-goals); this is the seam
// the worker calls into to get the template a real deployment would
// store alongside folder/project metadata.
type TemplateResolver interface {
	ResolveTemplate(ctx context.Context, f *models.File) (parser.Template, error)
}

// Worker repeatedly claims file-parse messages from one Client and
// invokes the Parser (C3) and Writer (C5), grounded on spec.md §4.7 and
// the teacher's worker.go polling-loop shape.
type Worker struct {
	id        string
	client    *Client
	files     *services.FileService
	templates TemplateResolver
	batchSize int64
	block     time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentFileID  string
	filesProcessed int
}

// NewWorker constructs a Worker bound to a Client/FileService/TemplateResolver.
func NewWorker(id string, client *Client, files *services.FileService, templates TemplateResolver, batchSize int64, block time.Duration) *Worker {
	return &Worker{
		id:        id,
		client:    client,
		files:     files,
		templates: templates,
		batchSize: batchSize,
		block:     block,
		stopCh:    make(chan struct{}),
		status:    WorkerStatusIdle,
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for it. Safe to call multiple
// times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports this worker's current state for the pool's health endpoint.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentFileID:  w.currentFileID,
		FilesProcessed: w.filesProcessed,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.drainPending(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := w.client.ReadGroup(ctx, w.id, w.batchSize, w.block)
		if err != nil {
			if err != ErrNoMessages {
				slog.Error("queue: read_group failed", "worker", w.id, "error", err)
				time.Sleep(time.Second) // avoid a hot error loop
			}
			continue
		}

		for _, m := range msgs {
			w.process(ctx, m)
		}
	}
}

// drainPending reprocesses this consumer's own unacked PEL entries
// before joining the ">" stream, so a worker restarted under the same
// name resumes a crash mid-parse exactly once rather than leaving the
// file stuck in "parsing" forever.
func (w *Worker) drainPending(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := w.client.ReadPending(ctx, w.id, w.batchSize)
		if err != nil {
			if err != ErrNoMessages {
				slog.Error("queue: read_pending failed", "worker", w.id, "error", err)
			}
			return
		}

		for _, m := range msgs {
			w.process(ctx, m)
		}
	}
}

func (w *Worker) process(ctx context.Context, m Message) {
	fileID := m.Fields[FieldFileID]

	w.mu.Lock()
	w.status = WorkerStatusWorking
	w.currentFileID = fileID
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.currentFileID = ""
		w.filesProcessed++
		w.mu.Unlock()
	}()

	if err := w.parseOne(ctx, fileID); err != nil {
		slog.Error("queue: parse failed", "worker", w.id, "file_id", fileID, "error", err)
	}

	if err := w.client.Ack(ctx, m.ID); err != nil {
		slog.Error("queue: ack failed", "worker", w.id, "message_id", m.ID, "error", err)
	}
}

// parseOne runs the full C7 lifecycle for one message: load, mark
// parsing, invoke Parser+Writer, persist the result. Any failure sets the
// file to an "error: <msg>" state rather than propagating — spec.md §4.7
// is explicit that workers ack regardless, to avoid infinite redelivery.
func (w *Worker) parseOne(ctx context.Context, fileID string) error {
	f, err := w.files.Get(ctx, fileID)
	if err != nil {
		if err == services.ErrNotFound {
			return nil // file record gone: ack and move on, per spec.md §4.7 step 2
		}
		return fmt.Errorf("load file %s: %w", fileID, err)
	}

	if err := w.files.UpdateParsingStatus(ctx, fileID, models.ParsingParsing); err != nil {
		return fmt.Errorf("mark parsing: %w", err)
	}

	tpl, err := w.templates.ResolveTemplate(ctx, f)
	if err != nil {
		return w.fail(ctx, fileID, fmt.Errorf("resolve template: %w", err))
	}

	cols, xType, xFormat, err := parser.Parse(f.RawPath, tpl)
	if err != nil {
		return w.fail(ctx, fileID, fmt.Errorf("parse: %w", err))
	}

	channels := make([]binformat.Channel, len(cols))
	for i, c := range cols {
		channels[i] = binformat.Channel{IsX: c.X, Name: c.Name, Unit: c.Unit, Color: c.Color, Data: c.Data}
	}

	folder := fileStem(f)
	result, err := binformat.Write(folder, xType, xFormat, channels)
	if err != nil {
		return w.fail(ctx, fileID, fmt.Errorf("write: %w", err))
	}

	xMin, xMax := minMaxOf(cols)
	f.JSONPath = result.JSONPath
	f.BinaryPath = result.BinaryPath
	f.MetaPath = result.MetaPath
	f.OverviewPath = result.OverviewPath
	f.UseBinaryFormat = result.UseBinaryFormat
	f.TotalPoints = result.TotalPoints
	f.XType = xType
	f.XFormat = xFormat
	f.XMin = xMin
	f.XMax = xMax

	if err := w.files.CompleteParse(ctx, f); err != nil {
		return fmt.Errorf("persist parsed metadata: %w", err)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, fileID string, cause error) error {
	if err := w.files.UpdateParsingStatus(ctx, fileID, models.ErrorStatus(cause.Error())); err != nil {
		slog.Error("queue: failed to record parse error status", "file_id", fileID, "error", err)
	}
	return cause
}

func fileStem(f *models.File) string {
	return f.RawPath[:len(f.RawPath)-len(extOf(f.RawPath))]
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}

func minMaxOf(cols []parser.Column) (lo, hi float64) {
	for _, c := range cols {
		if !c.X || len(c.Data) == 0 {
			continue
		}
		lo, hi = c.Data[0], c.Data[0]
		for _, v := range c.Data[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

package agent

import (
	"context"
	"fmt"

	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/services"
)

// DatasetLoader loads one file's full parsed dataset for the Plot-Tool
// Harness, implemented by pkg/viewport.Service.LoadFull — kept as an
// interface here so pkg/agent doesn't need to import pkg/viewport for
// its one call.
type DatasetLoader interface {
	LoadFull(ctx context.Context, fileID string) (x []float64, names []string, channels [][]float64, err error)
}

// Runner drives one auto-detection run end to end (C11): loads the
// dataset, builds one PlotViewer per sub-agent node, runs the graph, persists
// confirmed events on success, and reports outcome via notifications.
//
// Grounded on the teacher's orchestrator.SubAgentRunner for the
// lifecycle shape (context-scoped run, notification fan-out, graceful
// cancellation) generalized from N concurrent sub-agents to this fixed
// three-node sequential graph, since spec.md §5 requires the
// auto-detection plane to be linearizable rather than concurrent.
type Runner struct {
	Dataset DatasetLoader
	LLM     LLMClient
	Labels  *services.LabelService
	Colors  ClassColorResolver
}

// Run executes one auto-detection conversation for fileID, calling
// notify with every event in emission order. It persists confirmed
// events and returns the number of labels written on success.
func (r *Runner) Run(ctx context.Context, fileID string, notify Subscriber) (int, error) {
	x, names, channels, err := r.Dataset.LoadFull(ctx, fileID)
	if err != nil {
		notify(Notification{Type: NotifyDetectionFailed, Data: map[string]any{"reason": err.Error()}})
		return 0, fmt.Errorf("agent: load dataset: %w", err)
	}
	if len(x) == 0 {
		err := fmt.Errorf("agent: file %s has no parsed data", fileID)
		notify(Notification{Type: NotifyDetectionFailed, Data: map[string]any{"reason": err.Error()}})
		return 0, err
	}

	state := models.NewAgentState(fileID)

	viewers := map[models.AgentRole]*PlotViewer{
		models.RolePlanner:    nil, // the planner never plots directly
		models.RoleIdentifier: NewPlotViewer(x, names, channels, notify),
		models.RoleValidator:  NewPlotViewer(x, names, channels, notify),
	}

	deps := &Deps{LLM: r.LLM, Viewers: viewers, Notify: notify}

	runErr := Run(ctx, state, deps)
	if runErr != nil {
		return 0, runErr
	}

	count, err := PersistEvents(ctx, r.Labels, r.Colors, fileID, state)
	if err != nil {
		notify(Notification{Type: NotifyDetectionFailed, Data: map[string]any{"reason": err.Error()}})
		return 0, err
	}
	notify(Notification{Type: NotifyEventsSaved, Data: map[string]any{"count": count}})
	notify(Notification{Type: NotifyDetectionCompleted, Data: map[string]any{"file_id": fileID, "labels": count}})
	return count, nil
}

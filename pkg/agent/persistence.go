package agent

import (
	"context"
	"fmt"

	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/services"
)

// ClassColorResolver looks up the display color configured for an event
// class name. Project/class-list CRUD is out of scope (spec.md §1
// Non-goals), so this is an explicit seam a real deployment wires to
// whatever owns that configuration — mirroring pkg/queue's
// TemplateResolver seam for the same reason.
type ClassColorResolver interface {
	ColorForClass(name string) (color string, ok bool)
}

// NoClassColors always falls back to models.DefaultLabelColor.
type NoClassColors struct{}

func (NoClassColors) ColorForClass(string) (string, bool) { return "", false }

// PersistEvents translates every detected event in state into a label
// and replaces the file's auto-detected label set, the exact mapping of
// spec.md §4.12 ("Auto-detected: Multi-agent detection", labeler "AI
// Multi-Agent", hide=false, auto_detected=true).
func PersistEvents(ctx context.Context, labels *services.LabelService, colors ClassColorResolver, fileID string, state *models.AgentState) (int, error) {
	if colors == nil {
		colors = NoClassColors{}
	}

	out := make([]models.Label, 0, len(state.DetectedEvents))
	for _, e := range state.DetectedEvents {
		color, ok := colors.ColorForClass(e.EventName)
		classColors := map[string]string{}
		if ok {
			classColors[e.EventName] = color
		}
		out = append(out, models.NewLabelFromEvent(e, classColors))
	}

	if err := labels.ReplaceAutoDetected(ctx, fileID, out); err != nil {
		return 0, fmt.Errorf("agent: persist events: %w", err)
	}
	return len(out), nil
}

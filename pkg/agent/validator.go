package agent

import (
	"context"
	"fmt"

	"github.com/tsforge/tsforge/pkg/models"
)

// runValidatorTurn drives one full Validator sub-agent sub-loop: looks
// up the events_to_verify by key, plots the first one, then lets the
// LLM inspect via the plot tools until it calls task_result with a
// remove/keep verdict for each (spec.md §4.9).
func runValidatorTurn(ctx context.Context, state *models.AgentState, deps *Deps) error {
	task := state.ActiveValidatorTask
	viewer := deps.Viewers[models.RoleValidator]

	events := resolveEvents(state, task.EventsToVerify)

	if len(state.ValidatorMessages) == 0 {
		state.ValidatorMessages = buildConvMessages(buildValidatorMessages(task, events))
	}
	if len(events) > 0 {
		first := events[0]
		initial := viewer.PlotWindow(first.StartIndex, first.EndIndex, true)
		state.ValidatorMessages = append(state.ValidatorMessages, toolResultRecord(models.RoleValidator, initial))
	}

	tools := append(plotToolDefinitions(), taskResultToolDefinition())

	for i := 0; i < maxSubAgentSteps; i++ {
		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		result, err := callLLM(ctx, deps.LLM, convToMessages(state.ValidatorMessages), tools)
		if err != nil {
			return fmt.Errorf("agent: validator turn: %w", err)
		}
		state.TokenUsage.Add(models.TokenUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		})
		state.ValidatorMessages = append(state.ValidatorMessages, assistantRecord(models.RoleValidator, result))
		deps.notify(NotifyLLMInteraction, map[string]any{"agent": "validator", "task_id": task.TaskID})

		if len(result.ToolCalls) == 0 {
			state.ValidatorMessages = append(state.ValidatorMessages, models.ConversationMessage{
				Role: models.RoleUser, Agent: models.RoleValidator,
				Content: "Call a plot tool to inspect an event or call task_result to finish.",
			})
			continue
		}

		var finished bool
		for _, tc := range result.ToolCalls {
			if isPlotTool(tc.Name) {
				res := dispatchPlotTool(viewer, tc)
				state.ValidatorMessages = append(state.ValidatorMessages, toolResultRecord(models.RoleValidator, res))
				continue
			}
			if tc.Name == toolTaskResult {
				var tr validatorTaskResult
				if err := parseArgs(tc, &tr); err != nil {
					return err
				}
				applyValidatorResult(state, task, tr)
				deps.notify(NotifyTaskCompleted, map[string]any{"agent": "validator", "task_id": task.TaskID, "verified": len(tr.ValidationResults)})
				finished = true
				continue
			}
			state.ValidatorMessages = append(state.ValidatorMessages, models.ConversationMessage{
				Role: models.RoleUser, Agent: models.RoleValidator,
				Content: fmt.Sprintf("unknown tool %q", tc.Name),
			})
		}
		if finished {
			return nil
		}
	}

	state.Communication = &models.Communication{
		To:      models.RolePlanner,
		Content: fmt.Sprintf("validator task %s stalled without a result after %d LLM turns", task.TaskID, maxSubAgentSteps),
	}
	routeTo(state, models.RolePlanner)
	return nil
}

func resolveEvents(state *models.AgentState, keys []string) []models.Event {
	out := make([]models.Event, 0, len(keys))
	for _, k := range keys {
		if e, ok := state.DetectedEvents[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

func applyValidatorResult(state *models.AgentState, task models.ValidatorTask, tr validatorTaskResult) {
	kept, removed := 0, 0
	for _, v := range tr.ValidationResults {
		e, ok := state.DetectedEvents[v.EventID]
		if !ok {
			continue
		}
		e.NeedVerification = false
		if v.Remove {
			delete(state.DetectedEvents, v.EventID)
			removed++
			continue
		}
		e.VerificationResult = models.VerificationKeep
		state.DetectedEvents[v.EventID] = e
		kept++
	}
	if item := planItemByTaskID(state.Plan, task.TaskID); item != nil {
		item.IsDone = true
	}

	summary := fmt.Sprintf("Validator task %s complete: kept %d, removed %d.", task.TaskID, kept, removed)
	state.Communication = &models.Communication{To: models.RolePlanner, Content: summary}
	routeTo(state, models.RolePlanner)
}

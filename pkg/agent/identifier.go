package agent

import (
	"context"
	"fmt"

	"github.com/tsforge/tsforge/pkg/models"
)

// runIdentifierTurn drives one full Identifier sub-agent sub-loop to
// completion: an initial full-data plot, then LLM turns offering the
// plot tools plus task_result, bounded by maxSubAgentSteps and
// SubAgentTokenBudget (spec.md §4.9, §4.10).
func runIdentifierTurn(ctx context.Context, state *models.AgentState, deps *Deps) error {
	task := state.ActiveIdentifierTask
	viewer := deps.Viewers[models.RoleIdentifier]

	if len(state.IdentifierMessages) == 0 {
		state.IdentifierMessages = buildConvMessages(buildIdentifierMessages(task))
	}
	initial := viewer.PlotAll()
	state.IdentifierMessages = append(state.IdentifierMessages, toolResultRecord(models.RoleIdentifier, initial))

	tools := append(plotToolDefinitions(), taskResultToolDefinition())

	for i := 0; i < maxSubAgentSteps; i++ {
		select {
		case <-ctx.Done():
			return ErrCancelled
		default:
		}

		result, err := callLLM(ctx, deps.LLM, convToMessages(state.IdentifierMessages), tools)
		if err != nil {
			return fmt.Errorf("agent: identifier turn: %w", err)
		}
		state.TokenUsage.Add(models.TokenUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		})
		if state.TokenUsage.TotalTokens > SubAgentTokenBudget {
			return ErrBudgetExceeded
		}
		state.IdentifierMessages = append(state.IdentifierMessages, assistantRecord(models.RoleIdentifier, result))
		deps.notify(NotifyLLMInteraction, map[string]any{"agent": "identifier", "task_id": task.TaskID})

		if len(result.ToolCalls) == 0 {
			state.IdentifierMessages = append(state.IdentifierMessages, models.ConversationMessage{
				Role: models.RoleUser, Agent: models.RoleIdentifier,
				Content: "Call a plot tool to inspect the data or call task_result to finish.",
			})
			continue
		}

		var finished bool
		for _, tc := range result.ToolCalls {
			if isPlotTool(tc.Name) {
				res := dispatchPlotTool(viewer, tc)
				state.IdentifierMessages = append(state.IdentifierMessages, toolResultRecord(models.RoleIdentifier, res))
				continue
			}
			if tc.Name == toolTaskResult {
				var tr identifierTaskResult
				if err := parseArgs(tc, &tr); err != nil {
					return err
				}
				applyIdentifierResult(state, task, tr)
				deps.notify(NotifyTaskCompleted, map[string]any{"agent": "identifier", "task_id": task.TaskID, "found": len(tr.EventsFound)})
				finished = true
				continue
			}
			state.IdentifierMessages = append(state.IdentifierMessages, models.ConversationMessage{
				Role: models.RoleUser, Agent: models.RoleIdentifier,
				Content: fmt.Sprintf("unknown tool %q", tc.Name),
			})
		}
		if finished {
			return nil
		}
	}

	// Exhausted the sub-agent step budget without a task_result: hand back
	// to the planner with an explicit stall report rather than silently
	// looping (spec.md §8's self-loop/stall-recovery edge).
	state.Communication = &models.Communication{
		To:      models.RolePlanner,
		Content: fmt.Sprintf("identifier task %s stalled without a result after %d LLM turns", task.TaskID, maxSubAgentSteps),
	}
	routeTo(state, models.RolePlanner)
	return nil
}

func applyIdentifierResult(state *models.AgentState, task models.IdentifierTask, tr identifierTaskResult) {
	if item := planItemByTaskID(state.Plan, task.TaskID); item != nil {
		item.IsDone = true
	}
	for _, ef := range tr.EventsFound {
		state.RecordEvent(models.Event{
			EventName:         ef.EventName,
			StartIndex:        ef.StartIndex,
			EndIndex:          ef.EndIndex,
			NeedVerification:  ef.NeedVerification,
			VerificationGuide: ef.VerificationGuide,
			VerificationResult: models.VerificationNotVerified,
		})
	}

	summary := fmt.Sprintf("Identifier task %s complete: found %d event(s) on channel %s.", task.TaskID, len(tr.EventsFound), task.Channel)
	if !tr.Status {
		summary = fmt.Sprintf("Identifier task %s complete: no events found (%s).", task.TaskID, tr.Reason)
	}
	state.Communication = &models.Communication{To: models.RolePlanner, Content: summary}
	routeTo(state, models.RolePlanner)
}

func buildConvMessages(msgs []Message) []models.ConversationMessage {
	out := make([]models.ConversationMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, models.ConversationMessage{Role: models.MessageRole(m.Role), Content: m.Content, ImageBase64: m.ImageBase64})
	}
	return out
}

func convToMessages(msgs []models.ConversationMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{Role: string(m.Role), Content: m.Content, ImageBase64: m.ImageBase64})
	}
	return out
}

func toolResultRecord(agent models.AgentRole, res ToolResult) models.ConversationMessage {
	return models.ConversationMessage{
		Role:        models.RoleTool,
		Agent:       agent,
		Content:     res.Desc,
		ImageBase64: res.Fig,
	}
}

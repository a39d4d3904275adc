package agent

import (
	"context"
	"fmt"

	"github.com/tsforge/tsforge/pkg/models"
)

// runPlannerTurn implements the Planner node: one LLM call producing
// exactly one of update_plan/dispatch_identifier_task/
// dispatch_validator_task/final_result (spec.md §4.9). The hand-back
// message from whichever sub-agent just ran is appended to the
// planner's thread before the call, mirroring original_source's
// prior-thread-plus-hand-back input.
func runPlannerTurn(ctx context.Context, state *models.AgentState, deps *Deps) error {
	handback := ""
	if state.Communication != nil && state.Communication.To == models.RolePlanner {
		handback = state.Communication.Content
	}

	messages := buildPlannerMessages(state, handback)
	result, err := callLLM(ctx, deps.LLM, messages, plannerToolDefinitions())
	if err != nil {
		return fmt.Errorf("agent: planner turn: %w", err)
	}
	state.TokenUsage.Add(models.TokenUsage{
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
	})
	state.PlannerMessages = append(state.PlannerMessages, assistantRecord(models.RolePlanner, result))

	if len(result.ToolCalls) != 1 {
		// Neither silence nor multiple simultaneous directives are a valid
		// Planner turn; hand back and let the Planner try again rather
		// than treat this as a hard failure (spec.md §8's stall recovery).
		state.Communication = &models.Communication{
			To:      models.RolePlanner,
			Content: "Your last turn must call exactly one tool (update_plan, dispatch_identifier_task, dispatch_validator_task, or final_result). Try again.",
		}
		return nil
	}

	tc := result.ToolCalls[0]
	switch tc.Name {
	case toolUpdatePlan:
		var args updatePlanArgs
		if err := parseArgs(tc, &args); err != nil {
			return err
		}
		applyPlanUpdate(state, args)
		deps.notify(NotifyPlanUpdated, map[string]any{"items": len(state.Plan)})
		// Stay on the planner: publishing a plan is not itself a dispatch.
		return nil

	case toolDispatchIdentifier:
		var args dispatchIdentifierArgs
		if err := parseArgs(tc, &args); err != nil {
			return err
		}
		if planItemByTaskID(state.Plan, args.TaskID) == nil {
			state.Communication = &models.Communication{
				To:      models.RolePlanner,
				Content: fmt.Sprintf("task_id %q does not exist in the plan. Call update_plan first or use an existing task_id.", args.TaskID),
			}
			return nil
		}
		widened := widenAll(args.Windows)
		state.IdentifierMessages = nil
		state.ActiveIdentifierTask = models.IdentifierTask{
			TaskID: args.TaskID, Channel: args.Channel, Description: args.Description, Windows: widened,
		}
		deps.notify(NotifyTaskCompleted, map[string]any{"dispatched": "identifier", "task_id": args.TaskID})
		routeTo(state, models.RoleIdentifier)
		return nil

	case toolDispatchValidator:
		var args dispatchValidatorArgs
		if err := parseArgs(tc, &args); err != nil {
			return err
		}
		if planItemByTaskID(state.Plan, args.TaskID) == nil {
			state.Communication = &models.Communication{
				To:      models.RolePlanner,
				Content: fmt.Sprintf("task_id %q does not exist in the plan. Call update_plan first or use an existing task_id.", args.TaskID),
			}
			return nil
		}
		state.ActiveValidatorTask = models.ValidatorTask{
			TaskID: args.TaskID, EventsToVerify: args.EventsToVerify, Guide: args.Guide,
		}
		state.ValidatorMessages = nil
		deps.notify(NotifyTaskCompleted, map[string]any{"dispatched": "validator", "task_id": args.TaskID})
		routeTo(state, models.RoleValidator)
		return nil

	case toolFinalResult:
		var args finalResultArgs
		if err := parseArgs(tc, &args); err != nil {
			return err
		}
		if !planComplete(state) {
			state.Communication = &models.Communication{
				To:      models.RolePlanner,
				Content: "final_result rejected: some plan items are not yet done or some events still need verification. Dispatch the remaining work first.",
			}
			return nil
		}
		deps.notify(NotifyAnalysisProgress, map[string]any{"summary": args.Summary})
		state.CurrentAgent = terminalRole
		return nil

	default:
		state.Communication = &models.Communication{
			To:      models.RolePlanner,
			Content: fmt.Sprintf("unknown tool %q; call update_plan, dispatch_identifier_task, dispatch_validator_task, or final_result.", tc.Name),
		}
		return nil
	}
}

func applyPlanUpdate(state *models.AgentState, args updatePlanArgs) {
	items := make([]models.PlanItem, 0, len(args.Items))
	existing := map[string]models.PlanItem{}
	for _, p := range state.Plan {
		existing[p.TaskID] = p
	}
	for _, w := range args.Items {
		item := models.PlanItem{
			TaskID:           w.TaskID,
			TargetAgent:      models.AgentRole(w.TargetAgent),
			Channel:          w.Channel,
			Description:      w.Description,
			PotentialWindows: w.PotentialWindows,
		}
		if prev, ok := existing[w.TaskID]; ok {
			item.IsDone = prev.IsDone
		}
		items = append(items, item)
	}
	state.Plan = items
}

// planComplete reports whether every plan item is done and no detected
// event still needs verification — the Terminal condition of spec.md §9.
func planComplete(state *models.AgentState) bool {
	for _, item := range state.Plan {
		if !item.IsDone {
			return false
		}
	}
	return len(state.EventsNeedingVerification()) == 0
}

func widenAll(windows [][2]float64) [][2]float64 {
	out := make([][2]float64, len(windows))
	for i, w := range windows {
		s, e := models.WidenWindow(w[0], w[1])
		out[i] = [2]float64{s, e}
	}
	return out
}

func assistantRecord(agent models.AgentRole, result GenerateResult) models.ConversationMessage {
	return models.ConversationMessage{Role: models.RoleAssistant, Agent: agent, Content: result.Content}
}

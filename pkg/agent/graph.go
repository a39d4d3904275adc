package agent

import (
	"context"
	"fmt"

	"github.com/tsforge/tsforge/pkg/models"
)

// Deps bundles everything a graph node needs beyond the shared
// AgentState, mirroring the teacher's ExecutionContext dependency
// bundle (pkg/agent/context.go) scoped to this fixed three-node graph.
type Deps struct {
	LLM     LLMClient
	Viewers map[models.AgentRole]*PlotViewer
	Notify  Subscriber
}

func (d *Deps) notify(t NotificationType, data map[string]any) {
	if d.Notify != nil {
		d.Notify(Notification{Type: t, Data: data})
	}
}

// maxSubAgentSteps bounds one Identifier/Validator sub-agent's internal
// tool-calling loop, independent of the outer graph's recursion limit —
// a sub-agent may legitimately call several plot tools before its
// task_result.
const maxSubAgentSteps = 20

// Run drives the Planner/Identifier/Validator state machine to
// completion, a terminal budget/recursion/cancellation error, or an
// error from a node. A stalled sub-agent does not end the run; it hands
// back to the Planner. Run never terminates on a bare final_result —
// spec.md §8's "premature final_result" scenario requires every plan
// item done and no event still needing verification, checked whenever
// the Planner calls final_result.
func Run(ctx context.Context, state *models.AgentState, deps *Deps) error {
	deps.notify(NotifyDetectionStarted, map[string]any{"file_id": state.FileID})

	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			deps.notify(NotifyDetectionCancelled, map[string]any{"reason": ctx.Err().Error()})
			return ErrCancelled
		default:
		}

		if state.RecursionCount >= DefaultRecursionLimit {
			deps.notify(NotifyDetectionFailed, map[string]any{"reason": "recursion limit reached"})
			return ErrRecursionLimit
		}
		budget := int64(SubAgentTokenBudget)
		if state.CurrentAgent == models.RolePlanner {
			budget = PlannerTokenBudget
		}
		if state.TokenUsage.TotalTokens > budget {
			deps.notify(NotifyDetectionFailed, map[string]any{"reason": "token budget exceeded"})
			return ErrBudgetExceeded
		}

		state.RecursionCount++

		var err error
		switch state.CurrentAgent {
		case models.RolePlanner:
			err = runPlannerTurn(ctx, state, deps)
		case models.RoleIdentifier:
			err = runIdentifierTurn(ctx, state, deps)
		case models.RoleValidator:
			err = runValidatorTurn(ctx, state, deps)
		default:
			err = fmt.Errorf("agent: unknown current agent %q", state.CurrentAgent)
		}
		if err != nil {
			deps.notify(NotifyDetectionFailed, map[string]any{"reason": err.Error()})
			return err
		}

		if state.CurrentAgent == terminalRole {
			deps.notify(NotifyAnalysisCompleted, map[string]any{
				"events": len(state.DetectedEvents),
				"steps":  step + 1,
			})
			return nil
		}
	}
}

// terminalRole is the sentinel CurrentAgent value a node sets to signal
// graph completion — distinct from any real models.AgentRole so routing
// switches stay exhaustive.
const terminalRole models.AgentRole = "__terminal__"

// routeTo moves control to the named node. Callers that are dispatching
// (planner -> identifier/validator) leave state.Communication as it is,
// since the target node reads only its task fields; callers
// that are handing back (identifier/validator -> planner) must set
// state.Communication first — routeTo does not touch it, so the
// Planner's next turn sees the hand-back message.
func routeTo(state *models.AgentState, to models.AgentRole) {
	state.CurrentAgent = to
}

// callLLM runs one Generate/Collect round trip, retrying once with the
// image attachment stripped if the provider rejects it (spec.md §4.11
// point 2, §7).
func callLLM(ctx context.Context, llm LLMClient, messages []Message, tools []ToolDefinition) (GenerateResult, error) {
	ch, err := llm.Generate(ctx, GenerateInput{Messages: messages, Tools: tools})
	if err != nil {
		return GenerateResult{}, err
	}
	result, err := Collect(ch)
	if err != nil && IsImageRejected(err) {
		ch, err = llm.Generate(ctx, GenerateInput{Messages: retryTextOnly(messages), Tools: tools})
		if err != nil {
			return GenerateResult{}, err
		}
		return Collect(ch)
	}
	return result, err
}

func planItemByTaskID(plan []models.PlanItem, taskID string) *models.PlanItem {
	for i := range plan {
		if plan[i].TaskID == taskID {
			return &plan[i]
		}
	}
	return nil
}

package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tsforge/tsforge/pkg/models"
)

// scriptedLLM returns one canned GenerateResult per call, in order,
// ignoring the actual messages/tools it's called with — enough to drive
// the graph deterministically through a known sequence of turns.
type scriptedLLM struct {
	calls   int
	results []GenerateResult
}

func (s *scriptedLLM) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	r := s.results[i]
	ch := make(chan Chunk, len(r.ToolCalls)+2)
	if r.Content != "" {
		ch <- &TextChunk{Content: r.Content}
	}
	for _, tc := range r.ToolCalls {
		ch <- &ToolCallChunk{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}
	if r.Usage.TotalTokens != 0 {
		ch <- &UsageChunk{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		}
	}
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) Close() error { return nil }

func toolCall(name string, args any) ToolCall {
	b, _ := json.Marshal(args)
	return ToolCall{ID: name + "-1", Name: name, Arguments: string(b)}
}

func newTestDataset() (x []float64, names []string, channels [][]float64) {
	x = make([]float64, 50)
	ch := make([]float64, 50)
	for i := range x {
		x[i] = float64(i)
		ch[i] = float64(i)
	}
	return x, []string{"pressure"}, [][]float64{ch}
}

// TestRunFullPlanIdentifyFinalize drives the graph through
// plan -> dispatch identifier -> identifier finds an event -> hand back
// -> planner declares final_result, and checks the Terminal condition
// (spec.md §8) fires only once the plan item is done.
func TestRunFullPlanIdentifyFinalize(t *testing.T) {
	llm := &scriptedLLM{results: []GenerateResult{
		// planner turn 1: publish a one-item plan
		{ToolCalls: []ToolCall{toolCall(toolUpdatePlan, updatePlanArgs{
			Items: []planItemWire{{TaskID: "t1", TargetAgent: "identifier", Channel: "pressure"}},
		})}},
		// planner turn 2: dispatch identifier
		{ToolCalls: []ToolCall{toolCall(toolDispatchIdentifier, dispatchIdentifierArgs{
			TaskID: "t1", Channel: "pressure", Windows: [][2]float64{{10, 20}},
		})}},
		// identifier turn: immediately reports one event found
		{ToolCalls: []ToolCall{toolCall(toolTaskResult, identifierTaskResult{
			Status: true,
			EventsFound: []identifierEventFound{
				{EventName: "spike", StartIndex: 10, EndIndex: 20},
			},
		})}},
		// planner turn 3: declare final_result
		{ToolCalls: []ToolCall{toolCall(toolFinalResult, finalResultArgs{Summary: "done"})}},
	}}

	x, names, channels := newTestDataset()
	state := models.NewAgentState("file-1")
	deps := &Deps{
		LLM: llm,
		Viewers: map[models.AgentRole]*PlotViewer{
			models.RoleIdentifier: NewPlotViewer(x, names, channels, nil),
			models.RoleValidator:  NewPlotViewer(x, names, channels, nil),
		},
		Notify: func(Notification) {},
	}

	err := Run(context.Background(), state, deps)
	require.NoError(t, err)
	require.Len(t, state.Plan, 1)
	require.True(t, state.Plan[0].IsDone)
	require.Len(t, state.DetectedEvents, 1)
}

// TestRunRejectsPrematureFinalResult checks spec.md §8's boundary case:
// the Planner tries to finalize before the dispatched task is done, and
// the graph hands control back to the planner instead of terminating.
func TestRunRejectsPrematureFinalResult(t *testing.T) {
	llm := &scriptedLLM{results: []GenerateResult{
		{ToolCalls: []ToolCall{toolCall(toolUpdatePlan, updatePlanArgs{
			Items: []planItemWire{{TaskID: "t1", TargetAgent: "identifier", Channel: "pressure"}},
		})}},
		// premature final_result: t1 is not done yet
		{ToolCalls: []ToolCall{toolCall(toolFinalResult, finalResultArgs{Summary: "too soon"})}},
		// after the hand-back, the planner dispatches properly
		{ToolCalls: []ToolCall{toolCall(toolDispatchIdentifier, dispatchIdentifierArgs{
			TaskID: "t1", Channel: "pressure", Windows: [][2]float64{{10, 20}},
		})}},
		{ToolCalls: []ToolCall{toolCall(toolTaskResult, identifierTaskResult{Status: false, Reason: "nothing found"})}},
		{ToolCalls: []ToolCall{toolCall(toolFinalResult, finalResultArgs{Summary: "done"})}},
	}}

	x, names, channels := newTestDataset()
	state := models.NewAgentState("file-1")
	deps := &Deps{
		LLM: llm,
		Viewers: map[models.AgentRole]*PlotViewer{
			models.RoleIdentifier: NewPlotViewer(x, names, channels, nil),
			models.RoleValidator:  NewPlotViewer(x, names, channels, nil),
		},
		Notify: func(Notification) {},
	}

	err := Run(context.Background(), state, deps)
	require.NoError(t, err)
	require.True(t, state.Plan[0].IsDone)
	require.Empty(t, state.DetectedEvents)
}

// TestRunFailsWhenPlannerExceedsItsOwnBudget checks spec.md §4.9/§8
// scenario S6: a planner turn reporting 600k tokens must terminate the
// graph even though 600k is well under SubAgentTokenBudget — the check
// is against the current node's own budget, not a combined total.
func TestRunFailsWhenPlannerExceedsItsOwnBudget(t *testing.T) {
	llm := &scriptedLLM{results: []GenerateResult{
		{
			ToolCalls: []ToolCall{toolCall(toolUpdatePlan, updatePlanArgs{
				Items: []planItemWire{{TaskID: "t1", TargetAgent: "identifier", Channel: "pressure"}},
			})},
			Usage: Usage{TotalTokens: 600_000},
		},
	}}

	x, names, channels := newTestDataset()
	state := models.NewAgentState("file-1")
	deps := &Deps{
		LLM: llm,
		Viewers: map[models.AgentRole]*PlotViewer{
			models.RoleIdentifier: NewPlotViewer(x, names, channels, nil),
			models.RoleValidator:  NewPlotViewer(x, names, channels, nil),
		},
		Notify: func(Notification) {},
	}

	err := Run(context.Background(), state, deps)
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

// TestRunToleratesSubAgentBudgetAboveAPlannerOnlyTotal checks the other
// half of the per-role branch directly: 600k tokens on the clock must
// not trip the check when the node about to run is the identifier,
// since that step is judged against SubAgentTokenBudget (2M), not
// PlannerTokenBudget (500k) — the same total that fails
// TestRunFailsWhenPlannerExceedsItsOwnBudget for a planner turn.
func TestRunToleratesSubAgentBudgetAboveAPlannerOnlyTotal(t *testing.T) {
	llm := &scriptedLLM{results: []GenerateResult{
		{ToolCalls: []ToolCall{toolCall(toolTaskResult, identifierTaskResult{Status: false, Reason: "nothing found"})}},
	}}

	x, names, channels := newTestDataset()
	state := models.NewAgentState("file-1")
	state.CurrentAgent = models.RoleIdentifier
	state.TokenUsage = models.TokenUsage{TotalTokens: 600_000}
	state.Plan = []models.PlanItem{{TaskID: "t1", TargetAgent: models.RoleIdentifier, Channel: "pressure"}}
	state.ActiveIdentifierTask = models.IdentifierTask{TaskID: "t1", Channel: "pressure"}

	err := Run(context.Background(), state, &Deps{
		LLM: llm,
		Viewers: map[models.AgentRole]*PlotViewer{
			models.RoleIdentifier: NewPlotViewer(x, names, channels, nil),
			models.RoleValidator:  NewPlotViewer(x, names, channels, nil),
		},
		Notify: func(Notification) {},
	})

	// The identifier step itself must not be rejected for being over
	// budget; control correctly reaches the identifier's LLM call, and
	// only once it hands back does the planner's own, stricter budget
	// apply to the same accumulated total.
	require.Equal(t, 1, llm.calls)
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestRunFailsOnRecursionLimit(t *testing.T) {
	// The planner never progresses: every turn re-publishes the same plan.
	results := make([]GenerateResult, 0, DefaultRecursionLimit+2)
	for i := 0; i < DefaultRecursionLimit+2; i++ {
		results = append(results, GenerateResult{ToolCalls: []ToolCall{toolCall(toolUpdatePlan, updatePlanArgs{})}})
	}
	llm := &scriptedLLM{results: results}

	x, names, channels := newTestDataset()
	state := models.NewAgentState("file-1")
	deps := &Deps{
		LLM: llm,
		Viewers: map[models.AgentRole]*PlotViewer{
			models.RoleIdentifier: NewPlotViewer(x, names, channels, nil),
			models.RoleValidator:  NewPlotViewer(x, names, channels, nil),
		},
		Notify: func(Notification) {},
	}

	err := Run(context.Background(), state, deps)
	require.ErrorIs(t, err, ErrRecursionLimit)
}

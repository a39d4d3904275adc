package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tsforge/tsforge/pkg/models"
)

// Tool names exchanged with the LLM via ToolCall.Name, grounded on
// original_source's structured-output contract for each node (spec.md
// §4.9): the Planner emits exactly one of these per turn, Identifier and
// Validator emit plot-tool calls until they emit task_result.
const (
	toolUpdatePlan         = "update_plan"
	toolDispatchIdentifier = "dispatch_identifier_task"
	toolDispatchValidator  = "dispatch_validator_task"
	toolFinalResult        = "final_result"
	toolTaskResult         = "task_result"
)

const (
	toolPlotAll                   = "plot_all"
	toolPlotWindow                = "plot_window"
	toolPlotWindowWithWindowSize  = "plot_window_with_window_size"
	toolPlotLeft                  = "plot_left"
	toolPlotRight                 = "plot_right"
	toolPlotZoomInX               = "plot_zoom_in_x"
	toolPlotZoomOutX              = "plot_zoom_out_x"
	toolPlotZoomInY               = "plot_zoom_in_y"
	toolPlotZoomOutY              = "plot_zoom_out_y"
	toolPlotDerivative            = "plot_derivative"
	toolPlotSecondDerivative      = "plot_second_derivative"
	toolPlotWithYRanges           = "plot_with_y_ranges"
	toolLookupX                   = "lookup_x"
	toolLookupY                   = "lookup_y"
	toolGetValue                  = "get_value"
)

// plotToolDefinitions lists the Plot-Tool Harness commands (spec.md
// §4.10) every Identifier/Validator sub-agent turn is offered alongside
// its terminal task_result tool.
func plotToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{Name: toolPlotAll, Description: "Plot the full dataset."},
		{Name: toolPlotWindow, Description: "Plot an index window [start,end].", ParametersSchema: `{"type":"object","properties":{"start":{"type":"integer"},"end":{"type":"integer"},"y_zoomed":{"type":"boolean"}},"required":["start","end"]}`},
		{Name: toolPlotWindowWithWindowSize, Description: "Plot a window of a given size centered on an index.", ParametersSchema: `{"type":"object","properties":{"mid":{"type":"integer"},"size":{"type":"integer"},"y_zoomed":{"type":"boolean"}},"required":["mid","size"]}`},
		{Name: toolPlotLeft, Description: "Shift the current window left by 3/4 its width."},
		{Name: toolPlotRight, Description: "Shift the current window right by 3/4 its width."},
		{Name: toolPlotZoomInX, Description: "Halve the current window width."},
		{Name: toolPlotZoomOutX, Description: "Double the current window width."},
		{Name: toolPlotZoomInY, Description: "Scale the y-axis to the current window."},
		{Name: toolPlotZoomOutY, Description: "Restore the y-axis to the dataset's full range."},
		{Name: toolPlotDerivative, Description: "Plot the first difference of named channels.", ParametersSchema: `{"type":"object","properties":{"channels":{"type":"array","items":{"type":"string"}}},"required":["channels"]}`},
		{Name: toolPlotSecondDerivative, Description: "Plot the second difference of named channels.", ParametersSchema: `{"type":"object","properties":{"channels":{"type":"array","items":{"type":"string"}}},"required":["channels"]}`},
		{Name: toolPlotWithYRanges, Description: "Plot the current window with explicit y-axis bounds.", ParametersSchema: `{"type":"object","properties":{"ranges":{"type":"object"}},"required":["ranges"]}`},
		{Name: toolLookupX, Description: "Return x values at given indices.", ParametersSchema: `{"type":"object","properties":{"indices":{"type":"array","items":{"type":"integer"}}},"required":["indices"]}`},
		{Name: toolLookupY, Description: "Return x-crossings of a channel at given y values.", ParametersSchema: `{"type":"object","properties":{"channel":{"type":"string"},"values":{"type":"array","items":{"type":"number"}}},"required":["channel","values"]}`},
		{Name: toolGetValue, Description: "Return a textual table of the current window."},
	}
}

// plannerToolDefinitions forces the Planner to emit exactly one of the
// four structured outputs spec.md §4.9 describes, each its own tool.
func plannerToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:             toolUpdatePlan,
			Description:      "Publish or revise the task plan.",
			ParametersSchema: `{"type":"object","properties":{"items":{"type":"array"}},"required":["items"]}`,
		},
		{
			Name:             toolDispatchIdentifier,
			Description:      "Dispatch a channel-scanning task to the Identifier sub-agent.",
			ParametersSchema: `{"type":"object","properties":{"task_id":{"type":"string"},"channel":{"type":"string"},"description":{"type":"string"},"windows":{"type":"array"}},"required":["task_id","channel"]}`,
		},
		{
			Name:             toolDispatchValidator,
			Description:      "Dispatch an event-confirmation task to the Validator sub-agent.",
			ParametersSchema: `{"type":"object","properties":{"task_id":{"type":"string"},"events_to_verify":{"type":"array","items":{"type":"string"}},"guide":{"type":"string"}},"required":["task_id","events_to_verify"]}`,
		},
		{
			Name:             toolFinalResult,
			Description:      "Declare detection complete. Only accepted once every plan item is done and no event needs verification.",
			ParametersSchema: `{"type":"object","properties":{"summary":{"type":"string"}}}`,
		},
	}
}

func taskResultToolDefinition() ToolDefinition {
	return ToolDefinition{
		Name:             toolTaskResult,
		Description:      "Report the outcome of this sub-agent's assigned task.",
		ParametersSchema: `{"type":"object"}`,
	}
}

const plannerSystemPrompt = `You are the planning agent in a multi-agent time-series event detector.
You never inspect the data directly. You read sub-agent reports and either:
revise the plan, dispatch an identifier task, dispatch a validator task, or
declare final_result. Call exactly one tool per turn.`

func buildPlannerMessages(state *models.AgentState, handback string) []Message {
	msgs := []Message{{Role: RoleSystem, Content: plannerSystemPrompt}}
	msgs = append(msgs, convMessages(state.PlannerMessages)...)
	if handback != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: handback})
	}
	return msgs
}

const identifierSystemPrompt = `You are the identifier sub-agent. You are given a channel and one or
more potential windows to inspect. Use the plot tools to look at the
data, then call task_result with {"status":true,"events_found":[...]}
on success, listing each found event as
{"event_name":...,"start_index":...,"end_index":...,"need_verification":bool,
"verification_guide":"..."}, or {"status":false,"reason":"..."} if nothing
was found.`

func buildIdentifierMessages(task models.IdentifierTask) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s: inspect channel %q.\n", task.TaskID, task.Channel)
	if task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", task.Description)
	}
	b.WriteString("Potential windows (already padded):\n")
	for _, w := range task.Windows {
		fmt.Fprintf(&b, "  [%g, %g]\n", w[0], w[1])
	}
	return []Message{
		{Role: RoleSystem, Content: identifierSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

const validatorSystemPrompt = `You are the validator sub-agent. You are given a list of previously
identified events to confirm or reject. Use the plot tools to inspect
each event's window, then call task_result with
{"validation_results":[{"event_id":...,"remove":bool}]} covering every
event you were asked to verify.`

func buildValidatorMessages(task models.ValidatorTask, events []models.Event) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Task %s: verify %d event(s).\n", task.TaskID, len(events))
	if task.Guide != "" {
		fmt.Fprintf(&b, "Guide: %s\n", task.Guide)
	}
	for _, e := range events {
		fmt.Fprintf(&b, "  event_id=%s name=%s window=[%d,%d] guide=%q\n",
			e.Key(), e.EventName, e.StartIndex, e.EndIndex, e.VerificationGuide)
	}
	return []Message{
		{Role: RoleSystem, Content: validatorSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

func convMessages(msgs []models.ConversationMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := string(m.Role)
		out = append(out, Message{Role: role, Content: m.Content, ImageBase64: m.ImageBase64})
	}
	return out
}

// identifierEventFound mirrors one entry of task_result's events_found array.
type identifierEventFound struct {
	EventName         string `json:"event_name"`
	StartIndex        int    `json:"start_index"`
	EndIndex          int    `json:"end_index"`
	NeedVerification  bool   `json:"need_verification"`
	VerificationGuide string `json:"verification_guide"`
}

type identifierTaskResult struct {
	Status      bool                    `json:"status"`
	Reason      string                  `json:"reason"`
	EventsFound []identifierEventFound  `json:"events_found"`
}

type validationEntry struct {
	EventID string `json:"event_id"`
	Remove  bool   `json:"remove"`
}

type validatorTaskResult struct {
	ValidationResults []validationEntry `json:"validation_results"`
}

type updatePlanArgs struct {
	Items []planItemWire `json:"items"`
}

type planItemWire struct {
	TaskID           string      `json:"task_id"`
	TargetAgent      string      `json:"target_agent"`
	Channel          string      `json:"channel"`
	Description      string      `json:"description"`
	PotentialWindows [][2]float64 `json:"potential_windows"`
}

type dispatchIdentifierArgs struct {
	TaskID      string       `json:"task_id"`
	Channel     string       `json:"channel"`
	Description string       `json:"description"`
	Windows     [][2]float64 `json:"windows"`
}

type dispatchValidatorArgs struct {
	TaskID         string   `json:"task_id"`
	EventsToVerify []string `json:"events_to_verify"`
	Guide          string   `json:"guide"`
}

type finalResultArgs struct {
	Summary string `json:"summary"`
}

func parseArgs(tc ToolCall, v any) error {
	if tc.Arguments == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(tc.Arguments), v); err != nil {
		return fmt.Errorf("agent: parse %s arguments: %w", tc.Name, err)
	}
	return nil
}

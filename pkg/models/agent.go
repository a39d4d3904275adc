package models

// AgentRole identifies which node in the detection graph produced or
// should next receive a message, mirroring original_source's LangGraph
// Command-based routing without the dynamic dispatch machinery.
type AgentRole string

const (
	RolePlanner    AgentRole = "planner"
	RoleIdentifier AgentRole = "identifier"
	RoleValidator  AgentRole = "validator"
)

// PlanItem is one task the Planner hands to an Identifier or Validator
// sub-agent, grounded on original_source's auto_detect/models.py PlanItem.
type PlanItem struct {
	TaskID      string
	TargetAgent AgentRole
	Channel     string
	Description string
	// PotentialWindows are inclusive index ranges [s,e] the planner hands
	// the sub-agent as a hint. The planner widens each to
	// [s-(e-s)/2, e+(e-s)/2] before dispatch — the padding is mandatory.
	PotentialWindows [][2]float64
	// ReferenceEvent is set only for validator tasks: the event being
	// re-checked.
	ReferenceEvent *Event
	IsDone         bool
}

// WidenWindow applies the planner's mandatory potential-window padding:
// [s,e] -> [s-(e-s)/2, e+(e-s)/2].
func WidenWindow(s, e float64) (float64, float64) {
	half := (e - s) / 2
	return s - half, e + half
}

// IdentifierTask is a unit of work assigned to an Identifier sub-agent.
type IdentifierTask struct {
	TaskID      string
	Channel     string
	Description string
	Windows     [][2]float64
}

// ValidatorTask is a unit of work assigned to a Validator sub-agent,
// carrying the specific events to confirm or reject.
type ValidatorTask struct {
	TaskID          string
	EventsToVerify  []string // event keys
	Guide           string
}

// Communication is the latest message addressed to the Planner: a
// sub-agent's hand-back or the Planner's own rejected call. Routing
// follows AgentState.CurrentAgent, not To.
type Communication struct {
	To      AgentRole
	Content string
}

// TokenUsage accumulates LLM token consumption across a detection run.
type TokenUsage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Add folds another usage sample into the running total.
func (u *TokenUsage) Add(o TokenUsage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}

// AgentState is the shared, mutable state threaded through one
// auto-detection run: the Planner's outstanding plan, the sub-agents'
// accumulated conversation transcripts, and the events discovered so far.
// Grounded on original_source's auto_detect state dict and on the
// teacher's SubAgentRunner bookkeeping (pkg/agent/orchestrator/runner.go).
type AgentState struct {
	FileID string

	PlannerMessages    []ConversationMessage
	IdentifierMessages []ConversationMessage
	ValidatorMessages  []ConversationMessage

	Plan          []PlanItem
	Communication *Communication

	// ActiveIdentifierTask/ActiveValidatorTask carry the task the Planner
	// most recently dispatched, read by the Identifier/Validator node on
	// entry and cleared implicitly by the next dispatch.
	ActiveIdentifierTask IdentifierTask
	ActiveValidatorTask  ValidatorTask

	// DetectedEvents is keyed by Event.Key() to dedupe across Identifier
	// and Validator passes.
	DetectedEvents map[string]Event

	TokenUsage TokenUsage

	CurrentAgent AgentRole
	// RecursionCount guards against runaway planner/identifier cycles;
	// the runner terminates the graph once it reaches the recursion limit.
	RecursionCount int
}

// NewAgentState returns a zero-valued state ready for the Planner's first turn.
func NewAgentState(fileID string) *AgentState {
	return &AgentState{
		FileID:         fileID,
		DetectedEvents: make(map[string]Event),
		CurrentAgent:   RolePlanner,
	}
}

// RecordEvent adds or overwrites a detected event keyed by its identity
// tuple, so repeated Identifier passes over the same region collapse to
// one entry instead of duplicating.
func (s *AgentState) RecordEvent(e Event) {
	s.DetectedEvents[e.Key()] = e
}

// EventsNeedingVerification returns the subset of detected events whose
// NeedVerification flag is still set, in map-iteration order (the caller
// is responsible for any ordering it needs downstream).
func (s *AgentState) EventsNeedingVerification() []Event {
	var out []Event
	for _, e := range s.DetectedEvents {
		if e.NeedVerification {
			out = append(out, e)
		}
	}
	return out
}

// Package agent implements the auto-detection agent pipeline (C9-C12):
// a fixed Planner/Identifier/Validator state machine driven by an LLM, a
// bounded plot-tool harness the LLM drives to inspect the dataset, the
// runner that dispatches sub-agent turns and fans out progress
// notifications, and the translation of confirmed events into labels.
//
// Grounded on original_source/hill_backend/agents/auto_detect/*.py for
// node semantics, and on the teacher's now-deleted
// pkg/agent/orchestrator/{runner,collector,types}.go for the Go-side
// shape: channel-based sub-agent result delivery, cancellation via
// context, and a subscriber callback for notifications.
package agent

import (
	"errors"
	"time"
)

// ExecutionStatus mirrors the teacher's agent.ExecutionStatus, scoped to
// one Identifier/Validator sub-agent turn instead of a full orchestrator
// execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusTimedOut  ExecutionStatus = "timed_out"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Token budgets per spec.md §4.9: checked against the current node's own
// budget each turn — planner against PlannerTokenBudget, identifier/
// validator against SubAgentTokenBudget — exceeding either terminates
// the graph.
const (
	PlannerTokenBudget  = 500_000
	SubAgentTokenBudget = 2_000_000
)

// DefaultRecursionLimit bounds composed planner/identifier/validator
// turns within one run (spec.md §4.11).
const DefaultRecursionLimit = 10

// SubAgentTimeout is a per-turn time bound for an Identifier/Validator
// sub-agent. No code in this package applies it: a sub-agent turn is
// bounded only by maxSubAgentSteps and the run's context.
const SubAgentTimeout = 2 * time.Minute

// NotificationType enumerates every subscriber-visible event named in
// spec.md §4.11, plus the two terminal states (`detection_cancelled`,
// `error`) named in §5/§7/§8's scenarios.
type NotificationType string

const (
	NotifyAnalysisProgress   NotificationType = "analysis_progress"
	NotifyPlanUpdated        NotificationType = "plan_updated"
	NotifyLLMInteraction     NotificationType = "llm_interaction"
	NotifyPlotViewSync       NotificationType = "plot_view_sync"
	NotifyTaskCompleted      NotificationType = "task_completed"
	NotifyDetectionStarted   NotificationType = "detection_started"
	NotifyAnalysisCompleted  NotificationType = "analysis_completed"
	NotifyDetectionCompleted NotificationType = "detection_completed"
	NotifyEventsSaved        NotificationType = "events_saved"
	NotifyDetectionFailed    NotificationType = "detection_failed"
	NotifyDetectionCancelled NotificationType = "detection_cancelled"
	NotifyError              NotificationType = "error"
)

// Notification is one subscriber-visible event, funneled through a
// single callback per spec.md §4.11 point 3. Each one is delivered as
// soon as it is emitted, in emission order; nothing is buffered until a
// step boundary.
type Notification struct {
	Type NotificationType
	Data map[string]any
}

// Subscriber receives notifications in emission order. Implementations
// must not block for long — the graph nodes, the plot viewers and the
// runner call it synchronously at the point each notification is
// emitted.
type Subscriber func(Notification)

// Sentinel errors surfaced by the graph/runner.
var (
	ErrBudgetExceeded = errors.New("agent: token budget exceeded")
	ErrRecursionLimit = errors.New("agent: recursion limit reached")
	ErrCancelled      = errors.New("agent: run cancelled")
	ErrStalled        = errors.New("agent: node produced neither a tool call nor the expected field")
)

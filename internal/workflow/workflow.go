// Package workflow executes directed step graphs on top of the orchestrator:
// sequences of task, parallel, conditional and loop steps evaluated against
// an accumulating context.
package workflow

import (
	"fmt"
	"time"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

type StepType string

const (
	StepTask        StepType = "task"
	StepParallel    StepType = "parallel"
	StepConditional StepType = "conditional"
	StepLoop        StepType = "loop"
)

// Step is one node of a workflow definition. Exactly the fields for its
// Type are consulted; the rest stay empty.
type Step struct {
	ID   string   `json:"id,omitempty"`
	Type StepType `json:"type"`

	// task
	Tasks []orchestrator.TaskDefinition `json:"tasks,omitempty"`

	// parallel
	Branches [][]Step `json:"branches,omitempty"`

	// conditional
	Condition   string `json:"condition,omitempty"`
	TrueBranch  []Step `json:"true_branch,omitempty"`
	FalseBranch []Step `json:"false_branch,omitempty"`

	// loop
	LoopCondition string `json:"loop_condition,omitempty"`
	Body          []Step `json:"body,omitempty"`
}

// Definition is an immutable, named list of steps.
type Definition struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Instance tracks one execution of a workflow definition.
type Instance struct {
	ID             string                                  `json:"id"`
	Definition     Definition                              `json:"definition"`
	Status         Status                                  `json:"status"`
	Input          map[string]any                          `json:"input,omitempty"`
	CompletedSteps []string                                `json:"completed_steps,omitempty"`
	CurrentStep    string                                  `json:"current_step,omitempty"`
	Tasks          map[string]orchestrator.TaskInstance    `json:"tasks,omitempty"`
	Output         map[string]any                          `json:"output,omitempty"`
	Error          string                                  `json:"error,omitempty"`
	StartedAt      time.Time                               `json:"started_at"`
	CompletedAt    *time.Time                              `json:"completed_at,omitempty"`
}

// StepError marks a workflow step failure and wraps the underlying cause.
// Any step failure aborts the enclosing workflow; nothing is retried at the
// workflow level.
type StepError struct {
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

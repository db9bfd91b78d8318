package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

// maxLoopIterations hard-caps loop steps so they terminate regardless of
// condition truth.
const maxLoopIterations = 100

// ConditionEvaluator decides conditional and loop branches. Implementations
// must be sandboxed: evaluation never executes host code.
type ConditionEvaluator interface {
	Evaluate(expression string, context map[string]any) (bool, error)
}

// Engine runs workflow definitions against the orchestrator's task API.
type Engine struct {
	orch *orchestrator.Orchestrator
	eval ConditionEvaluator

	mu        sync.RWMutex
	instances map[string]*Instance
}

func NewEngine(orch *orchestrator.Orchestrator, eval ConditionEvaluator) *Engine {
	return &Engine{
		orch:      orch,
		eval:      eval,
		instances: make(map[string]*Instance),
	}
}

// Start begins executing a workflow in the background and returns the
// running instance snapshot. Progress is observable through Instance and
// the orchestrator's event surface.
func (e *Engine) Start(ctx context.Context, def Definition, input map[string]any) Instance {
	inst := e.newInstance(def, input)
	go e.execute(ctx, inst)
	snap, _ := e.Instance(inst.ID)
	return snap
}

// Run executes a workflow synchronously and returns the terminal instance
// snapshot. The error, if any, is the step failure that aborted execution.
func (e *Engine) Run(ctx context.Context, def Definition, input map[string]any) (Instance, error) {
	inst := e.newInstance(def, input)
	err := e.execute(ctx, inst)
	snap, _ := e.Instance(inst.ID)
	return snap, err
}

// Instance returns a snapshot of one workflow instance.
func (e *Engine) Instance(id string) (Instance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.instances[id]
	if !ok {
		return Instance{}, fmt.Errorf("workflow %s: %w", id, orchestrator.ErrNotFound)
	}
	return snapshot(inst), nil
}

// Instances returns snapshots of all known workflow instances, oldest first.
func (e *Engine) Instances() []Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		out = append(out, snapshot(inst))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (e *Engine) newInstance(def Definition, input map[string]any) *Instance {
	def.Steps = normalizeSteps(def.Steps)
	inst := &Instance{
		ID:         uuid.New().String(),
		Definition: def,
		Status:     StatusRunning,
		Input:      input,
		Tasks:      make(map[string]orchestrator.TaskInstance),
		StartedAt:  time.Now(),
	}

	e.mu.Lock()
	e.instances[inst.ID] = inst
	e.mu.Unlock()

	slog.Info("workflow started", "workflow", inst.ID, "name", def.Name, "steps", len(def.Steps))
	e.emit(orchestrator.EventWorkflowStarted, map[string]any{
		"workflow_id": inst.ID,
		"name":        def.Name,
	})
	return inst
}

func (e *Engine) execute(ctx context.Context, inst *Instance) error {
	env := cloneContext(inst.Input)
	err := e.executeSteps(ctx, inst, inst.Definition.Steps, env)

	now := time.Now()
	e.mu.Lock()
	inst.CurrentStep = ""
	inst.CompletedAt = &now
	if err != nil {
		inst.Status = StatusFailed
		inst.Error = err.Error()
	} else {
		inst.Status = StatusCompleted
		inst.Output = env
	}
	e.mu.Unlock()

	if err != nil {
		slog.Warn("workflow failed", "workflow", inst.ID, "name", inst.Definition.Name, "error", err)
		e.emit(orchestrator.EventWorkflowFailed, map[string]any{
			"workflow_id": inst.ID,
			"name":        inst.Definition.Name,
			"error":       err.Error(),
		})
		return err
	}

	slog.Info("workflow completed", "workflow", inst.ID, "name", inst.Definition.Name)
	e.emit(orchestrator.EventWorkflowCompleted, map[string]any{
		"workflow_id": inst.ID,
		"name":        inst.Definition.Name,
	})
	return nil
}

// executeSteps runs steps in order against env, which accumulates outputs
// as steps finish. The first failing step aborts with a StepError.
func (e *Engine) executeSteps(ctx context.Context, inst *Instance, steps []Step, env map[string]any) error {
	for _, step := range steps {
		e.mu.Lock()
		inst.CurrentStep = step.ID
		e.mu.Unlock()

		var err error
		switch step.Type {
		case StepTask:
			err = e.runTaskStep(ctx, inst, step, env)
		case StepParallel:
			err = e.runParallelStep(ctx, inst, step, env)
		case StepConditional:
			err = e.runConditionalStep(ctx, inst, step, env)
		case StepLoop:
			err = e.runLoopStep(ctx, inst, step, env)
		default:
			err = fmt.Errorf("unknown step type %q", step.Type)
		}
		if err != nil {
			if _, ok := err.(*StepError); !ok {
				err = &StepError{StepID: step.ID, Err: err}
			}
			return err
		}

		e.mu.Lock()
		inst.CompletedSteps = append(inst.CompletedSteps, step.ID)
		e.mu.Unlock()
		e.emit(orchestrator.EventWorkflowStepCompleted, map[string]any{
			"workflow_id": inst.ID,
			"step_id":     step.ID,
		})
	}
	return nil
}

// runTaskStep creates, queues and awaits each contained task in order,
// merging successful outputs into env under "task_<id>".
func (e *Engine) runTaskStep(ctx context.Context, inst *Instance, step Step, env map[string]any) error {
	for _, def := range step.Tasks {
		def.Input = resolveInputs(def.Input, env)

		id, err := e.orch.CreateTask(def)
		if err != nil {
			return err
		}
		if err := e.orch.QueueTask(id); err != nil {
			return err
		}

		task, err := e.orch.WaitTask(ctx, id, 0)
		if err != nil {
			return err
		}
		e.mu.Lock()
		inst.Tasks[id] = task
		e.mu.Unlock()

		switch task.Status {
		case orchestrator.TaskCompleted:
			env["task_"+id] = task.Output
		case orchestrator.TaskFailed:
			return fmt.Errorf("task %s failed: %s", id, task.Error)
		case orchestrator.TaskCancelled:
			return fmt.Errorf("task %s was cancelled", id)
		}
	}
	return nil
}

// runParallelStep executes each branch concurrently against its own copy of
// env, then merges the branch contexts under "branch_<i>". The first branch
// error cancels sibling waits and fails the step.
func (e *Engine) runParallelStep(ctx context.Context, inst *Instance, step Step, env map[string]any) error {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]map[string]any, len(step.Branches))
	errs := make([]error, len(step.Branches))

	var wg sync.WaitGroup
	for i, branch := range step.Branches {
		wg.Add(1)
		go func(i int, branch []Step) {
			defer wg.Done()
			local := cloneContext(env)
			if err := e.executeSteps(branchCtx, inst, branch, local); err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = local
		}(i, branch)
	}
	wg.Wait()

	// Siblings cancelled mid-wait report context.Canceled; that is fallout
	// of the failing branch, not the cause. Report the triggering error.
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		firstErr = err
		break
	}
	if firstErr != nil {
		return firstErr
	}
	for i, local := range results {
		env[fmt.Sprintf("branch_%d", i)] = local
	}
	return nil
}

func (e *Engine) runConditionalStep(ctx context.Context, inst *Instance, step Step, env map[string]any) error {
	ok, err := e.eval.Evaluate(step.Condition, env)
	if err != nil {
		return err
	}

	branch := step.FalseBranch
	if ok {
		branch = step.TrueBranch
	}
	if len(branch) == 0 {
		return nil
	}
	return e.executeSteps(ctx, inst, branch, env)
}

// runLoopStep re-evaluates the loop condition before each iteration with the
// 0-based count injected as env["iteration"].
func (e *Engine) runLoopStep(ctx context.Context, inst *Instance, step Step, env map[string]any) error {
	for i := 0; i < maxLoopIterations; i++ {
		env["iteration"] = i

		ok, err := e.eval.Evaluate(step.LoopCondition, env)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := e.executeSteps(ctx, inst, step.Body, env); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emit(t orchestrator.EventType, data map[string]any) {
	e.orch.Emit(orchestrator.Event{Type: t, Timestamp: time.Now().UTC(), Data: data})
}

// normalizeSteps deep-copies a step list, assigning generated IDs where the
// definition leaves them empty.
func normalizeSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			s.ID = "step-" + uuid.New().String()[:8]
		}
		if s.Branches != nil {
			branches := make([][]Step, len(s.Branches))
			for j, b := range s.Branches {
				branches[j] = normalizeSteps(b)
			}
			s.Branches = branches
		}
		s.TrueBranch = normalizeSteps(s.TrueBranch)
		s.FalseBranch = normalizeSteps(s.FalseBranch)
		s.Body = normalizeSteps(s.Body)
		out[i] = s
	}
	return out
}

func snapshot(inst *Instance) Instance {
	snap := *inst
	snap.CompletedSteps = append([]string(nil), inst.CompletedSteps...)
	snap.Tasks = make(map[string]orchestrator.TaskInstance, len(inst.Tasks))
	for k, v := range inst.Tasks {
		snap.Tasks[k] = v
	}
	return snap
}

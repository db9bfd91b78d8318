package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskQueued     TaskStatus = "queued"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether s is a final lifecycle state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskDefinition is the immutable description of a unit of work.
type TaskDefinition struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	RequiredRole         string         `json:"required_role,omitempty"`
	RequiredCapabilities []string       `json:"required_capabilities,omitempty"`
	Priority             Priority       `json:"priority"`
	DependsOn            []string       `json:"depends_on,omitempty"`
	MaxRetries           int            `json:"max_retries"`
	Input                map[string]any `json:"input,omitempty"`
}

// TaskInstance tracks one task through its lifecycle.
type TaskInstance struct {
	Definition    TaskDefinition `json:"definition"`
	Status        TaskStatus     `json:"status"`
	AssignedAgent string         `json:"assigned_agent,omitempty"`
	Retries       int            `json:"retries"`
	Output        map[string]any `json:"output,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`

	// done is closed on the first transition into a terminal state.
	done chan struct{}
}

// CreateTask registers a new task in the pending state and returns its ID,
// generating one when the definition leaves it empty.
func (o *Orchestrator) CreateTask(def TaskDefinition) (string, error) {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.Priority == "" {
		def.Priority = PriorityMedium
	}

	o.mu.Lock()
	if len(o.tasks) >= o.cfg.MaxTasks {
		o.mu.Unlock()
		return "", fmt.Errorf("create task %s: %w", def.ID, ErrCapacityExceeded)
	}
	if _, exists := o.tasks[def.ID]; exists {
		o.mu.Unlock()
		return "", fmt.Errorf("create task %s: task id already exists: %w", def.ID, ErrInvalidState)
	}
	o.tasks[def.ID] = &TaskInstance{
		Definition: def,
		Status:     TaskPending,
		CreatedAt:  time.Now(),
		done:       make(chan struct{}),
	}
	o.mu.Unlock()

	slog.Debug("task created", "task", def.ID, "name", def.Name, "priority", def.Priority)
	o.publish(EventTaskCreated, map[string]any{
		"task_id":  def.ID,
		"name":     def.Name,
		"priority": string(def.Priority),
	})
	return def.ID, nil
}

// QueueTask moves a pending task into the priority queue. While the
// orchestrator is running this immediately retries dispatch.
func (o *Orchestrator) QueueTask(id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("queue task %s: %w", id, ErrNotFound)
	}
	if t.Status != TaskPending {
		o.mu.Unlock()
		return fmt.Errorf("queue task %s in state %s: %w", id, t.Status, ErrInvalidState)
	}
	t.Status = TaskQueued
	o.insertQueued(t)
	o.mu.Unlock()

	slog.Debug("task queued", "task", id)
	o.ProcessQueue()
	return nil
}

// AssignTask binds a queued task to an idle agent.
func (o *Orchestrator) AssignTask(taskID, agentID string) error {
	o.mu.Lock()
	t, ok := o.tasks[taskID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("assign task %s: %w", taskID, ErrNotFound)
	}
	a, ok := o.agents[agentID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("assign task %s to agent %s: %w", taskID, agentID, ErrNotFound)
	}
	if a.Status != AgentIdle {
		o.mu.Unlock()
		return fmt.Errorf("assign task %s to agent %s: %w", taskID, agentID, ErrAgentBusy)
	}
	if t.Status != TaskQueued {
		o.mu.Unlock()
		return fmt.Errorf("assign task %s in state %s: %w", taskID, t.Status, ErrInvalidState)
	}
	events := o.assignLocked(t, a)
	o.mu.Unlock()

	o.emitAll(events)
	return nil
}

// assignLocked performs the queued→assigned transition and agent binding,
// returning the events to emit once the lock is released. Callers must hold
// o.mu.
func (o *Orchestrator) assignLocked(t *TaskInstance, a *AgentInstance) []Event {
	now := time.Now()
	o.removeQueued(t.Definition.ID)
	t.Status = TaskAssigned
	t.AssignedAgent = a.Definition.ID
	a.Status = AgentBusy
	a.CurrentTask = t.Definition.ID
	a.LastActivity = now

	slog.Info("task assigned", "task", t.Definition.ID, "agent", a.Definition.ID)
	return []Event{
		{Type: EventTaskAssigned, Timestamp: now.UTC(), Data: map[string]any{
			"task_id":  t.Definition.ID,
			"agent_id": a.Definition.ID,
		}},
		{Type: EventAgentStatusChanged, Timestamp: now.UTC(), Data: map[string]any{
			"agent_id": a.Definition.ID,
			"status":   string(AgentBusy),
		}},
	}
}

// StartTask marks an assigned task as in progress.
func (o *Orchestrator) StartTask(id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("start task %s: %w", id, ErrNotFound)
	}
	if t.Status != TaskAssigned {
		o.mu.Unlock()
		return fmt.Errorf("start task %s in state %s: %w", id, t.Status, ErrInvalidState)
	}
	now := time.Now()
	t.Status = TaskInProgress
	t.StartedAt = &now
	o.mu.Unlock()

	slog.Debug("task started", "task", id)
	return nil
}

// CompleteTask records a successful result reported by the external
// executor, frees the agent and re-runs the scheduler loop so freed capacity
// and newly satisfied dependencies cascade.
func (o *Orchestrator) CompleteTask(id string, output map[string]any) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("complete task %s: %w", id, ErrNotFound)
	}
	if t.Status != TaskInProgress {
		o.mu.Unlock()
		return fmt.Errorf("complete task %s in state %s: %w", id, t.Status, ErrInvalidState)
	}
	now := time.Now()
	t.Status = TaskCompleted
	t.Output = output
	t.CompletedAt = &now
	close(t.done)

	var events []Event
	if a, ok := o.agents[t.AssignedAgent]; ok {
		a.CompletedTasks++
		events = append(events, o.freeAgentLocked(a)...)
	}
	o.mu.Unlock()

	slog.Info("task completed", "task", id, "agent", t.AssignedAgent)
	o.publish(EventTaskCompleted, map[string]any{
		"task_id":  id,
		"agent_id": t.AssignedAgent,
	})
	o.emitAll(events)
	o.ProcessQueue()
	return nil
}

// FailTask records a failure reported by the external executor. While the
// retry budget lasts the task is re-queued and the attempt does not count
// against the agent; once exhausted the task fails for good.
func (o *Orchestrator) FailTask(id string, taskErr string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("fail task %s: %w", id, ErrNotFound)
	}
	if t.Status != TaskInProgress {
		o.mu.Unlock()
		return fmt.Errorf("fail task %s in state %s: %w", id, t.Status, ErrInvalidState)
	}

	agentID := t.AssignedAgent
	retrying := t.Retries < t.Definition.MaxRetries

	var events []Event
	if retrying {
		t.Retries++
		t.Status = TaskQueued
		t.AssignedAgent = ""
		t.StartedAt = nil
		o.insertQueued(t)
		if a, ok := o.agents[agentID]; ok {
			events = append(events, o.freeAgentLocked(a)...)
		}
	} else {
		now := time.Now()
		t.Status = TaskFailed
		t.Error = taskErr
		t.CompletedAt = &now
		close(t.done)
		if a, ok := o.agents[agentID]; ok {
			a.FailedTasks++
			events = append(events, o.freeAgentLocked(a)...)
		}
	}
	o.mu.Unlock()

	if retrying {
		slog.Warn("task failed, requeued", "task", id, "retries", t.Retries, "max_retries", t.Definition.MaxRetries, "error", taskErr)
	} else {
		slog.Warn("task failed", "task", id, "error", taskErr)
		o.publish(EventTaskFailed, map[string]any{
			"task_id":  id,
			"agent_id": agentID,
			"error":    taskErr,
		})
	}
	o.emitAll(events)
	o.ProcessQueue()
	return nil
}

// CancelTask cancels a task that has not yet reached a terminal state. This
// is bookkeeping only: an execution already dispatched to an external
// executor keeps running, the orchestrator merely ignores its outcome.
func (o *Orchestrator) CancelTask(id string) error {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("cancel task %s: %w", id, ErrNotFound)
	}
	if t.Status.Terminal() {
		o.mu.Unlock()
		return fmt.Errorf("cancel task %s in state %s: %w", id, t.Status, ErrInvalidState)
	}

	o.removeQueued(id)
	var events []Event
	if t.AssignedAgent != "" {
		if a, ok := o.agents[t.AssignedAgent]; ok {
			events = append(events, o.freeAgentLocked(a)...)
		}
		t.AssignedAgent = ""
	}
	now := time.Now()
	t.Status = TaskCancelled
	t.CompletedAt = &now
	close(t.done)
	o.mu.Unlock()

	slog.Info("task cancelled", "task", id)
	o.emitAll(events)
	return nil
}

// freeAgentLocked returns a busy agent to the idle pool. Callers must hold
// o.mu.
func (o *Orchestrator) freeAgentLocked(a *AgentInstance) []Event {
	a.Status = AgentIdle
	a.CurrentTask = ""
	a.LastActivity = time.Now()
	return []Event{{
		Type:      EventAgentStatusChanged,
		Timestamp: a.LastActivity.UTC(),
		Data: map[string]any{
			"agent_id": a.Definition.ID,
			"status":   string(AgentIdle),
		},
	}}
}

// Task returns a snapshot of one task instance.
func (o *Orchestrator) Task(id string) (TaskInstance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return TaskInstance{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return *t, nil
}

// Tasks returns snapshots of all tasks, ordered by creation time.
func (o *Orchestrator) Tasks() []TaskInstance {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]TaskInstance, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, *t)
	}
	sortTasks(out)
	return out
}

// WaitTask blocks until the task reaches a terminal state, the context is
// cancelled, or the timeout elapses. A zero timeout uses the configured
// default. The terminal snapshot is returned on success.
func (o *Orchestrator) WaitTask(ctx context.Context, id string, timeout time.Duration) (TaskInstance, error) {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.Unlock()
		return TaskInstance{}, fmt.Errorf("wait for task %s: %w", id, ErrNotFound)
	}
	done := t.done
	o.mu.Unlock()

	if timeout <= 0 {
		timeout = o.cfg.DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return o.Task(id)
	case <-ctx.Done():
		return TaskInstance{}, fmt.Errorf("wait for task %s: %w", id, ctx.Err())
	case <-timer.C:
		return TaskInstance{}, fmt.Errorf("wait for task %s after %s: %w", id, timeout, ErrTimeout)
	}
}

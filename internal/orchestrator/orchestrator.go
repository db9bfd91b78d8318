// Package orchestrator is the in-memory scheduling core: it owns the agent
// registry, the task store with its priority queue, the greedy dispatch loop
// and the inter-agent mailbox. It never executes task payloads itself;
// external executors observe task_assigned events and report back through
// CompleteTask and FailTask.
package orchestrator

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mtzanidakis/taskhive/internal/config"
)

type Orchestrator struct {
	cfg config.OrchestratorConfig

	mu        sync.Mutex
	agents    map[string]*AgentInstance
	tasks     map[string]*TaskInstance
	queue     []*TaskInstance
	messages  []Message
	running   bool
	startedAt time.Time

	listenersMu sync.RWMutex
	listeners   []Listener
}

func New(cfg config.OrchestratorConfig) *Orchestrator {
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = 10
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 100
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}

	return &Orchestrator{
		cfg:       cfg,
		agents:    make(map[string]*AgentInstance),
		tasks:     make(map[string]*TaskInstance),
		startedAt: time.Now(),
	}
}

// Config returns the effective orchestrator configuration.
func (o *Orchestrator) Config() config.OrchestratorConfig {
	return o.cfg
}

// Start enables the scheduler loop and immediately attempts dispatch.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	slog.Info("orchestrator started", "max_agents", o.cfg.MaxAgents, "max_tasks", o.cfg.MaxTasks)
	o.ProcessQueue()
}

// Stop halts further scheduling. In-flight tasks are not cancelled; their
// completion calls still update bookkeeping.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
	slog.Info("orchestrator stopped")
}

// Running reports whether the scheduler loop is enabled.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// ProcessQueue walks the pending queue in priority order and greedily pairs
// each dependency-satisfied task with the best idle agent, handing the task
// off synchronously (assigned then in_progress, no separate claim phase).
// Tasks whose dependencies are not all completed are skipped and retried on
// the next pass. No-op while the orchestrator is stopped.
func (o *Orchestrator) ProcessQueue() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}

	var events []Event
	pending := make([]*TaskInstance, len(o.queue))
	copy(pending, o.queue)

	for _, t := range pending {
		if t.Status != TaskQueued {
			continue
		}
		if !o.dependenciesMetLocked(t) {
			continue
		}
		agent := o.findAvailableAgent(t)
		if agent == nil {
			continue
		}

		events = append(events, o.assignLocked(t, agent)...)
		now := time.Now()
		t.Status = TaskInProgress
		t.StartedAt = &now
	}
	o.mu.Unlock()

	o.emitAll(events)
}

// dependenciesMetLocked reports whether every dependency of t is completed.
// Unknown dependency IDs gate forever. Callers must hold o.mu.
func (o *Orchestrator) dependenciesMetLocked(t *TaskInstance) bool {
	for _, dep := range t.Definition.DependsOn {
		d, ok := o.tasks[dep]
		if !ok || d.Status != TaskCompleted {
			return false
		}
	}
	return true
}

func (o *Orchestrator) emitAll(events []Event) {
	for _, ev := range events {
		o.Emit(ev)
	}
}

func sortTasks(tasks []TaskInstance) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].Definition.ID < tasks[j].Definition.ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

package orchestrator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type AgentStatus string

const (
	AgentIdle AgentStatus = "idle"
	AgentBusy AgentStatus = "busy"
)

// AgentCapabilities declares what an agent can do. A task's required
// capabilities must be a subset of Tools ∪ TaskTypes for the agent to match.
type AgentCapabilities struct {
	Tools     []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	TaskTypes []string `json:"task_types,omitempty" yaml:"task_types,omitempty"`
}

// AgentDefinition is the immutable description supplied at registration.
type AgentDefinition struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Role         string            `json:"role,omitempty" yaml:"role,omitempty"`
	Capabilities AgentCapabilities `json:"capabilities" yaml:"capabilities"`
	// Priority breaks ties between otherwise equal candidates; higher wins.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// AgentInstance is the registry's mutable record for one registered agent.
// Status is busy exactly while CurrentTask is set.
type AgentInstance struct {
	Definition     AgentDefinition `json:"definition"`
	Status         AgentStatus     `json:"status"`
	CurrentTask    string          `json:"current_task,omitempty"`
	CompletedTasks int             `json:"completed_tasks"`
	FailedTasks    int             `json:"failed_tasks"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActivity   time.Time       `json:"last_activity"`
}

// RegisterAgent adds an agent to the registry and emits agent_created.
func (o *Orchestrator) RegisterAgent(def AgentDefinition) error {
	o.mu.Lock()
	if len(o.agents) >= o.cfg.MaxAgents {
		o.mu.Unlock()
		return fmt.Errorf("register agent %s: %w", def.ID, ErrCapacityExceeded)
	}
	if _, exists := o.agents[def.ID]; exists {
		o.mu.Unlock()
		return fmt.Errorf("register agent %s: %w", def.ID, ErrDuplicateAgent)
	}

	now := time.Now()
	o.agents[def.ID] = &AgentInstance{
		Definition:   def,
		Status:       AgentIdle,
		CreatedAt:    now,
		LastActivity: now,
	}
	o.mu.Unlock()

	slog.Info("agent registered", "agent", def.ID, "role", def.Role)
	o.publish(EventAgentCreated, map[string]any{
		"agent_id": def.ID,
		"name":     def.Name,
		"role":     def.Role,
	})
	return nil
}

// UnregisterAgent removes an idle agent. It returns false without error when
// the agent is unknown, and ErrAgentBusy while the agent holds a task.
func (o *Orchestrator) UnregisterAgent(id string) (bool, error) {
	o.mu.Lock()
	inst, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return false, nil
	}
	if inst.Status == AgentBusy {
		o.mu.Unlock()
		return false, fmt.Errorf("unregister agent %s: %w", id, ErrAgentBusy)
	}
	delete(o.agents, id)
	o.mu.Unlock()

	slog.Info("agent unregistered", "agent", id)
	o.publish(EventAgentDestroyed, map[string]any{"agent_id": id})
	return true, nil
}

// Agent returns a snapshot of one agent instance.
func (o *Orchestrator) Agent(id string) (AgentInstance, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.agents[id]
	if !ok {
		return AgentInstance{}, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return *inst, nil
}

// Agents returns snapshots of all registered agents, ordered by creation time.
func (o *Orchestrator) Agents() []AgentInstance {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]AgentInstance, 0, len(o.agents))
	for _, inst := range o.agents {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Definition.ID < out[j].Definition.ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// findAvailableAgent picks the best idle agent for a task: role match when
// the task requires one, required capabilities covered by tools ∪ task types,
// then highest definition priority with fewest completed tasks as tie-break.
// Greedy local choice, not a global assignment. Callers must hold o.mu.
func (o *Orchestrator) findAvailableAgent(task *TaskInstance) *AgentInstance {
	var candidates []*AgentInstance
	for _, inst := range o.agents {
		if inst.Status != AgentIdle {
			continue
		}
		if task.Definition.RequiredRole != "" && inst.Definition.Role != task.Definition.RequiredRole {
			continue
		}
		if !hasCapabilities(inst.Definition.Capabilities, task.Definition.RequiredCapabilities) {
			continue
		}
		candidates = append(candidates, inst)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Definition.Priority != candidates[j].Definition.Priority {
			return candidates[i].Definition.Priority > candidates[j].Definition.Priority
		}
		if candidates[i].CompletedTasks != candidates[j].CompletedTasks {
			return candidates[i].CompletedTasks < candidates[j].CompletedTasks
		}
		return candidates[i].Definition.ID < candidates[j].Definition.ID
	})
	return candidates[0]
}

func hasCapabilities(caps AgentCapabilities, required []string) bool {
	if len(required) == 0 {
		return true
	}
	available := make(map[string]bool, len(caps.Tools)+len(caps.TaskTypes))
	for _, t := range caps.Tools {
		available[t] = true
	}
	for _, t := range caps.TaskTypes {
		available[t] = true
	}
	for _, r := range required {
		if !available[r] {
			return false
		}
	}
	return true
}

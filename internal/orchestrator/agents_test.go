package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/mtzanidakis/taskhive/internal/config"
)

func TestRegisterCapacity(t *testing.T) {
	o := New(config.OrchestratorConfig{MaxAgents: 2, MaxTasks: 10, DefaultTimeout: time.Second})

	if err := o.RegisterAgent(AgentDefinition{ID: "a1", Name: "one"}); err != nil {
		t.Fatalf("register a1: %v", err)
	}
	if err := o.RegisterAgent(AgentDefinition{ID: "a2", Name: "two"}); err != nil {
		t.Fatalf("register a2: %v", err)
	}

	err := o.RegisterAgent(AgentDefinition{ID: "a3", Name: "three"})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if len(o.Agents()) != 2 {
		t.Errorf("expected 2 agents, got %d", len(o.Agents()))
	}
}

func TestRegisterDuplicate(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.RegisterAgent(AgentDefinition{ID: "a1"}); err != nil {
		t.Fatal(err)
	}
	err := o.RegisterAgent(AgentDefinition{ID: "a1"})
	if !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("expected ErrDuplicateAgent, got %v", err)
	}
}

func TestUnregister(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.RegisterAgent(AgentDefinition{ID: "a1"}); err != nil {
		t.Fatal(err)
	}

	ok, err := o.UnregisterAgent("a1")
	if err != nil || !ok {
		t.Fatalf("expected unregister to succeed, got ok=%v err=%v", ok, err)
	}

	// Absent agent: false without error.
	ok, err = o.UnregisterAgent("a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for absent agent")
	}
}

func TestUnregisterBusyAgent(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Start()
	if err := o.RegisterAgent(coder("a1")); err != nil {
		t.Fatal(err)
	}
	mustRun(t, o, TaskDefinition{ID: "T1"})

	_, err := o.UnregisterAgent("a1")
	if !errors.Is(err, ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}
}

func TestFindAvailableAgentPrefersPriorityAndLoad(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Start()

	// vet has a higher definition priority than the rest.
	if err := o.RegisterAgent(AgentDefinition{ID: "plain", Role: "coder"}); err != nil {
		t.Fatal(err)
	}
	if err := o.RegisterAgent(AgentDefinition{ID: "vet", Role: "coder", Priority: 10}); err != nil {
		t.Fatal(err)
	}

	id := mustRun(t, o, TaskDefinition{ID: "T1", RequiredRole: "coder"})
	task, _ := o.Task(id)
	if task.AssignedAgent != "vet" {
		t.Fatalf("expected high-priority agent, got %s", task.AssignedAgent)
	}
	if err := o.CompleteTask(id, nil); err != nil {
		t.Fatal(err)
	}

	// Equal priority now decides by load: vet has one completed task, so
	// the next assignment should prefer the less-loaded plain agent when
	// priorities match. Re-register plain with matching priority.
	if _, err := o.UnregisterAgent("plain"); err != nil {
		t.Fatal(err)
	}
	if err := o.RegisterAgent(AgentDefinition{ID: "fresh", Role: "coder", Priority: 10}); err != nil {
		t.Fatal(err)
	}

	id2 := mustRun(t, o, TaskDefinition{ID: "T2", RequiredRole: "coder"})
	task, _ = o.Task(id2)
	if task.AssignedAgent != "fresh" {
		t.Fatalf("expected less-loaded agent, got %s", task.AssignedAgent)
	}
}

func TestCapabilityMatching(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Start()

	if err := o.RegisterAgent(AgentDefinition{
		ID:           "bash-only",
		Capabilities: AgentCapabilities{Tools: []string{"bash"}},
	}); err != nil {
		t.Fatal(err)
	}

	// Requirement not covered: task stays queued.
	if _, err := o.CreateTask(TaskDefinition{ID: "T1", RequiredCapabilities: []string{"python"}}); err != nil {
		t.Fatal(err)
	}
	if err := o.QueueTask("T1"); err != nil {
		t.Fatal(err)
	}
	task, _ := o.Task("T1")
	if task.Status != TaskQueued {
		t.Fatalf("expected T1 queued without capable agent, got %s", task.Status)
	}

	// Task types count toward coverage as well as tools.
	if err := o.RegisterAgent(AgentDefinition{
		ID:           "pythonista",
		Capabilities: AgentCapabilities{TaskTypes: []string{"python"}},
	}); err != nil {
		t.Fatal(err)
	}
	o.ProcessQueue()

	task, _ = o.Task("T1")
	if task.Status != TaskInProgress {
		t.Fatalf("expected T1 assigned to capable agent, got %s", task.Status)
	}
	if task.AssignedAgent != "pythonista" {
		t.Errorf("expected pythonista, got %s", task.AssignedAgent)
	}
}

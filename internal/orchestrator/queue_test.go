package orchestrator

import (
	"testing"
)

func queueAll(t *testing.T, o *Orchestrator, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := o.CreateTask(TaskDefinition{ID: id, Priority: priorityFor(id)}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if err := o.QueueTask(id); err != nil {
			t.Fatalf("queue %s: %v", id, err)
		}
	}
}

// priorityFor derives a priority from an id prefix, e.g. "low-1".
func priorityFor(id string) Priority {
	for _, p := range []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		if len(id) >= len(p) && id[:len(p)] == string(p) {
			return p
		}
	}
	return PriorityMedium
}

func TestQueuePriorityOrdering(t *testing.T) {
	o := newTestOrchestrator(t) // not started: nothing dequeues

	queueAll(t, o, "low-1", "critical-1", "medium-1", "high-1")

	got := o.QueuedTasks()
	want := []string{"critical-1", "high-1", "medium-1", "low-1"}
	if len(got) != len(want) {
		t.Fatalf("expected %d queued tasks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s (queue %v)", i, want[i], got[i], got)
		}
	}
}

func TestQueueStableTies(t *testing.T) {
	o := newTestOrchestrator(t)

	queueAll(t, o, "medium-a", "medium-b", "high-x", "medium-c")

	got := o.QueuedTasks()
	want := []string{"high-x", "medium-a", "medium-b", "medium-c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s (queue %v)", i, want[i], got[i], got)
		}
	}
}

func TestPriorityWeights(t *testing.T) {
	if PriorityCritical.Weight() != 1000 {
		t.Errorf("critical weight = %d", PriorityCritical.Weight())
	}
	if PriorityHigh.Weight() != 100 {
		t.Errorf("high weight = %d", PriorityHigh.Weight())
	}
	if PriorityMedium.Weight() != 10 {
		t.Errorf("medium weight = %d", PriorityMedium.Weight())
	}
	if PriorityLow.Weight() != 1 {
		t.Errorf("low weight = %d", PriorityLow.Weight())
	}
	if Priority("bogus").Weight() != 10 {
		t.Errorf("unknown priority should weigh as medium")
	}
	if Priority("bogus").Valid() {
		t.Error("bogus priority reported valid")
	}
}

func TestRequeuedRetryKeepsPriorityPosition(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Start()
	if err := o.RegisterAgent(coder("a1")); err != nil {
		t.Fatal(err)
	}

	id := mustRun(t, o, TaskDefinition{ID: "high-job", Priority: PriorityHigh, MaxRetries: 2})

	o.Stop()
	queueAll(t, o, "low-1", "medium-1")

	if err := o.FailTask(id, "transient"); err != nil {
		t.Fatal(err)
	}

	got := o.QueuedTasks()
	if got[0] != "high-job" {
		t.Fatalf("expected requeued high task first, got %v", got)
	}
}

package orchestrator

import "testing"

func TestStatsSnapshot(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Start()

	if err := o.RegisterAgent(coder("a1")); err != nil {
		t.Fatal(err)
	}
	if err := o.RegisterAgent(coder("a2")); err != nil {
		t.Fatal(err)
	}

	done := mustRun(t, o, TaskDefinition{ID: "T1"})
	if err := o.CompleteTask(done, nil); err != nil {
		t.Fatal(err)
	}

	running := mustRun(t, o, TaskDefinition{ID: "T2"})
	_ = running

	failed := mustRun(t, o, TaskDefinition{ID: "T3"})
	if err := o.FailTask(failed, "no luck"); err != nil {
		t.Fatal(err)
	}

	if _, err := o.CreateTask(TaskDefinition{ID: "T4"}); err != nil {
		t.Fatal(err)
	}

	s := o.Stats()
	if s.ActiveAgents != 1 {
		t.Errorf("active agents = %d, want 1", s.ActiveAgents)
	}
	if s.IdleAgents != 1 {
		t.Errorf("idle agents = %d, want 1", s.IdleAgents)
	}
	if s.CompletedTasks != 1 {
		t.Errorf("completed = %d, want 1", s.CompletedTasks)
	}
	if s.FailedTasks != 1 {
		t.Errorf("failed = %d, want 1", s.FailedTasks)
	}
	if s.RunningTasks != 1 {
		t.Errorf("running = %d, want 1", s.RunningTasks)
	}
	if s.PendingTasks != 1 {
		t.Errorf("pending = %d, want 1", s.PendingTasks)
	}
	if s.Uptime <= 0 {
		t.Error("expected positive uptime")
	}
	if s.AvgTaskDuration < 0 {
		t.Errorf("negative avg duration: %v", s.AvgTaskDuration)
	}
}

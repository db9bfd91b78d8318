package recurring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtzanidakis/taskhive/internal/config"
	"github.com/mtzanidakis/taskhive/internal/orchestrator"
	"github.com/mtzanidakis/taskhive/internal/store"
)

func newTestRunner(t *testing.T) (*store.Store, *orchestrator.Orchestrator, *Runner) {
	t.Helper()
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	o := orchestrator.New(config.OrchestratorConfig{})
	o.Start()
	t.Cleanup(o.Stop)

	return s, o, New(s, o, config.RecurringConfig{PollInterval: time.Second})
}

func TestPollFiresDueTask(t *testing.T) {
	s, o, r := newTestRunner(t)

	past := time.Now().Add(-time.Minute)
	if err := s.SaveRecurring(&store.RecurringTask{
		ID:       "r1",
		Name:     "cleanup",
		Schedule: `{"kind":"interval","interval_ms":60000}`,
		Task: orchestrator.TaskDefinition{
			Name:     "cleanup",
			Priority: orchestrator.PriorityLow,
		},
		Status:    "active",
		NextRunAt: &past,
	}); err != nil {
		t.Fatalf("save recurring: %v", err)
	}

	r.Poll()

	tasks := o.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 submitted task, got %d", len(tasks))
	}
	if tasks[0].Definition.Name != "cleanup" {
		t.Errorf("unexpected task: %+v", tasks[0].Definition)
	}
	// No agents registered; the firing ends up queued.
	if tasks[0].Status != orchestrator.TaskQueued {
		t.Errorf("task status = %s, want queued", tasks[0].Status)
	}

	rt, err := s.GetRecurring("r1")
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if rt.LastRunAt == nil {
		t.Error("last_run_at not advanced")
	}
	if rt.NextRunAt == nil || !rt.NextRunAt.After(time.Now()) {
		t.Errorf("next_run_at not advanced: %v", rt.NextRunAt)
	}

	// Second poll before the next firing is a no-op.
	r.Poll()
	if got := len(o.Tasks()); got != 1 {
		t.Errorf("expected still 1 task, got %d", got)
	}
}

func TestPollRetiresOneShot(t *testing.T) {
	s, o, r := newTestRunner(t)

	past := time.Now().Add(-time.Minute)
	if err := s.SaveRecurring(&store.RecurringTask{
		ID:        "r1",
		Name:      "one-shot",
		Schedule:  `{"kind":"once","at_ms":1000}`,
		Task:      orchestrator.TaskDefinition{Name: "one-shot"},
		Status:    "active",
		NextRunAt: &past,
	}); err != nil {
		t.Fatalf("save recurring: %v", err)
	}

	r.Poll()

	if got := len(o.Tasks()); got != 1 {
		t.Fatalf("expected 1 submitted task, got %d", got)
	}

	rt, err := s.GetRecurring("r1")
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if rt.NextRunAt != nil {
		t.Errorf("one-shot not retired: %v", rt.NextRunAt)
	}

	r.Poll()
	if got := len(o.Tasks()); got != 1 {
		t.Errorf("retired task fired again: %d tasks", got)
	}
}

func TestUpdatePollIntervalWhileRunning(t *testing.T) {
	_, _, r := newTestRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(ctx)
	}()

	for i := 0; i < 50; i++ {
		r.UpdatePollInterval(time.Duration(i+1) * time.Millisecond)
	}

	cancel()
	<-done

	if got := r.interval(); got != 50*time.Millisecond {
		t.Errorf("poll interval = %s, want 50ms", got)
	}
}

func TestEachFiringGetsFreshID(t *testing.T) {
	s, o, r := newTestRunner(t)

	past := time.Now().Add(-time.Minute)
	if err := s.SaveRecurring(&store.RecurringTask{
		ID:        "r1",
		Name:      "tick",
		Schedule:  `{"kind":"interval","interval_ms":1}`,
		Task:      orchestrator.TaskDefinition{ID: "fixed", Name: "tick"},
		Status:    "active",
		NextRunAt: &past,
	}); err != nil {
		t.Fatalf("save recurring: %v", err)
	}

	r.Poll()
	time.Sleep(5 * time.Millisecond)
	r.Poll()

	tasks := o.Tasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 firings, got %d", len(tasks))
	}
	if tasks[0].Definition.ID == tasks[1].Definition.ID {
		t.Error("firings share a task ID")
	}
}

package recurring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mtzanidakis/taskhive/internal/config"
	"github.com/mtzanidakis/taskhive/internal/orchestrator"
	"github.com/mtzanidakis/taskhive/internal/store"
)

// Runner polls the store for due recurring tasks and submits a fresh task
// instance for each firing.
type Runner struct {
	store    *store.Store
	orch     *orchestrator.Orchestrator
	reloadCh chan struct{}

	mu           sync.Mutex
	pollInterval time.Duration
}

func New(s *store.Store, orch *orchestrator.Orchestrator, cfg config.RecurringConfig) *Runner {
	return &Runner{
		store:        s,
		orch:         orch,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdatePollInterval changes the polling cadence and signals the run loop
// to reset its ticker.
func (r *Runner) UpdatePollInterval(interval time.Duration) {
	r.mu.Lock()
	r.pollInterval = interval
	r.mu.Unlock()
	select {
	case r.reloadCh <- struct{}{}:
	default:
	}
}

func (r *Runner) interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pollInterval == 0 {
		r.pollInterval = 30 * time.Second
	}
	return r.pollInterval
}

func (r *Runner) Start(ctx context.Context) {
	interval := r.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("recurring runner started", "poll_interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("recurring runner stopped")
			return
		case <-r.reloadCh:
			interval = r.interval()
			ticker.Reset(interval)
			slog.Info("recurring runner reloaded", "poll_interval", interval)
		case <-ticker.C:
			r.Poll()
		}
	}
}

// Poll fires every due recurring task once and advances its schedule.
func (r *Runner) Poll() {
	due, err := r.store.DueRecurring(time.Now())
	if err != nil {
		slog.Error("failed to get due recurring tasks", "error", err)
		return
	}

	for _, rt := range due {
		r.fire(rt)
	}
}

func (r *Runner) fire(rt store.RecurringTask) {
	slog.Info("firing recurring task", "id", rt.ID, "name", rt.Name)

	// Each firing is a fresh instance; never reuse the stored ID.
	def := rt.Task
	def.ID = ""

	var runErr string
	id, err := r.orch.CreateTask(def)
	if err == nil {
		err = r.orch.QueueTask(id)
	}
	if err != nil {
		runErr = err.Error()
		slog.Error("recurring task submission failed", "id", rt.ID, "error", err)
	}

	// A nil next run retires the entry: one-off schedules fire exactly once.
	nextRun := CalculateNextRun(rt.Schedule)
	if err := r.store.MarkRecurringRun(rt.ID, time.Now(), nextRun, runErr); err != nil {
		slog.Error("failed to advance recurring task", "id", rt.ID, "error", err)
	}
	if nextRun == nil {
		slog.Info("recurring task retired", "id", rt.ID, "name", rt.Name)
	}
}

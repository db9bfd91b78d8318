package orchestrator

import "time"

// Stats is a point-in-time snapshot of orchestrator activity.
type Stats struct {
	ActiveAgents    int           `json:"active_agents"`
	IdleAgents      int           `json:"idle_agents"`
	PendingTasks    int           `json:"pending_tasks"`
	RunningTasks    int           `json:"running_tasks"`
	CompletedTasks  int           `json:"completed_tasks"`
	FailedTasks     int           `json:"failed_tasks"`
	AvgTaskDuration time.Duration `json:"avg_task_duration"`
	Throughput      float64       `json:"throughput"` // completed tasks per minute
	Uptime          time.Duration `json:"uptime"`
}

// Stats derives running statistics from the current agent and task state.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Stats{Uptime: time.Since(o.startedAt)}

	for _, a := range o.agents {
		if a.Status == AgentBusy {
			s.ActiveAgents++
		} else {
			s.IdleAgents++
		}
	}

	var totalDuration time.Duration
	var timed int
	for _, t := range o.tasks {
		switch t.Status {
		case TaskPending, TaskQueued:
			s.PendingTasks++
		case TaskAssigned, TaskInProgress:
			s.RunningTasks++
		case TaskCompleted:
			s.CompletedTasks++
			if t.StartedAt != nil && t.CompletedAt != nil {
				totalDuration += t.CompletedAt.Sub(*t.StartedAt)
				timed++
			}
		case TaskFailed:
			s.FailedTasks++
		}
	}

	if timed > 0 {
		s.AvgTaskDuration = totalDuration / time.Duration(timed)
	}
	if minutes := s.Uptime.Minutes(); minutes > 0 {
		s.Throughput = float64(s.CompletedTasks) / minutes
	}
	return s
}

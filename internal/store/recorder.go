package store

import (
	"log/slog"
	"time"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

// Recorder returns a listener that mirrors orchestrator lifecycle events
// into the store. Persistence failures are logged and dropped so the audit
// trail never stalls live scheduling.
func Recorder(s *Store, o *orchestrator.Orchestrator) orchestrator.Listener {
	return func(ev orchestrator.Event) {
		switch ev.Type {
		case orchestrator.EventTaskCreated,
			orchestrator.EventTaskAssigned,
			orchestrator.EventTaskCompleted,
			orchestrator.EventTaskFailed:
			recordTask(s, o, ev)
		case orchestrator.EventWorkflowStarted:
			recordWorkflow(s, ev, "running")
		case orchestrator.EventWorkflowCompleted:
			recordWorkflow(s, ev, "completed")
		case orchestrator.EventWorkflowFailed:
			recordWorkflow(s, ev, "failed")
		case orchestrator.EventMessageSent:
			recordMessage(s, ev)
		}
	}
}

func recordTask(s *Store, o *orchestrator.Orchestrator, ev orchestrator.Event) {
	id, _ := ev.Data["task_id"].(string)
	if id == "" {
		return
	}
	task, err := o.Task(id)
	if err != nil {
		slog.Warn("record task: snapshot failed", "task", id, "error", err)
		return
	}
	if err := s.SaveTaskRun(TaskRunFrom(task)); err != nil {
		slog.Warn("record task failed", "task", id, "error", err)
	}
}

func recordWorkflow(s *Store, ev orchestrator.Event, status string) {
	id, _ := ev.Data["workflow_id"].(string)
	if id == "" {
		return
	}
	name, _ := ev.Data["name"].(string)
	wfErr, _ := ev.Data["error"].(string)

	run := &WorkflowRun{
		ID:        id,
		Name:      name,
		Status:    status,
		Error:     wfErr,
		StartedAt: ev.Timestamp,
	}
	if status != "running" {
		ts := ev.Timestamp
		run.CompletedAt = &ts
	}
	if err := s.SaveWorkflowRun(run); err != nil {
		slog.Warn("record workflow failed", "workflow", id, "error", err)
	}
}

func recordMessage(s *Store, ev orchestrator.Event) {
	id, _ := ev.Data["message_id"].(string)
	sender, _ := ev.Data["from"].(string)
	recipient, _ := ev.Data["to"].(string)
	content, _ := ev.Data["content"].(string)

	created := ev.Timestamp
	if created.IsZero() {
		created = time.Now().UTC()
	}
	if err := s.SaveMessage(&MessageRecord{
		MessageID: id,
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		CreatedAt: created,
	}); err != nil {
		slog.Warn("record message failed", "message", id, "error", err)
	}
}

package bus

import (
	"strings"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

// Topic layout: lifecycle events fan out under events.<category>.<action>,
// and external executors drive the orchestrator through request/reply on
// the single IPC subject.
const (
	TopicIPC = "taskhive.ipc"

	TopicEventsAll      = "events.>"
	TopicEventsTask     = "events.task.*"
	TopicEventsAgent    = "events.agent.*"
	TopicEventsWorkflow = "events.workflow.*"
)

// TopicEvent maps an orchestrator event type onto its subject, e.g.
// task_completed becomes events.task.completed and agent_status_changed
// becomes events.agent.status_changed.
func TopicEvent(t orchestrator.EventType) string {
	category, action, ok := strings.Cut(string(t), "_")
	if !ok {
		return "events." + string(t)
	}
	return "events." + category + "." + action
}

package orchestrator

import "time"

type EventType string

const (
	EventAgentCreated          EventType = "agent_created"
	EventAgentDestroyed        EventType = "agent_destroyed"
	EventAgentStatusChanged    EventType = "agent_status_changed"
	EventTaskCreated           EventType = "task_created"
	EventTaskAssigned          EventType = "task_assigned"
	EventTaskCompleted         EventType = "task_completed"
	EventTaskFailed            EventType = "task_failed"
	EventWorkflowStarted       EventType = "workflow_started"
	EventWorkflowStepCompleted EventType = "workflow_step_completed"
	EventWorkflowCompleted     EventType = "workflow_completed"
	EventWorkflowFailed        EventType = "workflow_failed"
	EventMessageSent           EventType = "message_sent"
)

// Event is a lifecycle notification. Delivery is fire-and-forget: listeners
// are invoked synchronously and must not block.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Listener receives orchestrator events. Listeners registered with Subscribe
// are owned by the orchestrator instance; there is no process-global bus.
type Listener func(Event)

// Subscribe registers a listener for all subsequent events.
func (o *Orchestrator) Subscribe(l Listener) {
	o.listenersMu.Lock()
	defer o.listenersMu.Unlock()
	o.listeners = append(o.listeners, l)
}

// publish builds and emits a single event.
func (o *Orchestrator) publish(t EventType, data map[string]any) {
	o.Emit(Event{Type: t, Timestamp: time.Now().UTC(), Data: data})
}

// Emit delivers an event to every registered listener. Exported so that
// collaborators built on top of the orchestrator (the workflow engine) can
// share its event surface.
func (o *Orchestrator) Emit(ev Event) {
	o.listenersMu.RLock()
	listeners := make([]Listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.listenersMu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
	"github.com/nats-io/nats.go"
)

// IPCCommand is the request envelope on the IPC subject.
type IPCCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IPC serves the request/reply surface external task executors use: they
// pick up assigned work through the event stream and report results back
// with complete_task and fail_task.
type IPC struct {
	orch *orchestrator.Orchestrator
	sub  *nats.Subscription
}

// ServeIPC subscribes the handler on the IPC subject.
func ServeIPC(client *Client, orch *orchestrator.Orchestrator) (*IPC, error) {
	ipc := &IPC{orch: orch}
	sub, err := client.Subscribe(TopicIPC, ipc.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe ipc: %w", err)
	}
	ipc.sub = sub
	return ipc, nil
}

func (i *IPC) Close() error {
	return i.sub.Unsubscribe()
}

func (i *IPC) handle(msg *nats.Msg) {
	var cmd IPCCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		slog.Warn("invalid IPC command", "error", err)
		i.respond(msg, map[string]any{"error": "invalid command"})
		return
	}

	slog.Info("IPC command received", "type", cmd.Type)

	switch cmd.Type {
	case "create_task":
		i.createTask(msg, cmd.Payload)
	case "list_tasks":
		i.listTasks(msg)
	case "get_task":
		i.getTask(msg, cmd.Payload)
	case "complete_task":
		i.completeTask(msg, cmd.Payload)
	case "fail_task":
		i.failTask(msg, cmd.Payload)
	case "cancel_task":
		i.cancelTask(msg, cmd.Payload)
	case "stats":
		i.respond(msg, map[string]any{"ok": true, "stats": i.orch.Stats()})
	default:
		slog.Warn("unknown IPC command", "type", cmd.Type)
		i.respond(msg, map[string]any{"error": "unknown command: " + cmd.Type})
	}
}

func (i *IPC) respond(msg *nats.Msg, data any) {
	resp, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal IPC response", "error", err)
		return
	}
	if err := msg.Respond(resp); err != nil {
		slog.Error("failed to respond to IPC", "error", err)
	}
}

func (i *IPC) createTask(msg *nats.Msg, payload json.RawMessage) {
	var def orchestrator.TaskDefinition
	if err := json.Unmarshal(payload, &def); err != nil {
		i.respond(msg, map[string]any{"error": "invalid payload"})
		return
	}
	if def.Name == "" {
		i.respond(msg, map[string]any{"error": "name is required"})
		return
	}

	id, err := i.orch.CreateTask(def)
	if err != nil {
		i.respond(msg, map[string]any{"error": fmt.Sprintf("create failed: %v", err)})
		return
	}
	if err := i.orch.QueueTask(id); err != nil {
		i.respond(msg, map[string]any{"error": fmt.Sprintf("queue failed: %v", err)})
		return
	}

	slog.Info("task created via IPC", "id", id, "name", def.Name)
	i.respond(msg, map[string]any{"ok": true, "id": id})
}

func (i *IPC) listTasks(msg *nats.Msg) {
	type taskEntry struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Agent    string `json:"agent,omitempty"`
		Priority string `json:"priority"`
	}

	tasks := i.orch.Tasks()
	entries := make([]taskEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, taskEntry{
			ID:       t.Definition.ID,
			Name:     t.Definition.Name,
			Status:   string(t.Status),
			Agent:    t.AssignedAgent,
			Priority: string(t.Definition.Priority),
		})
	}
	i.respond(msg, map[string]any{"ok": true, "tasks": entries})
}

func (i *IPC) getTask(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		i.respond(msg, map[string]any{"error": "id is required"})
		return
	}

	task, err := i.orch.Task(req.ID)
	if err != nil {
		i.respond(msg, map[string]any{"error": err.Error()})
		return
	}
	i.respond(msg, map[string]any{"ok": true, "task": task})
}

func (i *IPC) completeTask(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		ID     string         `json:"id"`
		Output map[string]any `json:"output,omitempty"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		i.respond(msg, map[string]any{"error": "id is required"})
		return
	}

	if err := i.orch.CompleteTask(req.ID, req.Output); err != nil {
		i.respond(msg, map[string]any{"error": err.Error()})
		return
	}
	i.respond(msg, map[string]any{"ok": true})
}

func (i *IPC) failTask(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		i.respond(msg, map[string]any{"error": "id is required"})
		return
	}

	if err := i.orch.FailTask(req.ID, req.Error); err != nil {
		i.respond(msg, map[string]any{"error": err.Error()})
		return
	}
	i.respond(msg, map[string]any{"ok": true})
}

func (i *IPC) cancelTask(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		i.respond(msg, map[string]any{"error": "id is required"})
		return
	}

	if err := i.orch.CancelTask(req.ID); err != nil {
		i.respond(msg, map[string]any{"error": err.Error()})
		return
	}
	i.respond(msg, map[string]any{"ok": true})
}

package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mtzanidakis/taskhive/internal/config"
	"github.com/mtzanidakis/taskhive/internal/orchestrator"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) (*Bus, *Client) {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    0, // Random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)
	return bus, client
}

func TestBusStartStop(t *testing.T) {
	bus, _ := newTestBus(t)
	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPubSub(t *testing.T) {
	_, client := newTestBus(t)

	received := make(chan string, 1)
	if _, err := client.Subscribe("test.topic", func(msg *nats.Msg) {
		received <- string(msg.Data)
	}); err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish("test.topic", []byte("hello")); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != "hello" {
			t.Errorf("expected 'hello', got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTopicEvent(t *testing.T) {
	cases := map[orchestrator.EventType]string{
		orchestrator.EventTaskCompleted:      "events.task.completed",
		orchestrator.EventAgentStatusChanged: "events.agent.status_changed",
		orchestrator.EventWorkflowStarted:    "events.workflow.started",
		orchestrator.EventMessageSent:        "events.message.sent",
	}
	for in, want := range cases {
		if got := TopicEvent(in); got != want {
			t.Errorf("TopicEvent(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestEventForwarder(t *testing.T) {
	_, client := newTestBus(t)

	o := orchestrator.New(config.OrchestratorConfig{})
	o.Subscribe(EventForwarder(client))

	received := make(chan orchestrator.Event, 1)
	if _, err := client.Subscribe(TopicEventsAgent, func(msg *nats.Msg) {
		var ev orchestrator.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Errorf("unmarshal event: %v", err)
			return
		}
		received <- ev
	}); err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := o.RegisterAgent(orchestrator.AgentDefinition{ID: "w1", Name: "w1", Role: "worker"}); err != nil {
		t.Fatalf("register agent: %v", err)
	}
	client.Flush()

	select {
	case ev := <-received:
		if ev.Type != orchestrator.EventAgentCreated {
			t.Errorf("expected agent_created, got %s", ev.Type)
		}
		if ev.Data["agent_id"] != "w1" {
			t.Errorf("unexpected event data: %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for forwarded event")
	}
}

func ipcRequest(t *testing.T, client *Client, reqType string, payload any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	data, err := json.Marshal(IPCCommand{Type: reqType, Payload: raw})
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}

	msg, err := client.Request(TopicIPC, data, 2*time.Second)
	if err != nil {
		t.Fatalf("ipc request %s: %v", reqType, err)
	}
	var resp map[string]any
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestIPCTaskLifecycle(t *testing.T) {
	_, client := newTestBus(t)

	o := orchestrator.New(config.OrchestratorConfig{})
	if err := o.RegisterAgent(orchestrator.AgentDefinition{ID: "w1", Name: "w1", Role: "worker"}); err != nil {
		t.Fatalf("register agent: %v", err)
	}
	o.Start()
	t.Cleanup(o.Stop)

	ipc, err := ServeIPC(client, o)
	if err != nil {
		t.Fatalf("serve ipc: %v", err)
	}
	t.Cleanup(func() { ipc.Close() })

	resp := ipcRequest(t, client, "create_task", map[string]any{
		"name":          "job",
		"required_role": "worker",
		"priority":      "high",
	})
	if resp["error"] != nil {
		t.Fatalf("create_task error: %v", resp["error"])
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("create_task returned no id: %v", resp)
	}

	resp = ipcRequest(t, client, "list_tasks", nil)
	tasks, _ := resp["tasks"].([]any)
	if len(tasks) != 1 {
		t.Fatalf("list_tasks = %v, want one entry", resp)
	}
	entry := tasks[0].(map[string]any)
	if entry["status"] != string(orchestrator.TaskInProgress) {
		t.Fatalf("task status = %v, want in_progress", entry["status"])
	}

	resp = ipcRequest(t, client, "complete_task", map[string]any{
		"id":     id,
		"output": map[string]any{"result": "done"},
	})
	if resp["ok"] != true {
		t.Fatalf("complete_task failed: %v", resp)
	}

	resp = ipcRequest(t, client, "get_task", map[string]any{"id": id})
	task, _ := resp["task"].(map[string]any)
	if task == nil || task["status"] != string(orchestrator.TaskCompleted) {
		t.Fatalf("get_task = %v, want completed", resp)
	}

	resp = ipcRequest(t, client, "bogus", nil)
	if resp["error"] == nil {
		t.Fatalf("expected error for unknown command, got %v", resp)
	}
}

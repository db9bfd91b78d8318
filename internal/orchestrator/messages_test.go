package orchestrator

import "testing"

func TestMessaging(t *testing.T) {
	o := newTestOrchestrator(t)

	o.SendMessage("a1", "a2", "direct to a2")
	o.SendMessage("a2", "", "broadcast from a2")
	o.SendMessage("a1", "", "broadcast from a1")
	o.SendMessage("a3", "a1", "direct to a1")

	// a2 sees the direct message and a1's broadcast, not its own.
	got := o.MessagesForAgent("a2")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages for a2, got %d", len(got))
	}
	if got[0].Content != "direct to a2" {
		t.Errorf("unexpected first message: %q", got[0].Content)
	}
	if got[1].Content != "broadcast from a1" {
		t.Errorf("unexpected second message: %q", got[1].Content)
	}

	// a1 sees a2's broadcast and a3's direct message.
	got = o.MessagesForAgent("a1")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages for a1, got %d", len(got))
	}
	for _, m := range got {
		if m.From == "a1" {
			t.Errorf("self-authored message leaked: %+v", m)
		}
		if m.ID == "" || m.Timestamp.IsZero() {
			t.Errorf("message missing id or timestamp: %+v", m)
		}
	}
}

func TestMessageSentEvent(t *testing.T) {
	o := newTestOrchestrator(t)

	var events []Event
	o.Subscribe(func(ev Event) { events = append(events, ev) })

	msg := o.SendMessage("a1", "", "hello all")

	if len(events) != 1 || events[0].Type != EventMessageSent {
		t.Fatalf("expected one message_sent event, got %v", events)
	}
	if events[0].Data["message_id"] != msg.ID {
		t.Errorf("event carries wrong id: %v", events[0].Data)
	}
	if events[0].Data["broadcast"] != true {
		t.Errorf("expected broadcast flag, got %v", events[0].Data)
	}
}

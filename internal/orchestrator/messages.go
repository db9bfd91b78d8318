package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry in the flat inter-agent mailbox. An empty To means
// broadcast. Retention is in-memory only; there is no delivery or read
// tracking at this layer.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SendMessage appends a message to the mailbox and emits message_sent.
func (o *Orchestrator) SendMessage(from, to, content string) Message {
	msg := Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: time.Now(),
	}

	o.mu.Lock()
	o.messages = append(o.messages, msg)
	o.mu.Unlock()

	o.publish(EventMessageSent, map[string]any{
		"message_id": msg.ID,
		"from":       from,
		"to":         to,
		"content":    content,
		"broadcast":  to == "",
	})
	return msg
}

// MessagesForAgent returns every message addressed to the agent or broadcast,
// excluding the agent's own, in send order.
func (o *Orchestrator) MessagesForAgent(id string) []Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []Message
	for _, m := range o.messages {
		if m.From == id {
			continue
		}
		if m.To == id || m.To == "" {
			out = append(out, m)
		}
	}
	return out
}

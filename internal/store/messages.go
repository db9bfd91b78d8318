package store

import (
	"fmt"
	"time"
)

// MessageRecord is one persisted inter-agent message. An empty recipient
// marks a broadcast.
type MessageRecord struct {
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) SaveMessage(m *MessageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_messages (message_id, sender, recipient, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.MessageID, m.Sender, m.Recipient, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(limit int) ([]MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT message_id, sender, recipient, content, created_at
		FROM agent_messages ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []MessageRecord
	for rows.Next() {
		m := MessageRecord{}
		var recipient *string
		if err := rows.Scan(&m.MessageID, &m.Sender, &recipient, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if recipient != nil {
			m.Recipient = *recipient
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

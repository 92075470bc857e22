// Package events publishes pipeline outcome events to a topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Message is one published event, retained by the memory publisher for
// inspection.
type Message struct {
	ID      string
	Topic   string
	Payload []byte
}

// Memory collects published events in-process. Development and tests only.
type Memory struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemory creates the in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records the event and returns a generated message id.
func (m *Memory) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.messages = append(m.messages, Message{ID: id, Topic: topic, Payload: data})
	m.mu.Unlock()
	return id, nil
}

// Messages returns a copy of everything published so far.
func (m *Memory) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.messages...)
}

// Package chat holds the conversation log of a session.
package chat

import (
	"sync"
	"time"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	AttemptID string    `json:"attemptId,omitempty"` // swap attempt the message reports on
	At        time.Time `json:"at"`
}

// Log is an append-only conversation. Safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewLog creates an empty conversation.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append records a message, stamping its time if unset.
func (l *Log) Append(m Message) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m.At.IsZero() {
		m.At = l.now()
	}
	l.messages = append(l.messages, m)
	return m
}

// User records a user message.
func (l *Log) User(content string) Message {
	return l.Append(Message{Role: RoleUser, Content: content})
}

// Assistant records an assistant message about an attempt. attemptID may be empty.
func (l *Log) Assistant(content, attemptID string) Message {
	return l.Append(Message{Role: RoleAssistant, Content: content, AttemptID: attemptID})
}

// Messages returns a copy of the conversation.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Last returns a copy of the most recent n messages.
func (l *Log) Last(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(l.messages) {
		n = len(l.messages)
	}
	out := make([]Message, n)
	copy(out, l.messages[len(l.messages)-n:])
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

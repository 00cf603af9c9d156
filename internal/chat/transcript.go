package chat

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation. Failed marks an assistant turn
// whose answer could not be produced.
type Message struct {
	Role    Role
	Content string
	Failed  bool
	At      time.Time
}

// Transcript is an append-only conversation log, safe to read while the
// orchestrator appends.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	t.messages = append(t.messages, m)
	t.mu.Unlock()
}

// Messages returns a copy of the turns so far, oldest first.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawofthedmz/Therabot/internal/model/chat"
)

// Log is the append-only transcript for the active session. Insertion order
// is display order; entries are only removed by Reset.
type Log struct {
	mu       sync.RWMutex
	messages []chat.Message
}

// NewLog bootstraps an empty in-memory transcript.
func NewLog() *Log {
	return &Log{messages: make([]chat.Message, 0, 16)}
}

// Append records a message and returns the stored copy with its minted ID.
func (l *Log) Append(sender chat.Sender, text, mood string) chat.Message {
	message := chat.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Mood:      mood,
		CreatedAt: time.Now().UTC(),
	}

	l.mu.Lock()
	l.messages = append(l.messages, message)
	l.mu.Unlock()

	return message
}

// Messages returns a copy of the transcript in append order.
func (l *Log) Messages() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	copied := make([]chat.Message, len(l.messages))
	copy(copied, l.messages)
	return copied
}

// Len reports the number of stored messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the most recent message, if any.
func (l *Log) Last() (chat.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.messages) == 0 {
		return chat.Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Reset discards the transcript. Only an explicit session restart calls this.
func (l *Log) Reset() {
	l.mu.Lock()
	l.messages = l.messages[:0]
	l.mu.Unlock()
}

// Render formats the transcript for terminal output, one line per message.
func (l *Log) Render() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	for _, m := range l.messages {
		b.WriteString(string(m.Sender))
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

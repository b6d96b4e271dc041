package domain

import (
	"strings"
	"time"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Label returns the prefix used when the message is rendered into a prompt.
func (s Sender) Label() string {
	if s == SenderUser {
		return "User"
	}
	return "AI"
}

// Message is a single immutable entry of a session's history.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// FormatContext renders messages in order as "User: ...\n" / "AI: ...\n"
// lines. An empty slice yields "".
func FormatContext(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Sender.Label())
		b.WriteString(": ")
		b.WriteString(m.Body)
		b.WriteByte('\n')
	}
	return b.String()
}

package domain

import (
	"strings"
	"time"
)

// CommandPrefix is the trigger character for bot commands. Messages starting
// with it are never classified.
const CommandPrefix = "!"

// Message represents a chat message entity
type Message struct {
	ID         string
	ChatID     string
	Content    string
	SenderID   string
	SenderName string
	CreateTime time.Time
	IsBot      bool // Whether the message was sent by a bot or app account
}

// IsSubstantive reports whether the message is worth classifying: not from
// an automated account, not a command invocation, and not empty after
// trimming. The command check is a prefix match on the raw text, not a
// command-grammar parse.
func (m *Message) IsSubstantive() bool {
	if m.IsBot {
		return false
	}
	if strings.HasPrefix(m.Content, CommandPrefix) {
		return false
	}
	return strings.TrimSpace(m.Content) != ""
}

// InWindow checks if the message falls at or after the cutoff instant.
func (m *Message) InWindow(since time.Time) bool {
	return !m.CreateTime.Before(since)
}

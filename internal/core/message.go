package core

import "time"

// Sender identifies the author of a message.
type Sender struct {
	ID   string
	Name string
}

// Message is the domain model for a chat message.
// Exactly one of ProjectID and RecipientID is set.
type Message struct {
	ID          string
	ProjectID   string
	RecipientID string
	Sender      Sender
	Content     string
	CreatedAt   time.Time
}

// Scope returns the chat scope the message belongs to as seen by user self.
func (m Message) Scope(self string) Scope {
	if m.ProjectID != "" {
		return ProjectScope(m.ProjectID)
	}
	if m.Sender.ID == self {
		return DirectScope(m.RecipientID)
	}
	return DirectScope(m.Sender.ID)
}

// Conversation summarizes the latest state of a direct-message thread.
type Conversation struct {
	Partner     Sender
	LastMessage *Message
	UnreadCount int
}

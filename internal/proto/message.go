package proto

import (
	"encoding/json"
	"time"
)

// Frame is the envelope for every realtime message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	// Client to server.
	EventJoinProject  = "join-project"
	EventLeaveProject = "leave-project"
	EventSendMessage  = "send-message"

	// Server to client.
	EventNewMessage = "new-message"
	EventNewTask    = "new-task"
	EventError      = "error"
)

// JoinData requests membership of a project room. Also used for leave-project.
type JoinData struct {
	ProjectID string `json:"projectId"`
}

// SendMessageData echoes a persisted message so other room members receive it.
type SendMessageData struct {
	ProjectID string  `json:"projectId"`
	Message   Message `json:"message"`
}

// Sender is the author of a message.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is the JSON shape of a chat message, shared by REST responses and pushes.
type Message struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId,omitempty"`
	RecipientID string    `json:"recipientId,omitempty"`
	Sender      Sender    `json:"sender"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Task is the JSON shape of a task summary.
type Task struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Status    string    `json:"status,omitempty"`
	Assignee  string    `json:"assignee,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Error describes a protocol-level error frame.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame marshals data into a frame for event.
func NewFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}

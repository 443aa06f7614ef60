package proto

import (
	"encoding/json"
	"fmt"

	"github.com/teamflow/teamflow-cli/internal/core"
)

// MessageFromCore converts a domain message to its wire shape.
func MessageFromCore(m core.Message) Message {
	return Message{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		RecipientID: m.RecipientID,
		Sender:      Sender{ID: m.Sender.ID, Name: m.Sender.Name},
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// Core converts the wire message to the domain model.
func (m Message) Core() core.Message {
	return core.Message{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		RecipientID: m.RecipientID,
		Sender:      core.Sender{ID: m.Sender.ID, Name: m.Sender.Name},
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

// TaskFromCore converts a domain task to its wire shape.
func TaskFromCore(t core.Task) Task {
	return Task{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    t.Status,
		Assignee:  t.Assignee,
		CreatedAt: t.CreatedAt,
	}
}

// Core converts the wire task to the domain model.
func (t Task) Core() core.Task {
	return core.Task{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Status:    t.Status,
		Assignee:  t.Assignee,
		CreatedAt: t.CreatedAt,
	}
}

// EventFromFrame decodes an inbound server frame.
// ok is false for event names the client does not consume.
func EventFromFrame(frame Frame) (event core.Event, ok bool, err error) {
	switch frame.Event {
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return core.Event{}, false, fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		return core.Event{
			Kind:    core.EventNewMessage,
			Room:    msg.ProjectID,
			Message: msg.Core(),
		}, true, nil
	case EventNewTask:
		var task Task
		if err := json.Unmarshal(frame.Data, &task); err != nil {
			return core.Event{}, false, fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		t := task.Core()
		return core.Event{Kind: core.EventNewTask, Room: task.ProjectID, Task: &t}, true, nil
	case EventError:
		var e Error
		if err := json.Unmarshal(frame.Data, &e); err != nil {
			return core.Event{}, false, fmt.Errorf("decode %s: %w", frame.Event, err)
		}
		return core.Event{
			Kind:  core.EventError,
			Error: &core.ServerError{Code: e.Code, Message: e.Message},
		}, true, nil
	default:
		return core.Event{}, false, nil
	}
}

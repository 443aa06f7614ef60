package http

import (
	"strconv"
	"time"

	"github.com/teamflow/teamflow-cli/internal/proto"
	"github.com/teamflow/teamflow-cli/internal/store"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ConversationResponse represents a direct thread summary.
type ConversationResponse struct {
	Partner     proto.Sender   `json:"partner"`
	LastMessage *proto.Message `json:"lastMessage,omitempty"`
	UnreadCount int            `json:"unreadCount"`
}

// NotificationResponse represents a notification feed item.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileResponse represents uploaded file metadata.
type FileResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func userToResponse(u *store.User) UserResponse {
	return UserResponse{ID: formatID(u.ID), Name: u.Name, Email: u.Email}
}

func projectToResponse(p *store.Project) ProjectResponse {
	return ProjectResponse{ID: formatID(p.ID), Name: p.Name, Description: p.Description}
}

func messageToProto(m *store.Message) proto.Message {
	msg := proto.Message{
		ID:        formatID(m.ID),
		Sender:    proto.Sender{ID: formatID(m.SenderID), Name: m.SenderName},
		Content:   m.Body,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.ProjectID != nil {
		msg.ProjectID = formatID(*m.ProjectID)
	}
	if m.RecipientID != nil {
		msg.RecipientID = formatID(*m.RecipientID)
	}
	return msg
}

func messagesToProto(in []*store.Message) []proto.Message {
	out := make([]proto.Message, 0, len(in))
	for _, m := range in {
		out = append(out, messageToProto(m))
	}
	return out
}

func taskToProto(t *store.Task) proto.Task {
	task := proto.Task{
		ID:        formatID(t.ID),
		ProjectID: formatID(t.ProjectID),
		Title:     t.Title,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UTC(),
	}
	if t.AssigneeID != nil {
		task.Assignee = formatID(*t.AssigneeID)
	}
	return task
}

func conversationToResponse(c *store.Conversation) ConversationResponse {
	last := messageToProto(&c.LastMessage)
	return ConversationResponse{
		Partner:     proto.Sender{ID: formatID(c.Partner.ID), Name: c.Partner.Name},
		LastMessage: &last,
		UnreadCount: c.UnreadCount,
	}
}

func notificationToResponse(n *store.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        formatID(n.ID),
		Kind:      n.Kind,
		Text:      n.Text,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
}

func fileToResponse(f *store.File) FileResponse {
	return FileResponse{
		ID:        f.ID,
		ProjectID: formatID(f.ProjectID),
		Name:      f.Name,
		Size:      f.Size,
		URL:       "/api/files/" + f.ID,
	}
}

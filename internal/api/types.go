package api

import (
	"time"

	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/proto"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p profileResponse) core() core.Profile {
	return core.Profile{ID: p.ID, Name: p.Name, Email: p.Email}
}

type loginResponse struct {
	Token string          `json:"token"`
	User  profileResponse `json:"user"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type createTaskRequest struct {
	Title string `json:"title"`
}

type projectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type conversationResponse struct {
	Partner     proto.Sender   `json:"partner"`
	LastMessage *proto.Message `json:"lastMessage,omitempty"`
	UnreadCount int            `json:"unreadCount"`
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type fileResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

func messagesToCore(in []proto.Message) []core.Message {
	out := make([]core.Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.Core())
	}
	return out
}

package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/proto"
)

// Login exchanges credentials for a bearer token. It does not touch the session store.
func (c *Client) Login(ctx context.Context, email, password string) (string, core.Profile, error) {
	var resp loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, &resp, false)
	if err != nil {
		return "", core.Profile{}, err
	}
	if resp.Token == "" {
		return "", core.Profile{}, fmt.Errorf("login: empty token in response")
	}
	return resp.Token, resp.User.core(), nil
}

// Me returns the profile bound to the current token.
func (c *Client) Me(ctx context.Context) (core.Profile, error) {
	var resp profileResponse
	if err := c.getJSON(ctx, "/api/users/me", &resp); err != nil {
		return core.Profile{}, err
	}
	return resp.core(), nil
}

// Projects lists the projects the user belongs to.
func (c *Client) Projects(ctx context.Context) ([]core.Project, error) {
	var resp []projectResponse
	if err := c.getJSON(ctx, "/api/projects", &resp); err != nil {
		return nil, err
	}
	projects := make([]core.Project, 0, len(resp))
	for _, p := range resp {
		projects = append(projects, core.Project{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return projects, nil
}

// Tasks lists the tasks of a project.
func (c *Client) Tasks(ctx context.Context, projectID string) ([]core.Task, error) {
	var resp []proto.Task
	if err := c.getJSON(ctx, "/api/projects/"+url.PathEscape(projectID)+"/tasks", &resp); err != nil {
		return nil, err
	}
	tasks := make([]core.Task, 0, len(resp))
	for _, t := range resp {
		tasks = append(tasks, t.Core())
	}
	return tasks, nil
}

// CreateTask creates a task; the server pushes new-task to the project room.
func (c *Client) CreateTask(ctx context.Context, projectID, title string) (core.Task, error) {
	var resp proto.Task
	if err := c.postJSON(ctx, "/api/projects/"+url.PathEscape(projectID)+"/tasks", createTaskRequest{Title: title}, &resp); err != nil {
		return core.Task{}, err
	}
	return resp.Core(), nil
}

// ProjectMessages fetches the ordered chat history of a project.
func (c *Client) ProjectMessages(ctx context.Context, projectID string) ([]core.Message, error) {
	var resp []proto.Message
	if err := c.getJSON(ctx, "/api/projects/"+url.PathEscape(projectID)+"/messages", &resp); err != nil {
		return nil, err
	}
	return messagesToCore(resp), nil
}

// SendProjectMessage persists a project chat message and returns it with its server id.
func (c *Client) SendProjectMessage(ctx context.Context, projectID, content string) (core.Message, error) {
	var resp proto.Message
	if err := c.postJSON(ctx, "/api/projects/"+url.PathEscape(projectID)+"/messages", sendMessageRequest{Content: content}, &resp); err != nil {
		return core.Message{}, err
	}
	return resp.Core(), nil
}

// DirectMessages fetches the ordered thread with peerID.
func (c *Client) DirectMessages(ctx context.Context, peerID string) ([]core.Message, error) {
	var resp []proto.Message
	if err := c.getJSON(ctx, "/api/messages/direct/"+url.PathEscape(peerID), &resp); err != nil {
		return nil, err
	}
	return messagesToCore(resp), nil
}

// SendDirectMessage persists a direct message to peerID.
func (c *Client) SendDirectMessage(ctx context.Context, peerID, content string) (core.Message, error) {
	var resp proto.Message
	if err := c.postJSON(ctx, "/api/messages/direct/"+url.PathEscape(peerID), sendMessageRequest{Content: content}, &resp); err != nil {
		return core.Message{}, err
	}
	return resp.Core(), nil
}

// History fetches the message history of any scope.
func (c *Client) History(ctx context.Context, scope core.Scope) ([]core.Message, error) {
	switch scope.Kind {
	case core.ScopeProject:
		return c.ProjectMessages(ctx, scope.ID)
	case core.ScopeDirect:
		return c.DirectMessages(ctx, scope.ID)
	default:
		return nil, fmt.Errorf("unsupported scope %s", scope)
	}
}

// Send persists a message in any scope.
func (c *Client) Send(ctx context.Context, scope core.Scope, content string) (core.Message, error) {
	switch scope.Kind {
	case core.ScopeProject:
		return c.SendProjectMessage(ctx, scope.ID, content)
	case core.ScopeDirect:
		return c.SendDirectMessage(ctx, scope.ID, content)
	default:
		return core.Message{}, fmt.Errorf("unsupported scope %s", scope)
	}
}

// Conversations lists direct-message thread summaries.
func (c *Client) Conversations(ctx context.Context) ([]core.Conversation, error) {
	var resp []conversationResponse
	if err := c.getJSON(ctx, "/api/messages/conversations", &resp); err != nil {
		return nil, err
	}
	convs := make([]core.Conversation, 0, len(resp))
	for _, r := range resp {
		conv := core.Conversation{
			Partner:     core.Sender{ID: r.Partner.ID, Name: r.Partner.Name},
			UnreadCount: r.UnreadCount,
		}
		if r.LastMessage != nil {
			last := r.LastMessage.Core()
			conv.LastMessage = &last
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// Notifications lists the user's notifications.
func (c *Client) Notifications(ctx context.Context) ([]core.Notification, error) {
	var resp []notificationResponse
	if err := c.getJSON(ctx, "/api/notifications", &resp); err != nil {
		return nil, err
	}
	out := make([]core.Notification, 0, len(resp))
	for _, n := range resp {
		out = append(out, core.Notification{ID: n.ID, Kind: n.Kind, Text: n.Text, Read: n.Read, CreatedAt: n.CreatedAt})
	}
	return out, nil
}

// UploadFile sends content as a multipart upload to a project.
func (c *Client) UploadFile(ctx context.Context, projectID, name string, content io.Reader) (core.File, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/projects/"+url.PathEscape(projectID)+"/files", pr)
	if err != nil {
		pr.Close()
		return core.File{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp fileResponse
	if err := c.do(req, &resp, true); err != nil {
		pr.CloseWithError(err)
		return core.File{}, err
	}
	return core.File{ID: resp.ID, ProjectID: resp.ProjectID, Name: resp.Name, Size: resp.Size, URL: resp.URL}, nil
}

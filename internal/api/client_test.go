package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflow/teamflow-cli/internal/backendtest"
	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/session"
)

func clientFor(t *testing.T, baseURL string, u *backendtest.User) *Client {
	t.Helper()
	sess := session.NewStore("")
	if u != nil {
		require.NoError(t, sess.Set(u.Token, core.Profile{ID: u.ID, Name: u.Name, Email: u.Email}))
	}
	return New(Config{BaseURL: baseURL + "/", Timeout: 5 * time.Second}, sess, nil)
}

func TestNoSessionFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	c := clientFor(t, ts.URL, nil)
	_, err := c.Projects(context.Background())
	assert.ErrorIs(t, err, core.ErrNoSession)
	assert.True(t, IsAuthFailure(err))
	assert.Zero(t, hits.Load())
}

func TestHeadersAndErrorMapping(t *testing.T) {
	var (
		mu                    sync.Mutex
		gotAuth, gotRequestID string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		mu.Unlock()
		switch r.URL.Path {
		case "/api/users/me":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
		case "/api/projects":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}
	}))
	defer ts.Close()

	c := clientFor(t, ts.URL, &backendtest.User{ID: "1", Token: "tok"})
	ctx := context.Background()

	_, err := c.Me(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.True(t, IsAuthFailure(err))
	mu.Lock()
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	mu.Unlock()

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "invalid token", httpErr.Message)

	_, err = c.Projects(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, IsAuthFailure(err))

	_, err = c.Notifications(ctx)
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "boom", httpErr.Message)
}

func TestLoginAgainstBackend(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")

	c := clientFor(t, b.URL(), nil)
	ctx := context.Background()

	_, _, err := c.Login(ctx, alice.Email, "nope")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	token, profile, err := c.Login(ctx, alice.Email, "password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, core.Profile{ID: alice.ID, Name: "Alice", Email: alice.Email}, profile)

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, core.ErrNoSession, "login must not write the session")
}

func TestHistoryAndSendByScope(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")
	launch := b.AddProject("Launch", alice, bob)

	c := clientFor(t, b.URL(), &alice)
	ctx := context.Background()

	first, err := c.Send(ctx, core.ProjectScope(launch), "hello")
	require.NoError(t, err)
	second, err := c.Send(ctx, core.ProjectScope(launch), "again")
	require.NoError(t, err)
	assert.Equal(t, launch, first.ProjectID)
	assert.Equal(t, alice.ID, first.Sender.ID)

	history, err := c.History(ctx, core.ProjectScope(launch))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{first.ID, second.ID}, []string{history[0].ID, history[1].ID})

	dm, err := c.Send(ctx, core.DirectScope(bob.ID), "psst")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, dm.RecipientID)
	assert.Equal(t, core.DirectScope(bob.ID), dm.Scope(alice.ID))

	thread, err := c.History(ctx, core.DirectScope(bob.ID))
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "psst", thread[0].Content)

	bobClient := clientFor(t, b.URL(), &bob)
	convs, err := bobClient.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, alice.ID, convs[0].Partner.ID)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "psst", convs[0].LastMessage.Content)
	assert.Equal(t, 1, convs[0].UnreadCount)

	_, err = c.History(ctx, core.ProjectScope("999"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestProjectsTasksAndNotifications(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")
	launch := b.AddProject("Launch", alice, bob)

	c := clientFor(t, b.URL(), &alice)
	ctx := context.Background()

	projects, err := c.Projects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, core.Project{ID: launch, Name: "Launch"}, projects[0])

	task, err := c.CreateTask(ctx, launch, "Write docs")
	require.NoError(t, err)
	assert.Equal(t, "Write docs", task.Title)
	assert.Equal(t, launch, task.ProjectID)

	tasks, err := c.Tasks(ctx, launch)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	feed, err := clientFor(t, b.URL(), &bob).Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Contains(t, feed[0].Text, "Write docs")
}

func TestUploadFile(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	launch := b.AddProject("Launch", alice)

	c := clientFor(t, b.URL(), &alice)
	file, err := c.UploadFile(context.Background(), launch, "notes.txt", strings.NewReader("release notes"))
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", file.Name)
	assert.Equal(t, int64(len("release notes")), file.Size)
	assert.Equal(t, launch, file.ProjectID)
	assert.Equal(t, "/api/files/"+file.ID, file.URL)
}

// Package backendtest starts an in-process TeamFlow backend for tests.
package backendtest

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/devserver"
	"github.com/teamflow/teamflow-cli/internal/proto"
	"github.com/teamflow/teamflow-cli/internal/store"
)

// Options tunes the backend.
type Options struct {
	// EchoToSender relays send-message frames back to their sender too.
	EchoToSender  bool
	HistoryLimit  int
	SendRateLimit int
	Logger        *zerolog.Logger
}

// User is a seeded account with a ready-to-use token.
type User struct {
	ID       string
	Name     string
	Email    string
	Password string
	Token    string
}

// Backend is a running fake backend bound to a test.
type Backend struct {
	t   testing.TB
	srv *devserver.Server
	ts  *httptest.Server
}

// Start launches a backend on a loopback port. It is shut down by t.Cleanup.
func Start(t testing.TB, opts Options) *Backend {
	t.Helper()

	cfg := devserver.DefaultConfig()
	cfg.DatabasePath = ":memory:"
	cfg.JWTSecret = "backendtest-secret"
	cfg.TokenTTL = time.Hour
	cfg.EchoToSender = opts.EchoToSender
	cfg.HistoryLimit = opts.HistoryLimit
	cfg.SendRateLimit = opts.SendRateLimit

	srv, err := devserver.New(cfg, opts.Logger)
	if err != nil {
		t.Fatalf("start backend: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.Hub().DisconnectAll()
		ts.Close()
		srv.Close()
	})

	return &Backend{t: t, srv: srv, ts: ts}
}

// URL is the REST base URL.
func (b *Backend) URL() string {
	return b.ts.URL
}

// RealtimeURL is the websocket endpoint.
func (b *Backend) RealtimeURL() string {
	return "ws" + strings.TrimPrefix(b.ts.URL, "http") + "/ws"
}

// Store exposes the backing store.
func (b *Backend) Store() store.Store {
	return b.srv.Store()
}

// AddUser registers an account and returns it with a token.
func (b *Backend) AddUser(name, email, password string) User {
	b.t.Helper()

	token, user, err := b.srv.Auth().Register(context.Background(), name, email, password)
	if err != nil {
		b.t.Fatalf("add user %s: %v", email, err)
	}
	return User{
		ID:       strconv.FormatInt(user.ID, 10),
		Name:     user.Name,
		Email:    user.Email,
		Password: password,
		Token:    token,
	}
}

// AddProject creates a project with the given members and returns its id.
func (b *Backend) AddProject(name string, members ...User) string {
	b.t.Helper()

	ctx := context.Background()
	project, err := b.srv.Store().CreateProject(ctx, name, "")
	if err != nil {
		b.t.Fatalf("add project %s: %v", name, err)
	}
	for _, m := range members {
		if err := b.srv.Store().AddMember(ctx, project.ID, mustID(b.t, m.ID)); err != nil {
			b.t.Fatalf("add member %s: %v", m.Email, err)
		}
	}
	return strconv.FormatInt(project.ID, 10)
}

// SaveProjectMessage persists a message the way a REST post would, without relaying it.
func (b *Backend) SaveProjectMessage(from User, projectID, content string) proto.Message {
	b.t.Helper()

	msg, err := b.srv.Store().SaveProjectMessage(context.Background(), mustID(b.t, projectID), mustID(b.t, from.ID), content)
	if err != nil {
		b.t.Fatalf("save message: %v", err)
	}
	return proto.Message{
		ID:        strconv.FormatInt(msg.ID, 10),
		ProjectID: projectID,
		Sender:    proto.Sender{ID: from.ID, Name: msg.SenderName},
		Content:   msg.Body,
		CreatedAt: msg.CreatedAt.UTC(),
	}
}

// Broadcast pushes a new-message frame to every connection joined to the
// message's project, the way a teammate's relay would. It returns the number
// of connections reached.
func (b *Backend) Broadcast(msg proto.Message) int {
	b.t.Helper()

	frame, err := proto.NewFrame(proto.EventNewMessage, msg)
	if err != nil {
		b.t.Fatalf("encode frame: %v", err)
	}
	return b.srv.Hub().Broadcast(msg.ProjectID, frame, nil)
}

// RoomSize returns how many connections are joined to a project room.
func (b *Backend) RoomSize(projectID string) int {
	return b.srv.Hub().RoomSize(projectID)
}

// DropConnections abruptly closes every realtime connection, simulating a network drop.
func (b *Backend) DropConnections() int {
	return b.srv.Hub().DisconnectAll()
}

// WaitRoomSize polls until the room has n connections or the timeout passes.
func (b *Backend) WaitRoomSize(projectID string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.RoomSize(projectID) == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return b.RoomSize(projectID) == n
}

func mustID(t testing.TB, s string) int64 {
	t.Helper()
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		t.Fatalf("invalid id %q: %v", s, err)
	}
	return id
}

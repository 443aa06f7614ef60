package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/teamflow/teamflow-cli/internal/backendtest"
	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/proto"
	transporthttp "github.com/teamflow/teamflow-cli/internal/transport/http"
)

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, wantStatus int) T {
	t.Helper()

	var out T
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", wantStatus, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func dialWS(t *testing.T, b *backendtest.Backend, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.Dial(ctx, b.RealtimeURL(), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	frame, err := proto.NewFrame(event, data)
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) proto.Frame {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var frame proto.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestHealth(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})

	resp := doRequest(t, http.MethodGet, b.URL()+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")

	resp := doRequest(t, http.MethodPost, b.URL()+"/api/auth/login", "", transporthttp.LoginRequest{Email: alice.Email, Password: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodPost, b.URL()+"/api/auth/login", "", transporthttp.LoginRequest{Email: alice.Email, Password: "password"})
	login := decode[transporthttp.AuthResponse](t, resp, http.StatusOK)
	if login.Token == "" || login.User.ID != alice.ID || login.User.Name != "Alice" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	me := decode[transporthttp.UserResponse](t, doRequest(t, http.MethodGet, b.URL()+"/api/users/me", login.Token, nil), http.StatusOK)
	if me.Email != alice.Email {
		t.Fatalf("unexpected profile: %+v", me)
	}

	resp = doRequest(t, http.MethodGet, b.URL()+"/api/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp = doRequest(t, http.MethodGet, b.URL()+"/api/users/me", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestProjectMessagesRequireMembership(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")
	launch := b.AddProject("Launch", alice)

	url := b.URL() + "/api/projects/" + launch + "/messages"
	sent := decode[proto.Message](t, doRequest(t, http.MethodPost, url, alice.Token, transporthttp.SendMessageRequest{Content: "  hi  "}), http.StatusCreated)
	if sent.Content != "hi" || sent.ProjectID != launch || sent.Sender.ID != alice.ID {
		t.Fatalf("unexpected message: %+v", sent)
	}

	history := decode[[]proto.Message](t, doRequest(t, http.MethodGet, url, alice.Token, nil), http.StatusOK)
	if len(history) != 1 || history[0].ID != sent.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	if resp := doRequest(t, http.MethodGet, url, bob.Token, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, b.URL()+"/api/projects/999/messages", alice.Token, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodPost, url, alice.Token, transporthttp.SendMessageRequest{Content: "   "}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank content, got %d", resp.StatusCode)
	}

	projects := decode[[]transporthttp.ProjectResponse](t, doRequest(t, http.MethodGet, b.URL()+"/api/projects", bob.Token, nil), http.StatusOK)
	if len(projects) != 0 {
		t.Fatalf("bob should see no projects, got %+v", projects)
	}
}

func TestCreateTaskPushesAndNotifies(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")
	launch := b.AddProject("Launch", alice, bob)

	conn := dialWS(t, b, bob.Token)
	writeFrame(t, conn, proto.EventJoinProject, proto.JoinData{ProjectID: launch})
	if !b.WaitRoomSize(launch, 1, time.Second) {
		t.Fatalf("bob did not join the room")
	}

	url := b.URL() + "/api/projects/" + launch + "/tasks"
	task := decode[proto.Task](t, doRequest(t, http.MethodPost, url, alice.Token, transporthttp.CreateTaskRequest{Title: "Write docs"}), http.StatusCreated)
	if task.Title != "Write docs" || task.Status != "todo" || task.ProjectID != launch {
		t.Fatalf("unexpected task: %+v", task)
	}

	frame := readFrame(t, conn)
	if frame.Event != proto.EventNewTask {
		t.Fatalf("expected new-task, got %s", frame.Event)
	}
	var pushed proto.Task
	if err := json.Unmarshal(frame.Data, &pushed); err != nil || pushed.ID != task.ID {
		t.Fatalf("unexpected pushed task %+v (%v)", pushed, err)
	}

	tasks := decode[[]proto.Task](t, doRequest(t, http.MethodGet, url, bob.Token, nil), http.StatusOK)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}

	feed := decode[[]transporthttp.NotificationResponse](t, doRequest(t, http.MethodGet, b.URL()+"/api/notifications", bob.Token, nil), http.StatusOK)
	if len(feed) != 1 || !strings.Contains(feed[0].Text, "Write docs") {
		t.Fatalf("unexpected notifications: %+v", feed)
	}
	own := decode[[]transporthttp.NotificationResponse](t, doRequest(t, http.MethodGet, b.URL()+"/api/notifications", alice.Token, nil), http.StatusOK)
	if len(own) != 0 {
		t.Fatalf("creator should not be notified, got %+v", own)
	}
}

func TestDirectMessagesAndConversations(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")

	toBob := b.URL() + "/api/messages/direct/" + bob.ID
	sent := decode[proto.Message](t, doRequest(t, http.MethodPost, toBob, alice.Token, transporthttp.SendMessageRequest{Content: "hey"}), http.StatusCreated)
	if sent.RecipientID != bob.ID || sent.ProjectID != "" {
		t.Fatalf("unexpected direct message: %+v", sent)
	}

	convs := decode[[]transporthttp.ConversationResponse](t, doRequest(t, http.MethodGet, b.URL()+"/api/messages/conversations", bob.Token, nil), http.StatusOK)
	if len(convs) != 1 || convs[0].Partner.ID != alice.ID || convs[0].UnreadCount != 1 || convs[0].LastMessage.Content != "hey" {
		t.Fatalf("unexpected conversations: %+v", convs)
	}

	thread := decode[[]proto.Message](t, doRequest(t, http.MethodGet, b.URL()+"/api/messages/direct/"+alice.ID, bob.Token, nil), http.StatusOK)
	if len(thread) != 1 || thread[0].ID != sent.ID {
		t.Fatalf("unexpected thread: %+v", thread)
	}

	convs = decode[[]transporthttp.ConversationResponse](t, doRequest(t, http.MethodGet, b.URL()+"/api/messages/conversations", bob.Token, nil), http.StatusOK)
	if convs[0].UnreadCount != 0 {
		t.Fatalf("thread should be read after fetching it, got %d unread", convs[0].UnreadCount)
	}

	if resp := doRequest(t, http.MethodGet, b.URL()+"/api/messages/direct/424242", alice.Token, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown peer, got %d", resp.StatusCode)
	}
}

func TestUploadFile(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	launch := b.AddProject("Launch", alice)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = part.Write([]byte("release notes"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, b.URL()+"/api/projects/"+launch+"/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	file := decode[transporthttp.FileResponse](t, resp, http.StatusCreated)
	if file.Name != "notes.txt" || file.Size != int64(len("release notes")) || file.ID == "" {
		t.Fatalf("unexpected file: %+v", file)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, b.RealtimeURL(), nil)
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestWebSocketAnswersFramesAfterUpgrade(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, b.RealtimeURL()+"?token="+alice.Token, nil)
	if err != nil {
		t.Fatalf("dial with query token: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	writeFrame(t, conn, "dance", nil)
	assertErrorFrame(t, readFrame(t, conn), core.ErrCodeBadRequest)

	// REST routes still go through gin on the same handler.
	resp := doRequest(t, http.MethodGet, b.URL()+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", resp.StatusCode)
	}
}

func TestWebSocketSendRequiresJoin(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{SendRateLimit: 1})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	launch := b.AddProject("Launch", alice)

	conn := dialWS(t, b, alice.Token)

	writeFrame(t, conn, proto.EventSendMessage, proto.SendMessageData{ProjectID: launch, Message: proto.Message{ID: "1"}})
	assertErrorFrame(t, readFrame(t, conn), core.ErrCodeNotInRoom)

	writeFrame(t, conn, "dance", nil)
	assertErrorFrame(t, readFrame(t, conn), core.ErrCodeBadRequest)

	first := b.SaveProjectMessage(alice, launch, "first")
	second := b.SaveProjectMessage(alice, launch, "second")
	writeFrame(t, conn, proto.EventJoinProject, proto.JoinData{ProjectID: launch})
	writeFrame(t, conn, proto.EventSendMessage, proto.SendMessageData{ProjectID: launch, Message: first})
	writeFrame(t, conn, proto.EventSendMessage, proto.SendMessageData{ProjectID: launch, Message: second})
	assertErrorFrame(t, readFrame(t, conn), core.ErrCodeRateLimited)
}

func TestWebSocketEchoToSender(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{EchoToSender: true})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	launch := b.AddProject("Launch", alice)

	saved := b.SaveProjectMessage(alice, launch, "echo")

	conn := dialWS(t, b, alice.Token)
	writeFrame(t, conn, proto.EventJoinProject, proto.JoinData{ProjectID: launch})
	writeFrame(t, conn, proto.EventSendMessage, proto.SendMessageData{ProjectID: launch, Message: saved})

	frame := readFrame(t, conn)
	if frame.Event != proto.EventNewMessage {
		t.Fatalf("expected new-message, got %s", frame.Event)
	}
	var msg proto.Message
	if err := json.Unmarshal(frame.Data, &msg); err != nil || msg.ID != saved.ID || msg.ProjectID != launch || msg.Content != "echo" {
		t.Fatalf("unexpected echo %+v (%v)", msg, err)
	}
}

func TestWebSocketRelaysOnlyOwnStoredMessages(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	mallory := b.AddUser("Mallory", "mallory@teamflow.test", "password")
	launch := b.AddProject("Launch", alice, mallory)
	ops := b.AddProject("Ops", mallory)

	aliceConn := dialWS(t, b, alice.Token)
	malloryConn := dialWS(t, b, mallory.Token)
	writeFrame(t, aliceConn, proto.EventJoinProject, proto.JoinData{ProjectID: launch})
	writeFrame(t, malloryConn, proto.EventJoinProject, proto.JoinData{ProjectID: launch})
	if !b.WaitRoomSize(launch, 2, time.Second) {
		t.Fatalf("both clients should join the room")
	}

	alicesMessage := b.SaveProjectMessage(alice, launch, "from alice")
	elsewhere := b.SaveProjectMessage(mallory, ops, "wrong room")
	forged := []proto.Message{
		{ID: "999", Sender: proto.Sender{ID: alice.ID, Name: "Alice"}, Content: "future id"},
		{ID: alicesMessage.ID, Sender: proto.Sender{ID: alice.ID, Name: "Alice"}, Content: "FORGED"},
		elsewhere,
		{ID: "not-a-number"},
	}
	for _, msg := range forged {
		writeFrame(t, malloryConn, proto.EventSendMessage, proto.SendMessageData{ProjectID: launch, Message: msg})
		assertErrorFrame(t, readFrame(t, malloryConn), core.ErrCodeBadRequest)
	}

	// A genuine relay still reaches Alice, and it carries the stored row.
	own := b.SaveProjectMessage(mallory, launch, "hello")
	own.Content = "tampered"
	writeFrame(t, malloryConn, proto.EventSendMessage, proto.SendMessageData{ProjectID: launch, Message: own})

	frame := readFrame(t, aliceConn)
	if frame.Event != proto.EventNewMessage {
		t.Fatalf("expected new-message, got %s", frame.Event)
	}
	var got proto.Message
	if err := json.Unmarshal(frame.Data, &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.ID != own.ID || got.Content != "hello" || got.Sender.ID != mallory.ID {
		t.Fatalf("expected the stored message, got %+v", got)
	}
}

func assertErrorFrame(t *testing.T, frame proto.Frame, code string) {
	t.Helper()

	if frame.Event != proto.EventError {
		t.Fatalf("expected error frame, got %s", frame.Event)
	}
	var perr proto.Error
	if err := json.Unmarshal(frame.Data, &perr); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if perr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, perr.Code, perr.Message)
	}
}

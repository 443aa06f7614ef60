package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamflow/teamflow-cli/internal/backendtest"
)

type harness struct {
	t          *testing.T
	configPath string
}

func newHarness(t *testing.T, b *backendtest.Backend) *harness {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`api_url: %s
realtime_url: %s
session_path: %s
log_level: "off"
request_timeout: 5s
dial_timeout: 2s
reconnect_min_delay: 10ms
reconnect_max_delay: 50ms
`, b.URL(), b.RealtimeURL(), filepath.Join(dir, "session.yaml"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return &harness{t: t, configPath: configPath}
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	b.AddUser("Alice", "alice@teamflow.test", "password")
	h := newHarness(t, b)

	_, err := h.run("", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teamflow login")

	_, err = h.run("", "login", "--email", "alice@teamflow.test", "--password", "wrong")
	require.Error(t, err)

	out, err := h.run("", "login", "--email", "alice@teamflow.test", "--password", "password")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Alice")

	out, err = h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice <alice@teamflow.test>")

	_, err = h.run("", "logout")
	require.NoError(t, err)
	_, err = h.run("", "whoami")
	require.Error(t, err)
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	b.AddUser("Alice", "alice@teamflow.test", "password")
	h := newHarness(t, b)

	_, err := h.run("", "login", "--email", "alice@teamflow.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")

	out, err := h.run("password\n", "login", "--email", "alice@teamflow.test")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Alice")
	assert.NotContains(t, out, "password\n")
}

func TestLogLevelFlagOverridesConfig(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	h := newHarness(t, b)

	for _, tc := range []struct {
		args []string
		want string
	}{
		{args: []string{"logout"}, want: "off"},
		{args: []string{"--log-level", "error", "logout"}, want: "error"},
	} {
		cmd, st := newRootCommand()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append([]string{"--config", h.configPath}, tc.args...))
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		assert.Equal(t, tc.want, st.cfg.LogLevel)
	}
}

func TestProjectTaskAndFeedCommands(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")
	launch := b.AddProject("Launch", alice, bob)
	h := newHarness(t, b)

	_, err := h.run("", "login", "--email", alice.Email, "--password", "password")
	require.NoError(t, err)

	out, err := h.run("", "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "Launch")

	out, err = h.run("", "task", "create", launch, "Write", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "Write docs")

	out, err = h.run("", "tasks", launch)
	require.NoError(t, err)
	assert.Contains(t, out, "todo")
	assert.Contains(t, out, "Write docs")

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))
	out, err = h.run("", "upload", launch, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded notes.txt (5 bytes)")

	out, err = h.run("", "notifications")
	require.NoError(t, err)
	assert.Contains(t, out, "No notifications")

	bobHarness := newHarness(t, b)
	_, err = bobHarness.run("", "login", "--email", bob.Email, "--password", "password")
	require.NoError(t, err)
	out, err = bobHarness.run("", "notifications")
	require.NoError(t, err)
	assert.Contains(t, out, "New task: Write docs")
}

func TestChatProjectSendsAndQuits(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	launch := b.AddProject("Launch", alice)
	b.SaveProjectMessage(alice, launch, "earlier")
	h := newHarness(t, b)

	_, err := h.run("", "login", "--email", alice.Email, "--password", "password")
	require.NoError(t, err)

	out, err := h.run("hello team\n\n/refresh\n/quit\nnever sent\n", "chat", "project", launch)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice: earlier")
	assert.Contains(t, out, "Alice: hello team")
	assert.Contains(t, out, "-- 0 new")
	assert.Equal(t, 1, strings.Count(out, "hello team"))
	assert.NotContains(t, out, "never sent")

	projectID, err := strconv.ParseInt(launch, 10, 64)
	require.NoError(t, err)
	history, err := b.Store().ListProjectMessages(context.Background(), projectID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello team", history[1].Body)
}

func TestChatDirectEndsOnEOF(t *testing.T) {
	b := backendtest.Start(t, backendtest.Options{})
	alice := b.AddUser("Alice", "alice@teamflow.test", "password")
	bob := b.AddUser("Bob", "bob@teamflow.test", "password")
	h := newHarness(t, b)

	_, err := h.run("", "login", "--email", alice.Email, "--password", "password")
	require.NoError(t, err)

	out, err := h.run("psst\n", "chat", "direct", bob.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Alice: psst")

	out, err = h.run("", "conversations")
	require.NoError(t, err)
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "psst")
}

package devserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DatabasePath = ":memory:"
	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestApplyDefaultSeed(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if err := srv.Apply(ctx, DefaultSeed()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	bob, err := srv.Store().GetUserByEmail(ctx, "bob@teamflow.dev")
	if err != nil {
		t.Fatalf("seeded user missing: %v", err)
	}
	projects, err := srv.Store().ListUserProjects(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListUserProjects failed: %v", err)
	}
	if len(projects) != 1 || projects[0].Name != "Launch" {
		t.Fatalf("unexpected projects: %+v", projects)
	}
	tasks, err := srv.Store().ListTasks(ctx, projects[0].ID)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("expected one seeded task, got %+v (%v)", tasks, err)
	}

	if _, _, err := srv.Auth().Login(ctx, "alice@teamflow.dev", "password"); err != nil {
		t.Fatalf("seeded credentials rejected: %v", err)
	}

	// A second pass reuses the accounts.
	if err := srv.Apply(ctx, Seed{Users: DefaultSeed().Users}); err != nil {
		t.Fatalf("re-applying users failed: %v", err)
	}
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `users:
  - name: Carol
    email: Carol@Example.com
    password: secret123
projects:
  - name: Ops
    description: on-call
    members: [carol@example.com]
    tasks: [Rotate keys]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed failed: %v", err)
	}
	if len(seed.Users) != 1 || len(seed.Projects) != 1 || seed.Projects[0].Tasks[0] != "Rotate keys" {
		t.Fatalf("unexpected seed: %+v", seed)
	}

	srv := newTestServer(t)
	if err := srv.Apply(context.Background(), seed); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
}

func TestApplyRejectsUnknownMember(t *testing.T) {
	srv := newTestServer(t)

	seed := Seed{Projects: []SeedProject{{Name: "Ghost", Members: []string{"nobody@example.com"}}}}
	if err := srv.Apply(context.Background(), seed); err == nil {
		t.Fatalf("expected unknown member to fail")
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

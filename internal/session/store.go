// Package session holds the bearer token and user profile shared by the REST client
// and the realtime channel.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/teamflow/teamflow-cli/internal/core"
)

// record is the on-disk shape of a session.
type record struct {
	Token string `yaml:"token"`
	User  struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	} `yaml:"user"`
}

// Store keeps the current session. An empty path keeps it in memory only.
type Store struct {
	mu    sync.RWMutex
	path  string
	token string
	user  core.Profile
}

// NewStore returns an empty store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Open returns a store for path, loading a previously saved session if one exists.
func Open(path string) (*Store, error) {
	s := NewStore(path)
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.token = rec.Token
	s.user = core.Profile{ID: rec.User.ID, Name: rec.User.Name, Email: rec.User.Email}
	return s, nil
}

// Token returns the bearer token, if any.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// User returns the profile of the logged-in user, if any.
func (s *Store) User() (core.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.token != ""
}

// Active reports whether a token is present.
func (s *Store) Active() bool {
	_, ok := s.Token()
	return ok
}

// Set replaces the whole session and persists it.
func (s *Store) Set(token string, user core.Profile) error {
	if token == "" {
		return errors.New("session token is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(token, user); err != nil {
		return err
	}
	s.token = token
	s.user = user
	return nil
}

// Clear forgets the session and removes it from disk.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.user = core.Profile{}

	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *Store) write(token string, user core.Profile) error {
	if s.path == "" {
		return nil
	}

	var rec record
	rec.Token = token
	rec.User.ID = user.ID
	rec.User.Name = user.Name
	rec.User.Email = user.Email

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

package devserver

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed describes demo data loaded at startup.
type Seed struct {
	Users    []SeedUser    `yaml:"users"`
	Projects []SeedProject `yaml:"projects"`
}

// SeedUser is an account to create.
type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SeedProject is a project whose members are listed by email.
type SeedProject struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Members     []string `yaml:"members"`
	Tasks       []string `yaml:"tasks"`
}

// DefaultSeed is used when no seed file is given.
func DefaultSeed() Seed {
	return Seed{
		Users: []SeedUser{
			{Name: "Alice", Email: "alice@teamflow.dev", Password: "password"},
			{Name: "Bob", Email: "bob@teamflow.dev", Password: "password"},
		},
		Projects: []SeedProject{
			{
				Name:        "Launch",
				Description: "Product launch checklist",
				Members:     []string{"alice@teamflow.dev", "bob@teamflow.dev"},
				Tasks:       []string{"Write release notes"},
			},
		},
	}
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

// Apply creates the seed's users and projects. Users that already exist are reused.
func (s *Server) Apply(ctx context.Context, seed Seed) error {
	ids := make(map[string]int64, len(seed.Users))
	for _, u := range seed.Users {
		if existing, err := s.store.GetUserByEmail(ctx, strings.ToLower(u.Email)); err == nil {
			ids[existing.Email] = existing.ID
			continue
		}
		_, user, err := s.auth.Register(ctx, u.Name, u.Email, u.Password)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		ids[user.Email] = user.ID
	}

	for _, p := range seed.Projects {
		project, err := s.store.CreateProject(ctx, p.Name, p.Description)
		if err != nil {
			return fmt.Errorf("seed project %s: %w", p.Name, err)
		}
		for _, email := range p.Members {
			uid, ok := ids[strings.ToLower(email)]
			if !ok {
				return fmt.Errorf("seed project %s: unknown member %s", p.Name, email)
			}
			if err := s.store.AddMember(ctx, project.ID, uid); err != nil {
				return fmt.Errorf("seed project %s: %w", p.Name, err)
			}
		}
		for _, title := range p.Tasks {
			if _, err := s.store.CreateTask(ctx, project.ID, title, nil); err != nil {
				return fmt.Errorf("seed task %s: %w", title, err)
			}
		}
		s.log.Info().Int64("project_id", project.ID).Str("name", project.Name).Msg("seeded project")
	}
	return nil
}


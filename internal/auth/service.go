// Package auth manages dev backend accounts and the bearer tokens they log in with.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/teamflow/teamflow-cli/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with an existing email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidEmail is returned when the email address cannot be parsed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service registers users, checks credentials and issues tokens.
type Service struct {
	users  store.UserStore
	tokens *JWTConfig
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, tokens *JWTConfig) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates an account and returns a token for it. An empty name
// defaults to the local part of the email.
func (s *Service) Register(ctx context.Context, name, email, password string) (string, *store.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}
	if err := checkPassword(password); err != nil {
		return "", nil, err
	}

	switch _, err := s.users.GetUserByEmail(ctx, email); {
	case err == nil:
		return "", nil, ErrUserExists
	case !errors.Is(err, store.ErrNotFound):
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", nil, err
	}
	user, err := s.users.CreateUser(ctx, displayName(name, email), email, hash)
	if err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Login checks credentials and returns a fresh token. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if !passwordMatches(user.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs a token for an existing user.
func (s *Service) IssueToken(user *store.User) (string, error) {
	return s.tokens.Issue(user.ID, user.Email, user.Name)
}

// ValidateToken returns the claims of a valid token; failures wrap ErrInvalidToken.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

// Package app owns the client-side lifecycle: session, REST client and open chats.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/api"
	"github.com/teamflow/teamflow-cli/internal/chat"
	"github.com/teamflow/teamflow-cli/internal/config"
	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/realtime"
	"github.com/teamflow/teamflow-cli/internal/session"
)

// App wires together the session store, the REST client and the chat surfaces.
type App struct {
	cfg     config.Config
	session *session.Store
	api     *api.Client
	log     *zerolog.Logger

	mu    sync.Mutex
	chats map[*Chat]struct{}
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	sess, err := session.Open(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	logger.Debug().Str("session_path", cfg.SessionPath).Bool("active", sess.Active()).Msg("session loaded")

	client := api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.RequestTimeout}, sess, logger)

	return &App{
		cfg:     cfg,
		session: sess,
		api:     client,
		log:     logger,
		chats:   make(map[*Chat]struct{}),
	}, nil
}

// API returns the REST client.
func (a *App) API() *api.Client { return a.api }

// Session returns the session store.
func (a *App) Session() *session.Store { return a.session }

// Login exchanges credentials for a token and stores it.
func (a *App) Login(ctx context.Context, email, password string) (core.Profile, error) {
	token, profile, err := a.api.Login(ctx, email, password)
	if err != nil {
		return core.Profile{}, err
	}
	if err := a.session.Set(token, profile); err != nil {
		return core.Profile{}, fmt.Errorf("store session: %w", err)
	}
	a.log.Info().Str("user_id", profile.ID).Msg("logged in")
	return profile, nil
}

// Logout closes every open chat, then clears the session.
func (a *App) Logout() error {
	a.CloseChats()
	if err := a.session.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.log.Info().Msg("logged out")
	return nil
}

// OpenProjectChat opens a live chat for a project. If the realtime channel
// cannot be dialed the chat still opens from REST history and logs a warning.
func (a *App) OpenProjectChat(ctx context.Context, projectID string) (*Chat, error) {
	if !a.session.Active() {
		return nil, core.ErrNoSession
	}

	channel, err := realtime.Dial(ctx, realtime.Options{
		URL:               a.cfg.RealtimeURL,
		DialTimeout:       a.cfg.DialTimeout,
		ReconnectMinDelay: a.cfg.ReconnectMinDelay,
		ReconnectMaxDelay: a.cfg.ReconnectMaxDelay,
	}, a.session, a.log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		a.log.Warn().Err(err).Str("project_id", projectID).Msg("realtime unavailable, chat opens without live updates")
		channel = nil
	}

	var feed chat.Feed
	if channel != nil {
		feed = channelFeed{ch: channel}
	}
	surface := chat.NewProjectSurface(projectID, a.api, feed, a.log)
	return a.open(ctx, surface, channel)
}

// OpenDirectChat opens a direct thread with peerID. Direct threads have no
// live updates; use Surface().Refresh.
func (a *App) OpenDirectChat(ctx context.Context, peerID string) (*Chat, error) {
	if !a.session.Active() {
		return nil, core.ErrNoSession
	}
	return a.open(ctx, chat.NewDirectSurface(peerID, a.api, a.log), nil)
}

func (a *App) open(ctx context.Context, surface *chat.Surface, channel *realtime.Channel) (*Chat, error) {
	c := &Chat{app: a, surface: surface, channel: channel}
	if err := surface.Open(ctx); err != nil {
		c.teardown()
		return nil, err
	}

	a.mu.Lock()
	a.chats[c] = struct{}{}
	a.mu.Unlock()
	return c, nil
}

// CloseChats closes every chat opened through the app.
func (a *App) CloseChats() {
	a.mu.Lock()
	chats := make([]*Chat, 0, len(a.chats))
	for c := range a.chats {
		chats = append(chats, c)
	}
	a.mu.Unlock()

	for _, c := range chats {
		c.Close()
	}
}

// OpenChats returns how many chats are open.
func (a *App) OpenChats() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.chats)
}

func (a *App) forget(c *Chat) {
	a.mu.Lock()
	delete(a.chats, c)
	a.mu.Unlock()
}

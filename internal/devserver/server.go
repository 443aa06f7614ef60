// Package devserver runs a self-contained TeamFlow backend for local development
// and integration tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/auth"
	"github.com/teamflow/teamflow-cli/internal/store"
	"github.com/teamflow/teamflow-cli/internal/store/sqlite"
	transporthttp "github.com/teamflow/teamflow-cli/internal/transport/http"
)

// Config holds dev server settings.
type Config struct {
	Addr              string
	DatabasePath      string
	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	TokenTTL          time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	EchoToSender      bool
	SendRateLimit     int
	HistoryLimit      int
	MaxMessageBytes   int64
}

// DefaultConfig returns settings suitable for a local run.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		DatabasePath:      "teamflow-dev.db",
		JWTSecret:         "teamflow-dev-secret",
		JWTIssuer:         "teamflow-dev",
		JWTAudience:       "teamflow",
		TokenTTL:          24 * time.Hour,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		SendRateLimit:     120,
		MaxMessageBytes:   1 << 20,
	}
}

// Server wires the store, auth service, hub and router together.
type Server struct {
	cfg    Config
	store  store.Store
	auth   *auth.Service
	hub    *transporthttp.Hub
	router stdhttp.Handler
	log    *zerolog.Logger
}

// New constructs the server with provided configuration.
func New(cfg Config, logger *zerolog.Logger) (*Server, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	gin.SetMode(gin.ReleaseMode)
	hub := transporthttp.NewHub()
	router := transporthttp.NewRouter(hub, authService, st, transporthttp.Options{
		WS: transporthttp.WSOptions{
			EchoToSender:    cfg.EchoToSender,
			SendRateLimit:   cfg.SendRateLimit,
			MaxMessageBytes: cfg.MaxMessageBytes,
		},
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	return &Server{
		cfg:    cfg,
		store:  st,
		auth:   authService,
		hub:    hub,
		router: router,
		log:    logger,
	}, nil
}

// Handler returns the HTTP handler serving REST and realtime endpoints.
func (s *Server) Handler() stdhttp.Handler { return s.router }

// Store exposes the backing store for seeding.
func (s *Server) Store() store.Store { return s.store }

// Auth exposes the auth service for seeding and token minting.
func (s *Server) Auth() *auth.Service { return s.auth }

// Hub exposes the realtime hub.
func (s *Server) Hub() *transporthttp.Hub { return s.hub }

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (s *Server) Run(ctx context.Context) error {
	server := transporthttp.NewServer(s.cfg.Addr, s.router, s.cfg.ReadHeaderTimeout)
	serverErr := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	s.log.Info().Str("addr", s.cfg.Addr).Msg("dev server listening")

	select {
	case err := <-serverErr:
		s.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.Info().Msg("shutting down http server")
		s.hub.DisconnectAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.Close()
			return err
		}

		s.Close()
		return <-serverErr
	}
}

// Close releases the store.
func (s *Server) Close() {
	if err := s.store.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close store")
		return
	}
	s.log.Info().Msg("store closed")
}

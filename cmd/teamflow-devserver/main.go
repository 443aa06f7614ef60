package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/teamflow/teamflow-cli/internal/devserver"
	tflog "github.com/teamflow/teamflow-cli/internal/log"
)

func main() {
	_ = godotenv.Load()

	cfg := devserver.DefaultConfig()
	var (
		seedPath string
		noSeed   bool
		logLevel string
	)

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "sqlite database path (:memory: for ephemeral)")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", envOr("TEAMFLOW_DEV_JWT_SECRET", cfg.JWTSecret), "JWT signing secret")
	flag.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "issued token lifetime")
	flag.DurationVar(&cfg.ReadHeaderTimeout, "read-header-timeout", cfg.ReadHeaderTimeout, "HTTP read header timeout")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	flag.BoolVar(&cfg.EchoToSender, "echo", cfg.EchoToSender, "relay send-message frames back to the sender")
	flag.IntVar(&cfg.SendRateLimit, "send-rate-limit", cfg.SendRateLimit, "send-message frames per connection per minute (0 disables)")
	flag.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "max messages per history fetch (0 means all)")
	flag.StringVar(&seedPath, "seed", "", "YAML seed file (default demo data when empty)")
	flag.BoolVar(&noSeed, "no-seed", false, "start with an empty database")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.Parse()

	logger := tflog.New(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := devserver.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize dev server")
	}

	if !noSeed {
		seed := devserver.DefaultSeed()
		if seedPath != "" {
			if seed, err = devserver.LoadSeed(seedPath); err != nil {
				srv.Close()
				logger.Fatal().Err(err).Msg("failed to load seed")
			}
		}
		if err := srv.Apply(ctx, seed); err != nil {
			srv.Close()
			logger.Fatal().Err(err).Msg("failed to apply seed")
		}
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting teamflow dev server")
	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

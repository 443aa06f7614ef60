// Package cli is the teamflow command tree.
package cli

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/teamflow/teamflow-cli/internal/api"
	"github.com/teamflow/teamflow-cli/internal/app"
	"github.com/teamflow/teamflow-cli/internal/config"
	tflog "github.com/teamflow/teamflow-cli/internal/log"
)

type state struct {
	configPath string
	logLevel   string

	cfg config.Config
	log *zerolog.Logger
	app *app.App
}

// NewRootCommand builds the teamflow command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *state) {
	st := &state{}

	root := &cobra.Command{
		Use:           "teamflow",
		Short:         "TeamFlow projects, tasks and chat from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if st.app != nil {
				st.app.CloseChats()
			}
		},
	}

	root.PersistentFlags().StringVar(&st.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")

	root.AddCommand(
		newLoginCommand(st),
		newLogoutCommand(st),
		newWhoamiCommand(st),
		newProjectsCommand(st),
		newTasksCommand(st),
		newTaskCommand(st),
		newNotificationsCommand(st),
		newConversationsCommand(st),
		newUploadCommand(st),
		newChatCommand(st),
	)
	return root, st
}

func (s *state) init() error {
	_ = godotenv.Load()

	bootLevel := s.logLevel
	if bootLevel == "" {
		bootLevel = "warn"
	}
	bootLog := tflog.New(bootLevel)

	cfg, path, err := config.Load(bootLog, s.configPath)
	if err != nil {
		return err
	}
	cfg.UpdateFrom(config.Config{LogLevel: s.logLevel})
	s.cfg = cfg
	s.log = tflog.New(cfg.LogLevel)
	s.log.Debug().Str("config", path).Str("api_url", cfg.APIURL).Msg("config loaded")

	a, err := app.New(cfg, s.log)
	if err != nil {
		return err
	}
	s.app = a
	return nil
}

// explain turns auth failures into an actionable message.
func explain(err error) error {
	if err == nil {
		return nil
	}
	if api.IsAuthFailure(err) {
		return fmt.Errorf("%w: run `teamflow login` first", err)
	}
	return err
}

var errQuit = errors.New("quit")

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teamflow/teamflow-cli/internal/app"
	"github.com/teamflow/teamflow-cli/internal/core"
)

func newChatCommand(st *state) *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat",
		Long: "Open an interactive chat. Lines typed are sent; /refresh refetches history, " +
			"/quit leaves.",
	}

	chatCmd.AddCommand(&cobra.Command{
		Use:   "project <projectID>",
		Short: "Chat in a project room with live updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := st.app.OpenProjectChat(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			defer c.Close()
			if !c.Live() {
				fmt.Fprintln(cmd.ErrOrStderr(), "live updates unavailable; use /refresh")
			}
			return runChat(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	})

	chatCmd.AddCommand(&cobra.Command{
		Use:   "direct <userID>",
		Short: "Chat with a user; use /refresh to fetch new messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := st.app.OpenDirectChat(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			defer c.Close()
			return runChat(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	})
	return chatCmd
}

// printer serializes output from the chat loops and prints each message once.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
}

func (p *printer) messages(msgs []core.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(msgs) < p.printed {
		p.printed = 0
	}
	for _, m := range msgs[p.printed:] {
		fmt.Fprintf(p.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Sender.Name, m.Content)
	}
	p.printed = len(msgs)
}

func (p *printer) linef(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

func runChat(ctx context.Context, c *app.Chat, in io.Reader, out io.Writer) error {
	surface := c.Surface()
	p := &printer{out: out}
	p.messages(surface.Messages())

	g, gctx := errgroup.WithContext(ctx)

	// The scanner cannot be interrupted, so it stays outside the group.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case _, ok := <-surface.Updates():
				if !ok {
					return nil
				}
				p.messages(surface.Messages())
			}
		}
	})

	g.Go(func() error {
		for task := range c.Tasks(gctx) {
			p.linef("** new task in project %s: %s", task.ProjectID, task.Title)
		}
		return nil
	})

	g.Go(func() error {
		for {
			var line string
			select {
			case <-gctx.Done():
				return nil
			case l, ok := <-lines:
				if !ok {
					return errQuit
				}
				line = strings.TrimSpace(l)
			}

			switch line {
			case "":
				continue
			case "/quit":
				return errQuit
			case "/refresh":
				added, err := surface.Refresh(gctx)
				if err != nil {
					p.linef("refresh failed: %v", err)
					continue
				}
				p.messages(surface.Messages())
				p.linef("-- %d new", added)
				continue
			}

			if _, err := surface.Send(gctx, line); err != nil {
				p.linef("send failed: %v", err)
				if errors.Is(err, core.ErrNotLive) {
					return err
				}
				continue
			}
			p.messages(surface.Messages())
		}
	})

	err := g.Wait()
	if errors.Is(err, errQuit) {
		err = nil
	}
	return err
}

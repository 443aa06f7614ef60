package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCommand(st *state) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				var err error
				if password, err = readPassword(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			profile, err := st.app.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", profile.Name, profile.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted for when omitted)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func newLogoutCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.app.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := st.app.API().Me(cmd.Context())
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %s)\n", profile.Name, profile.Email, profile.ID)
			return nil
		},
	}
}

func newProjectsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List your projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := st.app.API().Projects(cmd.Context())
			if err != nil {
				return explain(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
			}
			return tw.Flush()
		},
	}
}

func newTasksCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <projectID>",
		Short: "List the tasks of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := st.app.API().Tasks(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tTITLE")
			for _, t := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Status, t.Title)
			}
			return tw.Flush()
		},
	}
}

func newTaskCommand(st *state) *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	task.AddCommand(&cobra.Command{
		Use:   "create <projectID> <title>",
		Short: "Create a task; project members get a live banner",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return errors.New("title is required")
			}
			created, err := st.app.API().CreateTask(cmd.Context(), args[0], title)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s: %s\n", created.ID, created.Title)
			return nil
		},
	})
	return task
}

func newNotificationsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Show your notification feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feed, err := st.app.API().Notifications(cmd.Context())
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			if len(feed) == 0 {
				fmt.Fprintln(out, "No notifications")
				return nil
			}
			for _, n := range feed {
				marker := "*"
				if n.Read {
					marker = " "
				}
				fmt.Fprintf(out, "%s %s  %s\n", marker, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Text)
			}
			return nil
		},
	}
}

func newConversationsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List direct message threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			convs, err := st.app.API().Conversations(cmd.Context())
			if err != nil {
				return explain(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "USER\tNAME\tUNREAD\tLAST")
			for _, c := range convs {
				last := ""
				if c.LastMessage != nil {
					last = c.LastMessage.Content
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Partner.ID, c.Partner.Name, c.UnreadCount, last)
			}
			return tw.Flush()
		},
	}
}

func newUploadCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <projectID> <path>",
		Short: "Upload a file to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			file, err := st.app.API().UploadFile(cmd.Context(), args[0], filepath.Base(args[1]), f)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes) as %s\n", file.Name, file.Size, file.URL)
			return nil
		},
	}
}

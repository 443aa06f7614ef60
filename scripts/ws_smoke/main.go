package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/teamflow/teamflow-cli/internal/api"
	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/realtime"
	"github.com/teamflow/teamflow-cli/internal/session"
)

// ws_smoke logs in, joins a project room and creates a task, then waits for
// the new-task push to come back over the realtime channel.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	apiURL := flag.String("api", "http://localhost:8080", "REST base URL")
	wsURL := flag.String("ws", "ws://localhost:8080/ws", "realtime endpoint")
	email := flag.String("email", "alice@teamflow.dev", "account email")
	password := flag.String("password", "password", "account password")
	project := flag.String("project", "", "project id (first project when empty)")
	title := flag.String("title", "smoke test task", "title of the task to create")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sess := session.NewStore("")
	client := api.New(api.Config{BaseURL: *apiURL, Timeout: *timeout}, sess, nil)

	token, profile, err := client.Login(ctx, *email, *password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := sess.Set(token, profile); err != nil {
		return err
	}
	fmt.Printf("Logged in: id=%s name=%s\n", profile.ID, profile.Name)

	projectID := *project
	if projectID == "" {
		projects, err := client.Projects(ctx)
		if err != nil {
			return fmt.Errorf("projects: %w", err)
		}
		if len(projects) == 0 {
			return errors.New("user has no projects")
		}
		projectID = projects[0].ID
	}

	ch, err := realtime.Dial(ctx, realtime.Options{URL: *wsURL, DisableReconnect: true}, sess, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer ch.Close()

	sub := ch.Subscribe()
	defer sub.Cancel()
	if err := ch.Join(ctx, projectID); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	// join-project is not acknowledged.
	time.Sleep(100 * time.Millisecond)

	created, err := client.CreateTask(ctx, projectID, *title)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	fmt.Printf("Created task: id=%s project=%s\n", created.ID, created.ProjectID)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for push: %w", ctx.Err())
		case ev, ok := <-sub.Events():
			if !ok {
				return errors.New("realtime channel closed")
			}
			switch ev.Kind {
			case core.EventNewTask:
				fmt.Printf("Received new-task: id=%s title=%q\n", ev.Task.ID, ev.Task.Title)
				if ev.Task.ID == created.ID {
					return nil
				}
			case core.EventError:
				fmt.Printf("Error: %s %s\n", ev.Error.Code, ev.Error.Message)
			default:
				fmt.Printf("Received %s in room %s\n", ev.Kind, ev.Room)
			}
		}
	}
}

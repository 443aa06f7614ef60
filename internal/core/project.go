package core

import "time"

// Project is a TeamFlow project; its id doubles as the realtime room key.
type Project struct {
	ID          string
	Name        string
	Description string
}

// Task is a task summary, also the payload of new-task pushes.
type Task struct {
	ID        string
	ProjectID string
	Title     string
	Status    string
	Assignee  string
	CreatedAt time.Time
}

// Notification is an item of the user's notification feed.
type Notification struct {
	ID        string
	Kind      string
	Text      string
	Read      bool
	CreatedAt time.Time
}

// File describes an uploaded project file.
type File struct {
	ID        string
	ProjectID string
	Name      string
	Size      int64
	URL       string
}

// Profile is the current user as returned by the backend.
type Profile struct {
	ID    string
	Name  string
	Email string
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents a TeamFlow account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Project is a team workspace; its id doubles as the realtime room key.
type Project struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// TaskStatus is the board column a task sits in.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Task represents a work item within a project.
type Task struct {
	ID         int64
	ProjectID  int64
	Title      string
	Status     TaskStatus
	AssigneeID *int64
	CreatedAt  time.Time
}

// Message represents a persisted chat message. Exactly one of ProjectID and
// RecipientID is set.
type Message struct {
	ID          int64
	ProjectID   *int64
	RecipientID *int64
	SenderID    int64
	SenderName  string
	Body        string
	CreatedAt   time.Time
}

// Conversation summarises the direct thread between a user and one partner.
type Conversation struct {
	Partner     User
	LastMessage Message
	UnreadCount int
}

// Notification is an item in a user's notification feed.
type Notification struct {
	ID        int64
	UserID    int64
	Kind      string
	Text      string
	Read      bool
	CreatedAt time.Time
}

// File is an uploaded project attachment.
type File struct {
	ID        string // UUID
	ProjectID int64
	Name      string
	Size      int64
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// ProjectStore handles projects and their membership.
type ProjectStore interface {
	CreateProject(ctx context.Context, name, description string) (*Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	AddMember(ctx context.Context, projectID, userID int64) error
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	ListMembers(ctx context.Context, projectID int64) ([]int64, error)
	ListUserProjects(ctx context.Context, userID int64) ([]*Project, error)
}

// TaskStore handles project tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, projectID int64, title string, assigneeID *int64) (*Task, error)
	ListTasks(ctx context.Context, projectID int64) ([]*Task, error)
}

// MessageStore handles project and direct messages.
type MessageStore interface {
	SaveProjectMessage(ctx context.Context, projectID, senderID int64, body string) (*Message, error)
	GetMessage(ctx context.Context, id int64) (*Message, error)
	ListProjectMessages(ctx context.Context, projectID int64, limit int) ([]*Message, error)
	SaveDirectMessage(ctx context.Context, senderID, recipientID int64, body string) (*Message, error)
	ListDirectMessages(ctx context.Context, userID, peerID int64, limit int) ([]*Message, error)
	MarkDirectRead(ctx context.Context, userID, peerID int64) error
	ListConversations(ctx context.Context, userID int64) ([]*Conversation, error)
}

// NotificationStore handles the notification feed.
type NotificationStore interface {
	CreateNotification(ctx context.Context, userID int64, kind, text string) (*Notification, error)
	ListNotifications(ctx context.Context, userID int64) ([]*Notification, error)
}

// FileStore handles file metadata. Content is not retained.
type FileStore interface {
	SaveFile(ctx context.Context, file *File) error
}

// Store combines all store interfaces.
type Store interface {
	UserStore
	ProjectStore
	TaskStore
	MessageStore
	NotificationStore
	FileStore
	Close() error
}

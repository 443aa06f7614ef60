package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	_ "github.com/mattn/go-sqlite3"
	"github.com/teamflow/teamflow-cli/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file, or ":memory:".
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (name, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}

	return &user, nil
}

// ==== ProjectStore implementation ====

// CreateProject creates a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, name, description string) (*store.Project, error) {
	query := `
		INSERT INTO projects (name, description)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, description)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetProject(ctx, id)
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id int64) (*store.Project, error) {
	query := `
		SELECT id, name, description, created_at
		FROM projects
		WHERE id = ?
	`
	var project store.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "project")
	}

	return &project, nil
}

// AddMember adds a user to a project. Adding an existing member is a no-op.
func (s *SQLiteStore) AddMember(ctx context.Context, projectID, userID int64) error {
	query := `
		INSERT OR IGNORE INTO project_members (project_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, projectID, userID); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// IsMember reports whether the user belongs to the project.
func (s *SQLiteStore) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM project_members
		WHERE project_id = ? AND user_id = ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("query member: %w", err)
	}
	return count > 0, nil
}

// ListMembers returns the user ids of every project member.
func (s *SQLiteStore) ListMembers(ctx context.Context, projectID int64) ([]int64, error) {
	query := `
		SELECT user_id
		FROM project_members
		WHERE project_id = ?
		ORDER BY user_id
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListUserProjects lists the projects a user belongs to.
func (s *SQLiteStore) ListUserProjects(ctx context.Context, userID int64) ([]*store.Project, error) {
	query := `
		SELECT p.id, p.name, p.description, p.created_at
		FROM projects p
		JOIN project_members pm ON p.id = pm.project_id
		WHERE pm.user_id = ?
		ORDER BY p.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*store.Project
	for rows.Next() {
		var p store.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

// ==== TaskStore implementation ====

// CreateTask creates a task in the todo column.
func (s *SQLiteStore) CreateTask(ctx context.Context, projectID int64, title string, assigneeID *int64) (*store.Task, error) {
	query := `
		INSERT INTO tasks (project_id, title, status, assignee_id)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, projectID, title, store.TaskStatusTodo, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getTask(ctx, id)
}

func (s *SQLiteStore) getTask(ctx context.Context, id int64) (*store.Task, error) {
	query := `
		SELECT id, project_id, title, status, assignee_id, created_at
		FROM tasks
		WHERE id = ?
	`
	var task store.Task
	var assignee sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Status,
		&assignee,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "task")
	}
	if assignee.Valid {
		task.AssigneeID = &assignee.Int64
	}

	return &task, nil
}

// ListTasks lists a project's tasks in creation order.
func (s *SQLiteStore) ListTasks(ctx context.Context, projectID int64) ([]*store.Task, error) {
	query := `
		SELECT id, project_id, title, status, assignee_id, created_at
		FROM tasks
		WHERE project_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*store.Task
	for rows.Next() {
		var task store.Task
		var assignee sql.NullInt64
		if err := rows.Scan(&task.ID, &task.ProjectID, &task.Title, &task.Status, &assignee, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if assignee.Valid {
			task.AssigneeID = &assignee.Int64
		}
		tasks = append(tasks, &task)
	}

	return tasks, rows.Err()
}

// ==== MessageStore implementation ====

const messageColumns = `
	m.id, m.project_id, m.recipient_id, m.sender_id, u.name, m.body, m.created_at
`

func scanMessage(row interface{ Scan(...any) error }) (*store.Message, error) {
	var msg store.Message
	var projectID, recipientID sql.NullInt64
	if err := row.Scan(
		&msg.ID,
		&projectID,
		&recipientID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.Body,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	if projectID.Valid {
		msg.ProjectID = &projectID.Int64
	}
	if recipientID.Valid {
		msg.RecipientID = &recipientID.Int64
	}
	return &msg, nil
}

// GetMessage loads one project or direct message.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "message")
	}
	return msg, nil
}

func (s *SQLiteStore) listMessages(ctx context.Context, where string, limit int, args ...any) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE ` + where + `
		ORDER BY m.id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// SaveProjectMessage persists a message sent to a project room.
func (s *SQLiteStore) SaveProjectMessage(ctx context.Context, projectID, senderID int64, body string) (*store.Message, error) {
	query := `
		INSERT INTO messages (project_id, sender_id, body)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, projectID, senderID, body)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessage(ctx, id)
}

// ListProjectMessages returns the latest limit messages of a project, oldest first.
// A non-positive limit returns every message.
func (s *SQLiteStore) ListProjectMessages(ctx context.Context, projectID int64, limit int) ([]*store.Message, error) {
	return s.listMessages(ctx, "m.project_id = ?", limit, projectID)
}

// SaveDirectMessage persists a direct message.
func (s *SQLiteStore) SaveDirectMessage(ctx context.Context, senderID, recipientID int64, body string) (*store.Message, error) {
	query := `
		INSERT INTO messages (recipient_id, sender_id, body)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, recipientID, senderID, body)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessage(ctx, id)
}

// ListDirectMessages returns the thread between two users, oldest first.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, userID, peerID int64, limit int) ([]*store.Message, error) {
	where := `m.recipient_id IS NOT NULL AND (
		(m.sender_id = ? AND m.recipient_id = ?) OR (m.sender_id = ? AND m.recipient_id = ?)
	)`
	return s.listMessages(ctx, where, limit, userID, peerID, peerID, userID)
}

// MarkDirectRead marks every message from peerID to userID as read.
func (s *SQLiteStore) MarkDirectRead(ctx context.Context, userID, peerID int64) error {
	query := `
		UPDATE messages
		SET read = 1
		WHERE sender_id = ? AND recipient_id = ? AND read = 0
	`
	if _, err := s.db.ExecContext(ctx, query, peerID, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ListConversations summarises every direct thread of a user, most recent first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64) ([]*store.Conversation, error) {
	query := `
		SELECT partner_id, MAX(id) AS last_id
		FROM (
			SELECT CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS partner_id, id
			FROM messages
			WHERE recipient_id IS NOT NULL AND (sender_id = ? OR recipient_id = ?)
		)
		GROUP BY partner_id
		ORDER BY last_id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	type thread struct{ partnerID, lastID int64 }
	var threads []thread
	for rows.Next() {
		var t thread
		if err := rows.Scan(&t.partnerID, &t.lastID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		threads = append(threads, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The single connection is free again once rows is closed.
	conversations := make([]*store.Conversation, 0, len(threads))
	for _, t := range threads {
		partner, err := s.GetUserByID(ctx, t.partnerID)
		if err != nil {
			return nil, err
		}
		last, err := s.GetMessage(ctx, t.lastID)
		if err != nil {
			return nil, err
		}
		var unread int
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM messages
			WHERE sender_id = ? AND recipient_id = ? AND read = 0
		`, t.partnerID, userID).Scan(&unread)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		conversations = append(conversations, &store.Conversation{
			Partner:     *partner,
			LastMessage: *last,
			UnreadCount: unread,
		})
	}

	return conversations, nil
}

// ==== NotificationStore implementation ====

// CreateNotification appends an item to a user's feed.
func (s *SQLiteStore) CreateNotification(ctx context.Context, userID int64, kind, text string) (*store.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, kind, text)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, userID, kind, text)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var n store.Notification
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, text, read, created_at
		FROM notifications
		WHERE id = ?
	`, id).Scan(&n.ID, &n.UserID, &n.Kind, &n.Text, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, notFound(err, "notification")
	}
	return &n, nil
}

// ListNotifications returns a user's feed, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID int64) ([]*store.Notification, error) {
	query := `
		SELECT id, user_id, kind, text, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*store.Notification
	for rows.Next() {
		var n store.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Text, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}

	return out, rows.Err()
}

// ==== FileStore implementation ====

// SaveFile records uploaded file metadata and fills in CreatedAt.
func (s *SQLiteStore) SaveFile(ctx context.Context, file *store.File) error {
	query := `
		INSERT INTO files (id, project_id, name, size)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, file.ID, file.ProjectID, file.Name, file.Size); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM files WHERE id = ?`, file.ID).Scan(&file.CreatedAt)
	if err != nil {
		return notFound(err, "file")
	}
	return nil
}

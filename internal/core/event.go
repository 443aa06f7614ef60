package core

// EventKind is a notification the realtime channel emits to subscribers.
type EventKind int

const (
	// EventNewMessage carries a chat message pushed to a project room.
	EventNewMessage EventKind = iota
	// EventNewTask carries a task created in a project room.
	EventNewTask
	// EventReconnected is published after the channel redialed and rejoined its rooms.
	EventReconnected
	// EventError carries an error frame sent by the server.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "new-message"
	case EventNewTask:
		return "new-task"
	case EventReconnected:
		return "reconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers to describe what the server pushed.
type Event struct {
	Kind    EventKind
	Room    string
	Message Message      // EventNewMessage
	Task    *Task        // EventNewTask
	Error   *ServerError // EventError
}

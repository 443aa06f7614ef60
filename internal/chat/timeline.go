package chat

import "github.com/teamflow/teamflow-cli/internal/core"

// Timeline is an ordered set of messages keyed by server id.
// Order is arrival order; inserting a known id is a no-op.
type Timeline struct {
	index    map[string]struct{}
	messages []core.Message
}

// NewTimeline builds a timeline seeded with history, dropping repeated ids.
func NewTimeline(history []core.Message) *Timeline {
	t := &Timeline{
		index:    make(map[string]struct{}, len(history)),
		messages: make([]core.Message, 0, len(history)),
	}
	for _, m := range history {
		t.Insert(m)
	}
	return t
}

// Insert appends m unless its id is already present. Messages without an id
// cannot be deduplicated and are always appended.
func (t *Timeline) Insert(m core.Message) bool {
	if m.ID != "" {
		if _, ok := t.index[m.ID]; ok {
			return false
		}
		t.index[m.ID] = struct{}{}
	}
	t.messages = append(t.messages, m)
	return true
}

// Contains reports whether a message with id is present.
func (t *Timeline) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	return len(t.messages)
}

// Messages returns a copy of the ordered list.
func (t *Timeline) Messages() []core.Message {
	out := make([]core.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Package chat reconciles fetched history, local sends and pushed messages into
// one ordered view per conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/core"
)

const leaveTimeout = 2 * time.Second

// State is the lifecycle position of a surface.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateLive
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Store loads and persists messages over the request/response API.
type Store interface {
	History(ctx context.Context, scope core.Scope) ([]core.Message, error)
	Send(ctx context.Context, scope core.Scope, content string) (core.Message, error)
}

// Subscription is a stream of pushed events.
type Subscription interface {
	Events() <-chan core.Event
	Cancel()
}

// Feed is the push side of a project conversation.
type Feed interface {
	Join(ctx context.Context, projectID string) error
	Leave(ctx context.Context, projectID string) error
	Publish(ctx context.Context, msg core.Message) error
	Subscribe() Subscription
}

var errAlreadyOpened = errors.New("chat surface already opened")

// Surface is the view of one conversation.
type Surface struct {
	scope core.Scope
	store Store
	feed  Feed
	log   zerolog.Logger

	mu       sync.Mutex
	state    State
	err      error
	timeline *Timeline
	updates  chan struct{}

	sub    Subscription
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProjectSurface builds a surface for a project room. A nil feed gives a
// surface that only talks to the store.
func NewProjectSurface(projectID string, store Store, feed Feed, logger *zerolog.Logger) *Surface {
	return newSurface(core.ProjectScope(projectID), store, feed, logger)
}

// NewDirectSurface builds a surface for a one-to-one conversation. Direct
// conversations receive no pushed messages; call Refresh to pick up new ones.
func NewDirectSurface(peerID string, store Store, logger *zerolog.Logger) *Surface {
	return newSurface(core.DirectScope(peerID), store, nil, logger)
}

func newSurface(scope core.Scope, store Store, feed Feed, logger *zerolog.Logger) *Surface {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Surface{
		scope:    scope,
		store:    store,
		feed:     feed,
		log:      l.With().Str("scope", scope.String()).Logger(),
		timeline: NewTimeline(nil),
		updates:  make(chan struct{}, 1),
	}
}

// Scope returns the conversation the surface shows.
func (s *Surface) Scope() core.Scope {
	return s.scope
}

// Open fetches history and goes live. Project surfaces subscribe and join the
// room before fetching, so messages pushed during the fetch are applied once
// history is seeded.
func (s *Surface) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
	case StateClosed:
		s.mu.Unlock()
		return core.ErrClosed
	default:
		s.mu.Unlock()
		return errAlreadyOpened
	}
	s.state = StateLoading
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.notifyLocked()
	s.mu.Unlock()

	var sub Subscription
	if s.feed != nil {
		sub = s.feed.Subscribe()
		if err := s.feed.Join(ctx, s.scope.ID); err != nil {
			s.log.Warn().Err(err).Msg("join room failed")
		}
	}

	history, err := s.store.History(ctx, s.scope)
	if err != nil {
		if sub != nil {
			sub.Cancel()
			s.leave()
		}
		s.mu.Lock()
		if s.state == StateLoading {
			s.state = StateError
			s.err = err
			s.timeline = NewTimeline(nil)
			s.notifyLocked()
		}
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("history fetch failed")
		return fmt.Errorf("load %s: %w", s.scope, err)
	}

	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		if sub != nil {
			sub.Cancel()
			s.leave()
		}
		return core.ErrClosed
	}
	s.timeline = NewTimeline(history)
	s.state = StateLive
	s.sub = sub
	if sub != nil {
		s.done = make(chan struct{})
		go s.run(sub, s.done)
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.log.Debug().Int("messages", len(history)).Msg("chat surface live")
	return nil
}

// Send posts content and shows the stored message. Nothing is shown when the
// post fails. On success the message is also broadcast to the room, best effort.
func (s *Surface) Send(ctx context.Context, content string) (core.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return core.Message{}, core.ErrEmptyMessage
	}
	if s.State() != StateLive {
		return core.Message{}, core.ErrNotLive
	}

	msg, err := s.store.Send(ctx, s.scope, content)
	if err != nil {
		return core.Message{}, err
	}

	s.mu.Lock()
	if s.state != StateLive {
		s.mu.Unlock()
		return msg, nil
	}
	if s.timeline.Insert(msg) {
		s.notifyLocked()
	}
	s.mu.Unlock()

	if s.feed != nil {
		if err := s.feed.Publish(ctx, msg); err != nil {
			s.log.Debug().Err(err).Str("message", msg.ID).Msg("broadcast failed")
		}
	}
	return msg, nil
}

// Refresh refetches history and inserts messages not yet shown. It returns the
// number of messages added.
func (s *Surface) Refresh(ctx context.Context) (int, error) {
	if s.State() != StateLive {
		return 0, core.ErrNotLive
	}

	history, err := s.store.History(ctx, s.scope)
	if err != nil {
		return 0, fmt.Errorf("refresh %s: %w", s.scope, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateLive {
		return 0, core.ErrNotLive
	}
	added := 0
	for _, m := range history {
		if s.timeline.Insert(m) {
			added++
		}
	}
	if added > 0 {
		s.notifyLocked()
	}
	return added, nil
}

// Messages returns a snapshot of the ordered list.
func (s *Surface) Messages() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Messages()
}

func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the surface to StateError.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Updates signals list or state changes. Signals coalesce; read Messages and
// State after each one. The channel is closed by Close.
func (s *Surface) Updates() <-chan struct{} {
	return s.updates
}

// Close leaves the room, stops the stream and discards the list.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	wasLive := s.state == StateLive
	s.state = StateClosed
	s.timeline = NewTimeline(nil)
	sub, done, cancel := s.sub, s.done, s.cancel
	s.sub = nil
	close(s.updates)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Cancel()
		<-done
	}
	if wasLive && s.feed != nil {
		s.leave()
	}
	s.log.Debug().Msg("chat surface closed")
	return nil
}

func (s *Surface) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := s.feed.Leave(ctx, s.scope.ID); err != nil {
		s.log.Debug().Err(err).Msg("leave room failed")
	}
}

func (s *Surface) run(sub Subscription, done chan struct{}) {
	defer close(done)

	for ev := range sub.Events() {
		switch ev.Kind {
		case core.EventNewMessage:
			if !s.owns(ev) {
				continue
			}
			s.mu.Lock()
			if s.state == StateLive && s.timeline.Insert(ev.Message) {
				s.notifyLocked()
			}
			s.mu.Unlock()
		case core.EventReconnected:
			// Messages pushed while the connection was down are only in history.
			if n, err := s.Refresh(s.ctx); err != nil {
				s.log.Debug().Err(err).Msg("refresh after reconnect failed")
			} else if n > 0 {
				s.log.Debug().Int("messages", n).Msg("caught up after reconnect")
			}
		case core.EventError:
			if ev.Error != nil {
				s.log.Warn().Str("code", ev.Error.Code).Msg(ev.Error.Message)
			}
		}
	}
}

func (s *Surface) owns(ev core.Event) bool {
	projectID := ev.Message.ProjectID
	if projectID == "" {
		projectID = ev.Room
	}
	return projectID == s.scope.ID
}

// notifyLocked must be called with mu held and the surface not closed.
func (s *Surface) notifyLocked() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

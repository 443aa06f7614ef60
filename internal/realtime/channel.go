// Package realtime maintains the push connection to the TeamFlow backend.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/proto"
	"github.com/teamflow/teamflow-cli/internal/session"
)

const maxFrameBytes = 1 << 20

// Options configures a channel.
type Options struct {
	URL               string
	DialTimeout       time.Duration
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	// DisableReconnect makes a dropped connection final.
	DisableReconnect bool
}

// Channel is one realtime connection. It tracks the set of joined project rooms
// and rejoins all of them after a reconnect.
type Channel struct {
	opts    Options
	session *session.Store
	log     *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// roomMu orders room changes with the frames announcing them.
	roomMu sync.Mutex

	mu     sync.Mutex
	conn   *websocket.Conn
	rooms  map[string]struct{}
	subs   map[*Subscription]struct{}
	closed bool

	beforeRejoin func(room string)
}

// Dial connects to the push endpoint using the session token.
func Dial(ctx context.Context, opts Options, sess *session.Store, logger *zerolog.Logger) (*Channel, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.ReconnectMinDelay <= 0 {
		opts.ReconnectMinDelay = 500 * time.Millisecond
	}
	if opts.ReconnectMaxDelay < opts.ReconnectMinDelay {
		opts.ReconnectMaxDelay = opts.ReconnectMinDelay
	}

	c := &Channel{
		opts:    opts,
		session: sess,
		log:     logger,
		done:    make(chan struct{}),
		rooms:   make(map[string]struct{}),
		subs:    make(map[*Subscription]struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	go c.run(conn)

	c.log.Debug().Str("url", opts.URL).Msg("realtime channel connected")
	return c, nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	token, ok := c.session.Token()
	if !ok {
		return nil, core.ErrNoSession
	}

	if c.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.Dial(ctx, c.opts.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: %w", c.opts.URL, core.ErrUnauthorized)
		}
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	return conn, nil
}

// Join declares membership of a project room. Joining a room twice is a no-op.
// The room stays tracked even if the write fails, so a reconnect will join it.
func (c *Channel) Join(ctx context.Context, projectID string) error {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}
	if _, ok := c.rooms[projectID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.rooms[projectID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	return c.write(ctx, conn, proto.EventJoinProject, proto.JoinData{ProjectID: projectID})
}

// Leave releases membership of a project room.
func (c *Channel) Leave(ctx context.Context, projectID string) error {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}
	if _, ok := c.rooms[projectID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.rooms, projectID)
	conn := c.conn
	c.mu.Unlock()

	return c.write(ctx, conn, proto.EventLeaveProject, proto.JoinData{ProjectID: projectID})
}

// Rooms returns the tracked room set.
func (c *Channel) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Emit pushes an event to the server without waiting for any acknowledgement.
func (c *Channel) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrClosed
	}
	conn := c.conn
	c.mu.Unlock()

	return c.write(ctx, conn, event, payload)
}

// Subscribe opens a new event stream. Streams opened after Close are already closed.
func (c *Channel) Subscribe() *Subscription {
	sub := newSubscription(c.unsubscribe)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		sub.finish()
		return sub
	}
	c.subs[sub] = struct{}{}
	return sub
}

func (c *Channel) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

// Close tears the connection down, stops reconnecting and ends every subscription.
func (c *Channel) Close() error {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if !alreadyClosed && conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
			c.log.Debug().Err(err).Msg("realtime close handshake")
		}
	}
	c.cancel()
	<-c.done
	return nil
}

func (c *Channel) write(ctx context.Context, conn *websocket.Conn, event string, payload any) error {
	frame, err := proto.NewFrame(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if conn == nil {
		return fmt.Errorf("write %s: not connected", event)
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		c.log.Debug().Err(err).Str("event", event).Msg("realtime write failed")
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Channel) run(conn *websocket.Conn) {
	defer close(c.done)
	defer c.finishSubscriptions()

	b := backoff{min: c.opts.ReconnectMinDelay, max: c.opts.ReconnectMaxDelay}
	for {
		err := c.readLoop(conn)
		if c.isClosed() {
			return
		}
		c.log.Warn().Err(err).Msg("realtime connection lost")
		_ = conn.CloseNow()

		if c.opts.DisableReconnect {
			return
		}

		conn = c.reconnect(&b)
		if conn == nil {
			return
		}
		b.reset()
		c.publish(core.Event{Kind: core.EventReconnected})
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		var frame proto.Frame
		if err := wsjson.Read(c.ctx, conn, &frame); err != nil {
			return err
		}

		ev, ok, err := proto.EventFromFrame(frame)
		if err != nil {
			c.log.Warn().Err(err).Str("event", frame.Event).Msg("dropping malformed frame")
			continue
		}
		if !ok {
			c.log.Debug().Str("event", frame.Event).Msg("ignoring realtime event")
			continue
		}
		c.publish(ev)
	}
}

// reconnect redials until it succeeds or the channel is closed, then rejoins tracked rooms.
func (c *Channel) reconnect(b *backoff) *websocket.Conn {
	for {
		delay := b.next()
		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := c.dial(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("realtime reconnect failed")
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.CloseNow()
			return nil
		}
		c.conn = conn
		rooms := make([]string, 0, len(c.rooms))
		for room := range c.rooms {
			rooms = append(rooms, room)
		}
		hook := c.beforeRejoin
		c.mu.Unlock()

		rejoined := 0
		for _, room := range rooms {
			if hook != nil {
				hook(room)
			}
			if c.rejoin(conn, room) {
				rejoined++
			}
		}
		c.log.Info().Int("rooms", rejoined).Msg("realtime channel reconnected")
		return conn
	}
}

// rejoin re-announces room on conn unless it was left since the reconnect began.
func (c *Channel) rejoin(conn *websocket.Conn, room string) bool {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()

	c.mu.Lock()
	_, tracked := c.rooms[room]
	c.mu.Unlock()
	if !tracked {
		return false
	}
	if err := c.write(c.ctx, conn, proto.EventJoinProject, proto.JoinData{ProjectID: room}); err != nil {
		c.log.Warn().Err(err).Str("room", room).Msg("rejoin failed")
		return false
	}
	return true
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) publish(ev core.Event) {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

func (c *Channel) finishSubscriptions() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[*Subscription]struct{})
	c.closed = true
	c.mu.Unlock()

	for sub := range subs {
		sub.finish()
	}
}

package app

import (
	"context"
	"sync"

	"github.com/teamflow/teamflow-cli/internal/chat"
	"github.com/teamflow/teamflow-cli/internal/core"
	"github.com/teamflow/teamflow-cli/internal/proto"
	"github.com/teamflow/teamflow-cli/internal/realtime"
)

// Chat is an open chat surface plus the realtime channel feeding it, if any.
type Chat struct {
	app     *App
	surface *chat.Surface
	channel *realtime.Channel

	closeOnce sync.Once
}

// Surface returns the reconciled message list.
func (c *Chat) Surface() *chat.Surface { return c.surface }

// Live reports whether the chat receives realtime pushes.
func (c *Chat) Live() bool { return c.channel != nil }

// Tasks streams new-task pushes for the chat's project until ctx is done or
// the chat is closed. The channel is closed right away for chats without
// realtime.
func (c *Chat) Tasks(ctx context.Context) <-chan core.Task {
	out := make(chan core.Task)
	if c.channel == nil {
		close(out)
		return out
	}

	projectID := c.surface.Scope().ID
	sub := c.channel.Subscribe()
	go func() {
		defer close(out)
		defer sub.Cancel()
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if ev.Kind != core.EventNewTask || ev.Task == nil || ev.Task.ProjectID != projectID {
					continue
				}
				select {
				case out <- *ev.Task:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close closes the surface, then the channel. It is safe to call more than once.
func (c *Chat) Close() {
	c.closeOnce.Do(func() {
		c.teardown()
		c.app.forget(c)
	})
}

func (c *Chat) teardown() {
	if err := c.surface.Close(); err != nil {
		c.app.log.Debug().Err(err).Str("scope", c.surface.Scope().String()).Msg("close surface")
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.app.log.Debug().Err(err).Msg("close realtime channel")
		}
	}
}

// channelFeed adapts a realtime channel to the chat core.
type channelFeed struct {
	ch *realtime.Channel
}

func (f channelFeed) Join(ctx context.Context, projectID string) error {
	return f.ch.Join(ctx, projectID)
}

func (f channelFeed) Leave(ctx context.Context, projectID string) error {
	return f.ch.Leave(ctx, projectID)
}

func (f channelFeed) Publish(ctx context.Context, msg core.Message) error {
	return f.ch.Emit(ctx, proto.EventSendMessage, proto.SendMessageData{
		ProjectID: msg.ProjectID,
		Message:   proto.MessageFromCore(msg),
	})
}

func (f channelFeed) Subscribe() chat.Subscription {
	return f.ch.Subscribe()
}

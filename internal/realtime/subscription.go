package realtime

import (
	"sync"

	"github.com/teamflow/teamflow-cli/internal/core"
)

// Subscription is a typed stream of channel events. Events are delivered in receipt
// order and never dropped; the queue between the channel and the reader is unbounded.
type Subscription struct {
	in     chan core.Event
	out    chan core.Event
	done   chan struct{}
	once   sync.Once
	detach func(*Subscription)
}

func newSubscription(detach func(*Subscription)) *Subscription {
	s := &Subscription{
		in:     make(chan core.Event, 16),
		out:    make(chan core.Event),
		done:   make(chan struct{}),
		detach: detach,
	}
	go s.pump()
	return s
}

// Events returns the stream. It is closed after Cancel or when the channel closes.
func (s *Subscription) Events() <-chan core.Event {
	return s.out
}

// Cancel stops delivery and releases the subscription.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		if s.detach != nil {
			s.detach(s)
		}
	})
}

// deliver hands ev to the pump. Called only from the channel's read goroutine.
func (s *Subscription) deliver(ev core.Event) {
	select {
	case s.in <- ev:
	case <-s.done:
	}
}

// finish signals that no more events will be delivered. Called once by the channel.
func (s *Subscription) finish() {
	close(s.in)
}

func (s *Subscription) pump() {
	defer close(s.out)

	in := s.in
	var queue []core.Event
	for {
		if in == nil && len(queue) == 0 {
			return
		}

		var out chan core.Event
		var next core.Event
		if len(queue) > 0 {
			out = s.out
			next = queue[0]
		}

		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, ev)
		case out <- next:
			queue[0] = core.Event{}
			queue = queue[1:]
		case <-s.done:
			return
		}
	}
}

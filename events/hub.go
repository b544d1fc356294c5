package events

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 16

// Subscriber receives encoded events on Send until the hub closes it.
type Subscriber struct {
	Send chan []byte
}

// Hub fans events out to websocket subscribers. All subscriber state is owned
// by the Run goroutine.
type Hub struct {
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan []byte
	done        chan struct{}
	subscribers map[*Subscriber]struct{}
	log         *logrus.Entry
}

func NewHub() *Hub {
	return &Hub{
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan []byte, 64),
		done:        make(chan struct{}),
		subscribers: make(map[*Subscriber]struct{}),
		log:         logrus.WithField("component", "events"),
	}
}

// Run serves the hub until ctx is cancelled, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for s := range h.subscribers {
				delete(h.subscribers, s)
				close(s.Send)
			}
			return
		case s := <-h.register:
			h.subscribers[s] = struct{}{}
		case s := <-h.unregister:
			if _, ok := h.subscribers[s]; ok {
				delete(h.subscribers, s)
				close(s.Send)
			}
		case msg := <-h.broadcast:
			for s := range h.subscribers {
				select {
				case s.Send <- msg:
				default:
					// Slow consumer; it will reconnect and refetch.
					delete(h.subscribers, s)
					close(s.Send)
				}
			}
		}
	}
}

// Subscribe registers a new subscriber. After the hub has stopped the
// returned subscriber's Send channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{Send: make(chan []byte, subscriberBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.Send)
	}
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Publish queues ev for every subscriber, dropping it when the hub is
// saturated or stopped.
func (h *Hub) Publish(_ context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("failed to encode event")
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.WithField("event_type", ev.Type).Warn("event hub saturated, dropping event")
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

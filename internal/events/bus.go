// Package events is a best-effort, in-process publish/subscribe bus used to
// notify UI-facing listeners. Delivery is non-blocking: a subscriber whose
// buffer is full misses the event, and there is no replay.
package events

import (
	"log/slog"
	"sync"
	"time"
)

const (
	subscriberBufferSize = 16

	// TopicAll subscribes to every topic
	TopicAll = "*"
)

// Event is a single published notification.
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(topic string, payload any)
}

type subscription struct {
	topic string
	ch    chan *Event
}

// Bus fans events out to per-topic subscriber channels.
type Bus struct {
	subs map[string][]*subscription
	mu   sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]*subscription),
	}
}

// Subscribe returns a channel receiving events published on topic after this call.
func (b *Bus) Subscribe(topic string) <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{
		topic: topic,
		ch:    make(chan *Event, subscriberBufferSize),
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub.ch
}

// SubscribeAll returns a channel receiving events of every topic.
func (b *Bus) SubscribeAll() <-chan *Event {
	return b.Subscribe(TopicAll)
}

// Unsubscribe removes and closes a subscription channel
func (b *Bus) Unsubscribe(ch <-chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subs {
		for i, sub := range subs {
			if sub.ch == ch {
				close(sub.ch)
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				if len(b.subs[topic]) == 0 {
					delete(b.subs, topic)
				}
				return
			}
		}
	}
}

// Publish delivers payload to the subscribers of topic and to wildcard subscribers.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := &Event{Topic: topic, Payload: payload, Time: time.Now()}
	b.deliver(b.subs[topic], event)
	if topic != TopicAll {
		b.deliver(b.subs[TopicAll], event)
	}
}

func (b *Bus) deliver(subs []*subscription, event *Event) {
	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			slog.Debug("events subscriber full. dropped", "topic", event.Topic)
		}
	}
}

// Subscribers returns the number of subscribers on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

var _ Publisher = (*Bus)(nil)

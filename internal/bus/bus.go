// Package bus provides an advisory in-process broadcast channel. Other open
// instances (or components within one process) subscribe to be woken when
// shared state changed and should be re-fetched. It is a wake-up signal, not
// a lock: duplicate work triggered in two subscribers must converge on its
// own.
package bus

import "sync"

// Topic identifies a class of change notifications.
type Topic string

// Topics published by the engines.
const (
	TopicTagsChanged    Topic = "tags-changed"
	TopicRecordsChanged Topic = "records-changed"
	TopicSyncCompleted  Topic = "sync-completed"
)

// Bus fans a topic out to all subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[Topic][]chan struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]chan struct{})}
}

// Subscribe returns a channel that receives a signal whenever the topic is
// published. The channel has capacity one: coalesced wake-ups are fine
// because subscribers re-fetch state rather than consume events.
func (b *Bus) Subscribe(topic Topic) <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish wakes every subscriber of the topic. Never blocks: a subscriber
// that already has a pending signal is skipped.
func (b *Bus) Publish(topic Topic) {
	b.mu.Lock()
	subs := b.subs[topic]
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

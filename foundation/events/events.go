// Package events fans out coordinator and mining events to any number of
// subscribers, such as websocket viewers.
package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// messageBuffer is the number of events a subscriber can fall behind before
// events are dropped for it. A websocket write can take a while.
const messageBuffer = 100

// Events maintains a mapping of subscriber id and channel so goroutines
// can subscribe and receive events.
type Events struct {
	mu     sync.RWMutex
	m      map[string]chan string
	closed bool
}

// New constructs an events value for subscribing and publishing events.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Subscribe registers a new subscriber and returns its id with the channel
// the events arrive on. The channel is closed by Unsubscribe or Shutdown.
func (evt *Events) Subscribe() (string, <-chan string) {
	return evt.SubscribeID(uuid.NewString())
}

// SubscribeID registers a subscriber under the specified id. Subscribing an
// id that already exists returns the existing channel.
func (evt *Events) SubscribeID(id string) (string, <-chan string) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.m[id]; exists {
		return id, ch
	}

	ch := make(chan string, messageBuffer)
	if evt.closed {
		close(ch)
		return id, ch
	}

	evt.m[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the channel for the specified subscriber.
func (evt *Events) Unsubscribe(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("subscriber %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Publish sends the message to every subscriber. Publish never blocks, a
// subscriber that is not keeping up misses the message.
func (evt *Events) Publish(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (evt *Events) Len() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.m)
}

// Shutdown closes and removes every subscriber channel. Subscribers added
// after Shutdown receive a closed channel.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
	evt.closed = true
}

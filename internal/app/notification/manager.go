// Package notification provides the notice manager that fans user-facing
// notices out to every connected widget and control client.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const sendTimeout = 500 * time.Millisecond

// Stream represents a notice stream for a subscriber.
type Stream interface {
	Send(*Notice) error
}

// MessageFunc returns the text shown for a notice code.
type MessageFunc func(code string) string

type subscription struct {
	id     string
	stream Stream
}

// Manager manages notice subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	messages      MessageFunc

	sequenceNo   uint64
	sequenceNoMu sync.Mutex
}

// NewManager creates a new notice manager. messages may be nil, in which case
// the code doubles as the message.
func NewManager(messages MessageFunc) *Manager {
	if messages == nil {
		messages = func(code string) string { return code }
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		messages:      messages,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Notify builds the notice for code and broadcasts it.
func (m *Manager) Notify(code string) *Notice {
	n := &Notice{
		Code:    code,
		Level:   LevelOf(code),
		Message: m.messages(code),
	}
	m.Broadcast(n)
	return n
}

// Broadcast stamps the notice and sends it to all subscribers.
// Each send runs in its own goroutine with a timeout so one slow subscriber
// cannot hold up the others.
func (m *Manager) Broadcast(n *Notice) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	zlog.Debug().Msgf("notification: broadcasting: code=%s level=%s subscribers=%d", n.Code, n.Level, len(subs))

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: subscription=%s err=%v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: subscription=%s", s.id)
			}
		}(sub)
	}
	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

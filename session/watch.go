package session

import "sync"

// State tracks startup restoration, not authentication. It flips to
// StateReady exactly once, after the first Restore completes, and later
// session destruction never moves it back.
type State int

const (
	StateInitializing State = iota
	StateReady
)

// Change is delivered to subscribers whenever the manager's state or session
// snapshot changes. Session is nil when absent.
type Change struct {
	State   State
	Session *Session
}

// Subscription receives manager changes until closed. Slow consumers have
// messages dropped rather than blocking the manager.
type Subscription struct {
	mgr  *Manager
	ch   chan Change
	once sync.Once
}

// Receive returns the channel changes arrive on. It is closed when the
// subscription or the manager is closed.
func (s *Subscription) Receive() <-chan Change {
	return s.ch
}

// Close detaches the subscription. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mgr.removeSubscription(s)
		close(s.ch)
	})
}

const subscriptionBuffer = 8

// Subscribe registers a listener for session and state changes.
func (m *Manager) Subscribe() *Subscription {
	sub := &Subscription{mgr: m, ch: make(chan Change, subscriptionBuffer)}
	m.subsLock.Lock()
	m.subs = append(m.subs, sub)
	m.subsLock.Unlock()
	return sub
}

func (m *Manager) removeSubscription(sub *Subscription) {
	m.subsLock.Lock()
	defer m.subsLock.Unlock()
	for i, s := range m.subs {
		if s == sub {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

// broadcast delivers a change to every subscriber, dropping it for any whose
// buffer is full. Sends happen under the lock so a concurrently closing
// subscription can never receive on a closed channel.
func (m *Manager) broadcast(change Change) {
	m.subsLock.Lock()
	defer m.subsLock.Unlock()
	for _, sub := range m.subs {
		select {
		case sub.ch <- change:
		default:
		}
	}
}

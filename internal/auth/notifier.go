package auth

import "sync"

// Subscription is the handle returned by OnSessionChange.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe removes the listener. Calls after the first are no-ops.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

type notifier struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]Listener
}

func newNotifier() *notifier {
	return &notifier{listeners: make(map[uint64]Listener)}
}

func (n *notifier) subscribe(l Listener) *Subscription {
	n.mu.Lock()
	id := n.next
	n.next++
	n.listeners[id] = l
	n.mu.Unlock()
	return &Subscription{cancel: func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}}
}

func (n *notifier) len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// emit calls every listener synchronously, outside the lock so listeners may
// unsubscribe themselves.
func (n *notifier) emit(ev Event) {
	n.mu.RLock()
	snapshot := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		snapshot = append(snapshot, l)
	}
	n.mu.RUnlock()
	for _, l := range snapshot {
		l(ev)
	}
}

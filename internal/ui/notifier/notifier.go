// Package notifier fans out "harvest changed" pings to open SSE streams.
package notifier

import "sync"

// Notifier broadcasts pings to subscribed listeners. A ping carries no
// data; listeners re-read the snapshot when they receive one.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel that receives pings. Call Unsubscribe when
// the stream ends.
func (n *Notifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	if _, ok := n.listeners[ch]; ok {
		delete(n.listeners, ch)
		close(ch)
	}
	n.mu.Unlock()
}

// Subscribers returns the number of open listeners.
func (n *Notifier) Subscribers() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast pings every listener and returns how many were pinged.
// A listener with a pending ping is skipped; one ping covers both changes.
func (n *Notifier) Broadcast() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	sent := 0
	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
			sent++
		default:
		}
	}
	return sent
}

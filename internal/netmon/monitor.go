// Package netmon exposes connectivity transitions as shared state. It is
// a pass-through for the host's online/offline signals: no polling, no
// debouncing, no retries of its own.
package netmon

import "sync"

// Monitor fans one online/offline signal out to subscribers. The zero
// value is not usable; call New.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

// New returns a monitor that starts online.
func New() *Monitor {
	return &Monitor{online: true, subs: make(map[int]func(bool))}
}

// Online reports the current connectivity.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a connectivity transition and notifies subscribers.
// Repeated reports of the same state are ignored.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	// Subscribers run outside the lock so they may call back into the monitor.
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for future transitions and returns an
// unsubscribe func. fn is not called with the current state.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

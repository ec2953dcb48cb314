package realtime

import "sync"

// Presence is the single source of truth for which users are currently
// reachable over a live connection. It maps a username to the connection id
// of its most recent joined connection.
//
// Invariants: at most one connection id per username, and a connection id is
// referenced by at most one username. A reconnect under the same username
// overwrites the previous entry (last writer wins); there is no multi-device
// fan-out.
type Presence struct {
	mu    sync.RWMutex
	conns map[string]string // username -> connection id
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{conns: make(map[string]string)}
}

// Record inserts or overwrites the entry for username. If another username
// currently holds connID, that entry is evicted first so a connection id is
// never referenced twice.
func (p *Presence) Record(username, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for user, id := range p.conns {
		if id == connID && user != username {
			delete(p.conns, user)
		}
	}
	p.conns[username] = connID
}

// Lookup returns the connection id for username, if any. Pure read.
func (p *Presence) Lookup(username string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.conns[username]
	return id, ok
}

// Remove deletes the entry whose current connection id is connID. It is a
// no-op when no entry matches, which covers the close event of a stale
// connection arriving after the user already reconnected under a new one.
func (p *Presence) Remove(connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for user, id := range p.conns {
		if id == connID {
			delete(p.conns, user)
			return
		}
	}
}

// Len returns the number of users currently recorded as present.
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

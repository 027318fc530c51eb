package realtime

import "sync"

// Registry tracks the current connection of every present user. Entries are
// keyed by user id and the most recent registration wins.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Connection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Connection),
	}
}

// Register stores conn as the current connection of identity and returns the
// connection it superseded, if any. The superseded connection is left open.
func (r *Registry) Register(identity Identity, conn *Connection) *Connection {
	if conn == nil || !identity.Valid() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.entries[identity.ID]
	r.entries[identity.ID] = conn
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister removes the entry of identity only while it still points at
// conn. It returns false for a stale connection that was already replaced.
func (r *Registry) Unregister(identity Identity, conn *Connection) bool {
	if conn == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[identity.ID]
	if !ok || current != conn {
		return false
	}
	delete(r.entries, identity.ID)
	return true
}

// Lookup returns the current connection of identity.
func (r *Registry) Lookup(identity Identity) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.entries[identity.ID]
	return conn, ok
}

// IsPresent reports whether identity holds a live connection.
func (r *Registry) IsPresent(identity Identity) bool {
	_, ok := r.Lookup(identity)
	return ok
}

// Count returns the number of present users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close closes every registered connection and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.entries))
	for id, conn := range r.entries {
		conns = append(conns, conn)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

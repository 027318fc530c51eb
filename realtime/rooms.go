package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Rooms holds topic membership for live connections. A connection stays in
// its topics until it leaves, even after the registry moved on to a newer
// connection of the same user.
type Rooms struct {
	mu      sync.RWMutex
	members map[Topic]map[uuid.UUID]*Connection
	joined  map[uuid.UUID][]Topic
}

// NewRooms returns empty topic membership.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[Topic]map[uuid.UUID]*Connection),
		joined:  make(map[uuid.UUID][]Topic),
	}
}

// Join adds conn to topic.
func (r *Rooms) Join(topic Topic, conn *Connection) {
	if conn == nil || topic == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[topic]
	if !ok {
		set = make(map[uuid.UUID]*Connection)
		r.members[topic] = set
	}
	if _, exists := set[conn.Handle]; exists {
		return
	}
	set[conn.Handle] = conn
	r.joined[conn.Handle] = append(r.joined[conn.Handle], topic)
}

// LeaveAll removes conn from every topic it joined.
func (r *Rooms) LeaveAll(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, topic := range r.joined[conn.Handle] {
		set := r.members[topic]
		delete(set, conn.Handle)
		if len(set) == 0 {
			delete(r.members, topic)
		}
	}
	delete(r.joined, conn.Handle)
}

// Members returns a snapshot of the connections in topic.
func (r *Rooms) Members(topic Topic) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[topic]
	out := make([]*Connection, 0, len(set))
	for _, conn := range set {
		out = append(out, conn)
	}
	return out
}

// Size returns the number of connections in topic.
func (r *Rooms) Size(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[topic])
}

// Topics returns the topics conn joined.
func (r *Rooms) Topics(conn *Connection) []Topic {
	if conn == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.joined[conn.Handle]
	out := make([]Topic, len(joined))
	copy(out, joined)
	return out
}

package realtime

import "github.com/google/uuid"

// Publisher accepts events for delivery. Publishing never fails and never
// blocks on a slow client.
type Publisher interface {
	Publish(event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(event Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(event Event) {
	if f != nil {
		f(event)
	}
}

// Broadcaster fans events out to the members of their topics.
type Broadcaster struct {
	rooms    *Rooms
	registry *Registry
	logger   Logger
	metrics  *Metrics
}

var _ Publisher = (*Broadcaster)(nil)

// BroadcasterOption customizes a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger sets the logger.
func WithBroadcasterLogger(logger Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.logger = resolveLogger(logger)
	}
}

// WithBroadcasterMetrics sets the metrics sink.
func WithBroadcasterMetrics(m *Metrics) BroadcasterOption {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

// NewBroadcaster returns a Broadcaster over rooms. The registry is only read
// to report whether the target of an event is online.
func NewBroadcaster(rooms *Rooms, registry *Registry, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		rooms:    rooms,
		registry: registry,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Publish delivers event to every connection in its topics, at most once per
// connection. Full queues drop the frame. A force logout frame delivered to
// the target's own connections is their last one.
func (b *Broadcaster) Publish(event Event) {
	if event == nil {
		return
	}

	frame, err := Encode(event)
	if err != nil {
		b.logger.Error("realtime event encode failed", "kind", event.Kind(), "error", err)
		return
	}

	seen := make(map[uuid.UUID]struct{})
	delivered, dropped := 0, 0

	for _, topic := range Route(event) {
		for _, conn := range b.rooms.Members(topic) {
			if _, ok := seen[conn.Handle]; ok {
				continue
			}
			seen[conn.Handle] = struct{}{}

			var ok bool
			if event.Kind() == KindForceLogout && conn.Identity.ID == event.Target() {
				ok = conn.DeliverFinal(frame)
			} else {
				ok = conn.Deliver(frame)
			}

			if ok {
				delivered++
				continue
			}
			dropped++
			b.logger.Debug("realtime frame dropped",
				"event", event.Name(),
				"user_id", conn.Identity.ID,
				"handle", conn.Handle.String(),
			)
		}
	}

	b.metrics.publish(event.Kind(), delivered, dropped)

	if target := event.Target(); target != "" && b.registry != nil && !b.registry.IsPresent(Identity{ID: target}) {
		b.logger.Debug("realtime target offline", "event", event.Name(), "user_id", target)
	}

	b.logger.Debug("realtime event published",
		"event", event.Name(),
		"target", event.Target(),
		"delivered", delivered,
		"dropped", dropped,
	)
}

package realtime

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"
)

// Frame types and close codes shared by WebSocket implementations.
const (
	TextMessage  = 1
	CloseMessage = 8
	PingMessage  = 9

	CloseNormalClosure = 1000
	CloseGoingAway     = 1001
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = (defaultPongWait * 9) / 10
)

// Transport is the frame-level view of a WebSocket connection.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Handshake carries what a client presents when it connects. Only Token is
// trusted; the hints are compared and logged.
type Handshake struct {
	Token     string
	UserID    string
	UserEmail string
}

// Gateway authenticates connections and runs their lifecycle.
type Gateway struct {
	verifier   CredentialVerifier
	registry   *Registry
	rooms      *Rooms
	publisher  Publisher
	logger     Logger
	metrics    *Metrics
	now        func() time.Time
	sendBuffer int
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = resolveLogger(logger)
	}
}

// WithGatewayMetrics sets the metrics sink.
func WithGatewayMetrics(m *Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithGatewayPublisher enables admin_broadcast frames from admin connections.
func WithGatewayPublisher(p Publisher) GatewayOption {
	return func(g *Gateway) {
		g.publisher = p
	}
}

// WithGatewayClock injects the clock used for connection and event
// timestamps. Transport deadlines always follow the wall clock.
func WithGatewayClock(clock func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithSendBuffer sets the outbound queue size per connection.
func WithSendBuffer(size int) GatewayOption {
	return func(g *Gateway) {
		if size > 0 {
			g.sendBuffer = size
		}
	}
}

// WithKeepalive sets how long a silent peer is kept and how often it is
// pinged. pingPeriod must be shorter than pongWait.
func WithKeepalive(pongWait, pingPeriod time.Duration) GatewayOption {
	return func(g *Gateway) {
		if pongWait > 0 && pingPeriod > 0 && pingPeriod < pongWait {
			g.pongWait = pongWait
			g.pingPeriod = pingPeriod
		}
	}
}

// NewGateway wires a gateway to its verifier, registry and topic membership.
func NewGateway(verifier CredentialVerifier, registry *Registry, rooms *Rooms, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		verifier:   verifier,
		registry:   registry,
		rooms:      rooms,
		logger:     nopLogger{},
		now:        time.Now,
		sendBuffer: DefaultSendBuffer,
		writeWait:  defaultWriteWait,
		pongWait:   defaultPongWait,
		pingPeriod: defaultPingPeriod,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate verifies a handshake. A rejected handshake must not be
// upgraded.
func (g *Gateway) Authenticate(h Handshake) (Identity, error) {
	verdict := g.verifier.Verify(h.Token)
	if !verdict.Accepted() {
		g.metrics.handshake("rejected")
		g.logger.Info("realtime handshake rejected", "claimed_user_id", h.UserID, "error", verdict.Err)
		if verdict.Err == nil {
			return Identity{}, ErrAuthenticationRejected
		}
		return Identity{}, verdict.Err
	}

	if h.UserID != "" && h.UserID != verdict.Identity.ID {
		g.logger.Warn("realtime handshake hint mismatch",
			"claimed_user_id", h.UserID,
			"user_id", verdict.Identity.ID,
		)
	}

	g.metrics.handshake("accepted")
	g.logger.Debug("realtime handshake accepted",
		"user_id", verdict.Identity.ID,
		"role", verdict.Identity.Role,
		"keyspace", verdict.Keyspace,
		"email_hint", h.UserEmail,
	)
	return verdict.Identity, nil
}

// Attach registers a new connection for identity and joins its topics.
func (g *Gateway) Attach(identity Identity) *Connection {
	conn := NewConnection(identity, g.sendBuffer, g.now())

	if prev := g.registry.Register(identity, conn); prev != nil {
		g.logger.Info("realtime connection superseded",
			"user_id", identity.ID,
			"previous", prev.Handle.String(),
			"current", conn.Handle.String(),
		)
	}

	for _, topic := range TopicsFor(identity) {
		g.rooms.Join(topic, conn)
	}

	g.metrics.connected()
	g.logger.Info("realtime connection attached", "user_id", identity.ID, "role", identity.Role, "handle", conn.Handle.String())
	return conn
}

// Detach closes conn, leaves its topics and unregisters it. A connection that
// was already superseded leaves the registry untouched.
func (g *Gateway) Detach(conn *Connection) {
	if conn == nil {
		return
	}
	conn.Close()
	g.rooms.LeaveAll(conn)

	if !g.registry.Unregister(conn.Identity, conn) {
		g.logger.Debug("realtime stale unregister", "user_id", conn.Identity.ID, "handle", conn.Handle.String(), "error", ErrRegistryRace)
	}

	g.metrics.disconnected()
	g.logger.Info("realtime connection detached", "user_id", conn.Identity.ID, "handle", conn.Handle.String())
}

// Serve attaches identity, pumps frames over transport until either side
// ends the connection or ctx is done, and then detaches.
func (g *Gateway) Serve(ctx context.Context, transport Transport, identity Identity) error {
	conn := g.Attach(identity)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		g.readLoop(transport, conn)
	}()

	err := g.writeLoop(ctx, transport, conn)

	g.Detach(conn)
	_ = transport.Close()
	<-readDone

	return err
}

func (g *Gateway) readLoop(transport Transport, conn *Connection) {
	defer conn.Close()

	_ = transport.SetReadDeadline(time.Now().Add(g.pongWait))
	transport.SetPongHandler(func(string) error {
		return transport.SetReadDeadline(time.Now().Add(g.pongWait))
	})

	for {
		_, data, err := transport.ReadMessage()
		if err != nil {
			return
		}
		g.handleInbound(conn, data)
	}
}

func (g *Gateway) writeLoop(ctx context.Context, transport Transport, conn *Connection) error {
	ticker := time.NewTicker(g.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.writeClose(transport, CloseGoingAway, "server shutting down")
			return nil
		case <-conn.Done():
			g.writeClose(transport, CloseNormalClosure, "")
			return nil
		case out := <-conn.send:
			_ = transport.SetWriteDeadline(time.Now().Add(g.writeWait))
			if err := transport.WriteMessage(TextMessage, out.data); err != nil {
				return err
			}
			if out.final {
				g.writeClose(transport, CloseNormalClosure, "logged out")
				return nil
			}
		case <-ticker.C:
			_ = transport.SetWriteDeadline(time.Now().Add(g.writeWait))
			if err := transport.WriteMessage(PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (g *Gateway) writeClose(transport Transport, code int, text string) {
	_ = transport.SetWriteDeadline(time.Now().Add(g.writeWait))
	_ = transport.WriteMessage(CloseMessage, closePayload(code, text))
}

func closePayload(code int, text string) []byte {
	buf := make([]byte, 2+len(text))
	binary.BigEndian.PutUint16(buf, uint16(code))
	copy(buf[2:], text)
	return buf
}

type adminBroadcastRequest struct {
	TargetUserID string `json:"targetUserId"`
	Message      string `json:"message"`
}

func (g *Gateway) handleInbound(conn *Connection, data []byte) {
	var in Envelope
	if err := json.Unmarshal(data, &in); err != nil {
		g.logger.Debug("realtime inbound frame ignored", "user_id", conn.Identity.ID, "error", err)
		return
	}

	switch in.Event {
	case EventCheckUserStatus:
		g.reply(conn, EventCheckUserStatus, map[string]string{"status": "checked"})
	case EventPing:
		g.reply(conn, EventPong, map[string]time.Time{"timestamp": g.now()})
	case EventAdminBroadcast:
		g.handleAdminBroadcast(conn, in.Data)
	default:
		g.logger.Debug("realtime inbound event unknown", "user_id", conn.Identity.ID, "event", in.Event)
	}
}

func (g *Gateway) handleAdminBroadcast(conn *Connection, data json.RawMessage) {
	if !conn.Identity.IsAdmin() {
		g.reply(conn, EventError, map[string]string{"message": "admin privileges required"})
		return
	}
	if g.publisher == nil {
		g.reply(conn, EventError, map[string]string{"message": "broadcast unavailable"})
		return
	}

	var req adminBroadcastRequest
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		g.reply(conn, EventError, map[string]string{"message": "message is required"})
		return
	}

	g.publisher.Publish(AdminMessage{
		TargetUserID: strings.TrimSpace(req.TargetUserID),
		From:         conn.Identity.ID,
		Message:      req.Message,
		Timestamp:    g.now(),
	})
}

func (g *Gateway) reply(conn *Connection, event string, data any) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		g.logger.Error("realtime reply encode failed", "event", event, "error", err)
		return
	}
	if !conn.Deliver(frame) {
		g.logger.Debug("realtime reply dropped", "event", event, "user_id", conn.Identity.ID)
	}
}

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serveResult struct {
	done chan error
}

func serve(f *fanoutFixture, ctx context.Context, transport Transport, identity Identity) serveResult {
	res := serveResult{done: make(chan error, 1)}
	go func() {
		res.done <- f.gateway.Serve(ctx, transport, identity)
	}()
	return res
}

func (r serveResult) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not end")
		return nil
	}
}

func waitForConnection(t *testing.T, reg *Registry, identity Identity, not *Connection) *Connection {
	t.Helper()
	var conn *Connection
	require.Eventually(t, func() bool {
		c, ok := reg.Lookup(identity)
		if !ok || c == not {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

func TestGatewayAuthenticateRejects(t *testing.T) {
	f := newFanoutFixture()

	_, err := f.gateway.Authenticate(Handshake{Token: "forged", UserID: "alice"})
	assert.True(t, IsAuthenticationRejected(err))

	_, err = f.gateway.Authenticate(Handshake{})
	assert.True(t, IsAuthenticationRejected(err))

	assert.Equal(t, 0, f.registry.Count())
}

func TestGatewayAuthenticateIgnoresHints(t *testing.T) {
	f := newFanoutFixture()

	identity, err := f.gateway.Authenticate(Handshake{Token: "user-token", UserID: "mallory"})
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "alice", Role: RoleUser}, identity)

	identity, err = f.gateway.Authenticate(Handshake{Token: "admin-token"})
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "root", Role: RoleAdmin}, identity)
}

func TestGatewayServeDeliversAndUnregisters(t *testing.T) {
	f := newFanoutFixture()
	alice := Identity{ID: "alice", Role: RoleUser}
	transport := newFakeTransport()

	run := serve(f, context.Background(), transport, alice)
	waitForConnection(t, f.registry, alice, nil)

	f.broadcaster.Publish(UserBanned{UserID: "alice", Message: MessageBanned})

	env := transport.nextText(t)
	assert.Equal(t, EventUserBanned, env.Event)

	require.NoError(t, transport.Close())
	require.NoError(t, run.wait(t))

	assert.False(t, f.registry.IsPresent(alice))
	assert.Equal(t, 0, f.rooms.Size(UserTopic("alice")))
}

func TestGatewayReconnectRace(t *testing.T) {
	f := newFanoutFixture()
	alice := Identity{ID: "alice", Role: RoleUser}

	firstTransport := newFakeTransport()
	firstRun := serve(f, context.Background(), firstTransport, alice)
	first := waitForConnection(t, f.registry, alice, nil)

	secondTransport := newFakeTransport()
	secondRun := serve(f, context.Background(), secondTransport, alice)
	second := waitForConnection(t, f.registry, alice, first)

	require.NoError(t, firstTransport.Close())
	require.NoError(t, firstRun.wait(t))

	current, ok := f.registry.Lookup(alice)
	require.True(t, ok, "late disconnect of the old connection must not evict the new one")
	assert.Same(t, second, current)

	require.NoError(t, secondTransport.Close())
	require.NoError(t, secondRun.wait(t))
	assert.False(t, f.registry.IsPresent(alice))
}

func TestGatewayForceLogoutEndsConnection(t *testing.T) {
	f := newFanoutFixture()
	alice := Identity{ID: "alice", Role: RoleUser}
	transport := newFakeTransport()

	run := serve(f, context.Background(), transport, alice)
	waitForConnection(t, f.registry, alice, nil)

	f.broadcaster.Publish(ForceLogout{UserID: "alice", Message: MessageLoggedOut})

	env := transport.nextText(t)
	assert.Equal(t, EventForceLogout, env.Event)
	transport.nextOfType(t, CloseMessage)

	require.NoError(t, run.wait(t))
	assert.False(t, f.registry.IsPresent(alice))
}

func TestGatewayCheckUserStatusAck(t *testing.T) {
	f := newFanoutFixture()
	alice := Identity{ID: "alice", Role: RoleUser}
	transport := newFakeTransport()

	run := serve(f, context.Background(), transport, alice)
	waitForConnection(t, f.registry, alice, nil)

	transport.send(t, EventCheckUserStatus, map[string]string{"userId": "alice"})

	env := transport.nextText(t)
	assert.Equal(t, EventCheckUserStatus, env.Event)
	assert.JSONEq(t, `{"status":"checked"}`, string(env.Data))

	require.NoError(t, transport.Close())
	require.NoError(t, run.wait(t))
}

func TestGatewayAdminBroadcast(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFanoutFixture(WithGatewayPublisher(pub), WithGatewayClock(fixedClock))

	user := newFakeTransport()
	userRun := serve(f, context.Background(), user, Identity{ID: "alice", Role: RoleUser})
	admin := newFakeTransport()
	adminRun := serve(f, context.Background(), admin, Identity{ID: "root", Role: RoleAdmin})
	waitForConnection(t, f.registry, Identity{ID: "alice"}, nil)
	waitForConnection(t, f.registry, Identity{ID: "root"}, nil)

	user.send(t, EventAdminBroadcast, map[string]string{"message": "hi all"})
	env := user.nextText(t)
	assert.Equal(t, EventError, env.Event)

	admin.send(t, EventAdminBroadcast, map[string]string{"targetUserId": "alice", "message": "hello"})
	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, AdminMessage{TargetUserID: "alice", From: "root", Message: "hello", Timestamp: fixedClock()}, pub.Events()[0])

	require.NoError(t, user.Close())
	require.NoError(t, admin.Close())
	require.NoError(t, userRun.wait(t))
	require.NoError(t, adminRun.wait(t))
}

func TestGatewayServeStopsOnContext(t *testing.T) {
	f := newFanoutFixture()
	alice := Identity{ID: "alice", Role: RoleUser}
	transport := newFakeTransport()
	ctx, cancel := context.WithCancel(context.Background())

	run := serve(f, ctx, transport, alice)
	waitForConnection(t, f.registry, alice, nil)

	cancel()
	transport.nextOfType(t, CloseMessage)
	require.NoError(t, run.wait(t))
	assert.Equal(t, 0, f.registry.Count())
}

func TestGatewayDeadlinesIgnoreInjectedClock(t *testing.T) {
	f := newFanoutFixture(WithGatewayClock(fixedClock))
	alice := Identity{ID: "alice", Role: RoleUser}
	transport := newFakeTransport()
	start := time.Now()

	run := serve(f, context.Background(), transport, alice)
	conn := waitForConnection(t, f.registry, alice, nil)
	assert.Equal(t, fixedClock(), conn.ConnectedAt)

	f.broadcaster.Publish(UserBanned{UserID: "alice", Message: MessageBanned})
	transport.nextText(t)

	_, write := transport.deadlines()
	assert.True(t, write.After(start), "write deadline %v is already past", write)
	require.Eventually(t, func() bool {
		read, _ := transport.deadlines()
		return read.After(start)
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, transport.Close())
	require.NoError(t, run.wait(t))
}

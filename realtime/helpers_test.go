package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubClaims string

func (s stubClaims) UserID() string { return string(s) }

// tokenTable accepts the tokens it knows and rejects the rest.
func tokenTable(tokens map[string]string) TokenValidator {
	return TokenValidatorFunc(func(token string) (Claims, error) {
		if id, ok := tokens[token]; ok {
			return stubClaims(id), nil
		}
		return nil, errors.New("signature is invalid")
	})
}

type writtenFrame struct {
	messageType int
	data        []byte
}

type fakeTransport struct {
	inbound   chan []byte
	writes    chan writtenFrame
	closed    chan struct{}
	closeOnce sync.Once

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

var _ Transport = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 16),
		writes:  make(chan writtenFrame, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("transport closed")
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("transport closed")
	default:
	}
	select {
	case f.writes <- writtenFrame{messageType: messageType, data: data}:
	default:
	}
	return nil
}

func (f *fakeTransport) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDeadline = t
	return nil
}

func (f *fakeTransport) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeDeadline = t
	return nil
}

func (f *fakeTransport) deadlines() (read, write time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readDeadline, f.writeDeadline
}
func (f *fakeTransport) SetPongHandler(func(string) error) {}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) send(t *testing.T, event string, data any) {
	t.Helper()
	frame, err := EncodeFrame(event, data)
	require.NoError(t, err)
	f.inbound <- frame
}

// nextText returns the next text frame written to the transport.
func (f *fakeTransport) nextText(t *testing.T) Envelope {
	t.Helper()
	for {
		select {
		case w := <-f.writes:
			if w.messageType != TextMessage {
				continue
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(w.data, &env))
			return env
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a text frame")
			return Envelope{}
		}
	}
}

func (f *fakeTransport) nextOfType(t *testing.T, messageType int) writtenFrame {
	t.Helper()
	for {
		select {
		case w := <-f.writes:
			if w.messageType == messageType {
				return w
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame type %d", messageType)
			return writtenFrame{}
		}
	}
}

// drain reads every queued frame of conn without blocking.
func drain(conn *Connection) []outbound {
	var out []outbound
	for {
		select {
		case o := <-conn.send:
			out = append(out, o)
		default:
			return out
		}
	}
}

func decodeData(t *testing.T, raw []byte) (string, map[string]any) {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	data := map[string]any{}
	if len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, &data))
	}
	return env.Event, data
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ErrConnClosed
	}
	c.frames = append(c.frames, append([]byte(nil), msg...))
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type decoded struct {
	Type    string
	Payload map[string]any
}

func (c *fakeConn) envelopes(t *testing.T) []decoded {
	t.Helper()
	var out []decoded
	for _, f := range c.received() {
		out = append(out, decodeFrame(t, f))
	}
	return out
}

func decodeFrame(t *testing.T, frame []byte) decoded {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env), "frame %q", frame)
	d := decoded{Type: env.Type}
	require.NoError(t, json.Unmarshal(env.Payload, &d.Payload))
	return d
}

func mustEnvelope(t *testing.T, msgType string, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Envelope{Type: msgType, Payload: body})
	require.NoError(t, err)
	return raw
}

func usersOf(t *testing.T, d decoded) []string {
	t.Helper()
	require.Equal(t, TypeUserList, d.Type)
	raw, ok := d.Payload["users"].([]any)
	require.True(t, ok)
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		out = append(out, u.(string))
	}
	return out
}

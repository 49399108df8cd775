package ws

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ServerOptions) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := newTestHub()
	srv := NewWsServer(h, opts)
	r := gin.New()
	r.GET("/ws", srv.Handle)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, h
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeEnvelope(t *testing.T, c *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, mustEnvelope(t, msgType, payload)))
}

func readEnvelope(t *testing.T, c *websocket.Conn) decoded {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	return decodeFrame(t, data)
}

func expectNoMessage(t *testing.T, c *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := c.ReadMessage()
	require.Error(t, err, "unexpected frame %q", data)
	netErr, ok := err.(net.Error)
	require.True(t, ok && netErr.Timeout(), "unexpected error: %v", err)
}

func TestWsServer_Chat_Over_Sockets(t *testing.T) {
	req := require.New(t)
	ts, h := newTestServer(t, ServerOptions{})

	alice := dial(t, ts)
	writeEnvelope(t, alice, TypeJoin, JoinRequest{RoomID: "r1", Username: "alice"})
	req.Equal([]string{"alice"}, usersOf(t, readEnvelope(t, alice)))

	bob := dial(t, ts)
	writeEnvelope(t, bob, TypeJoin, JoinRequest{RoomID: "r1", Username: "bob"})

	notice := readEnvelope(t, alice)
	req.Equal(TypeSystem, notice.Type)
	req.Equal("bob has joined the room!", notice.Payload["message"])
	req.Equal([]string{"alice", "bob"}, usersOf(t, readEnvelope(t, alice)))
	req.Equal([]string{"alice", "bob"}, usersOf(t, readEnvelope(t, bob)))

	writeEnvelope(t, alice, TypeChat, ChatRequest{Message: "hi"})
	for _, c := range []*websocket.Conn{alice, bob} {
		got := readEnvelope(t, c)
		req.Equal(TypeChat, got.Type)
		req.Equal("alice [14:03:09]: hi", got.Payload["message"])
	}

	writeEnvelope(t, bob, TypeTyping, TypingRequest{Username: "bob"})
	got := readEnvelope(t, alice)
	req.Equal(TypeTyping, got.Type)
	req.Equal("bob is typing...", got.Payload["message"])
	expectNoMessage(t, bob, 100*time.Millisecond)

	req.Equal([]RoomSummary{{ID: "r1", Members: 2}}, h.Registry().Rooms())
}

func TestWsServer_Malformed_Frame_Keeps_Connection(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t, ServerOptions{})

	alice := dial(t, ts)
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{broken`)))
	writeEnvelope(t, alice, TypeChat, ChatRequest{Message: "before join"})
	writeEnvelope(t, alice, TypeJoin, JoinRequest{RoomID: "r1", Username: "alice"})

	// The first frame back is the join's user list: nothing was sent for the
	// bad frame or the early chat, and the socket is still open.
	req.Equal([]string{"alice"}, usersOf(t, readEnvelope(t, alice)))
}

func TestWsServer_Close_Announces_Leave(t *testing.T) {
	req := require.New(t)
	ts, h := newTestServer(t, ServerOptions{})

	alice := dial(t, ts)
	writeEnvelope(t, alice, TypeJoin, JoinRequest{RoomID: "r1", Username: "alice"})
	readEnvelope(t, alice)

	bob := dial(t, ts)
	writeEnvelope(t, bob, TypeJoin, JoinRequest{RoomID: "r1", Username: "bob"})
	readEnvelope(t, alice) // joined notice
	readEnvelope(t, alice) // user list
	readEnvelope(t, bob)

	req.NoError(bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = bob.Close()

	left := readEnvelope(t, alice)
	req.Equal(TypeSystem, left.Type)
	req.Equal("bob has left the room!", left.Payload["message"])
	req.Equal([]string{"alice"}, usersOf(t, readEnvelope(t, alice)))
	req.Equal([]string{"alice"}, h.Registry().Usernames("r1"))
}

func TestWsServer_Origin_Allow_List(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t, ServerOptions{AllowedOrigins: []string{"https://chat.example.com"}})

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "HTTPS://Chat.Example.com")
	c, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	req.NoError(err)
	_ = c.Close()
}

func TestOriginChecker(t *testing.T) {
	req := require.New(t)
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)

	req.True(originChecker(nil)(r))
	req.True(originChecker([]string{"*"})(r))

	check := originChecker([]string{"http://localhost:5173"})
	req.True(check(r), "requests without Origin come from non-browser clients")

	r.Header.Set("Origin", "http://localhost:5173")
	req.True(check(r))
	r.Header.Set("Origin", "http://localhost:3000")
	req.False(check(r))
	r.Header.Set("Origin", "::not a url")
	req.False(check(r))
}

func TestParseOrigins(t *testing.T) {
	req := require.New(t)

	origins, all := ParseOrigins(nil)
	req.True(all)
	req.Empty(origins)

	_, all = ParseOrigins([]string{"http://a.example", " * "})
	req.True(all)

	_, all = ParseOrigins([]string{"not an origin"})
	req.True(all, "nothing parseable leaves the list open")

	origins, all = ParseOrigins([]string{"HTTP://Localhost:5173", "http://localhost:5173", " https://chat.example "})
	req.False(all)
	req.Equal([]string{"http://localhost:5173", "https://chat.example"}, origins)
}

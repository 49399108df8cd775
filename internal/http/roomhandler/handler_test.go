package roomhandler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chatrelay/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubConn string

func (c stubConn) ID() string { return string(c) }
func (c stubConn) Send([]byte) error { return nil }

func newRouter(reg *ws.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(reg).Register(r)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_List(t *testing.T) {
	reg := ws.NewRegistry()
	reg.Add(stubConn("a"), "r1", "alice")
	reg.Add(stubConn("b"), "r1", "bob")
	reg.Add(stubConn("c"), "lobby", "carol")

	w := get(newRouter(reg), "/rooms")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"rooms":[{"id":"lobby","members":1},{"id":"r1","members":2}]}`, w.Body.String())
}

func TestHandler_List_Empty(t *testing.T) {
	w := get(newRouter(ws.NewRegistry()), "/rooms")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"rooms":[]}`, w.Body.String())
}

func TestHandler_Users(t *testing.T) {
	reg := ws.NewRegistry()
	reg.Add(stubConn("a"), "r1", "alice")
	reg.Add(stubConn("b"), "r1", "bob")

	w := get(newRouter(reg), "/rooms/r1/users")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"roomId":"r1","users":["alice","bob"]}`, w.Body.String())
}

func TestHandler_Users_Unknown_Room(t *testing.T) {
	w := get(newRouter(ws.NewRegistry()), "/rooms/nope/users")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"room nope not found"}`, w.Body.String())
}

package ws

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait
)

type ServerOptions struct {
	// AllowedOrigins limits the Origin header of upgrade requests. Empty or
	// containing "*" accepts any origin.
	AllowedOrigins []string
	MaxMessageSize int64
	SendBufferSize int
}

type WsServer struct {
	hub      *Hub
	upgrader websocket.Upgrader
	opts     ServerOptions
}

func NewWsServer(h *Hub, opts ServerOptions) *WsServer {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 256
	}
	srv := &WsServer{hub: h, opts: opts}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

// AllowedOrigins reports the origin allow-list the upgrader enforces.
func (s *WsServer) AllowedOrigins() (origins []string, all bool) {
	return ParseOrigins(s.opts.AllowedOrigins)
}

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.opts.MaxMessageSize)

	conn := newClientConn(rawConn, ginCtx.ClientIP(), s.opts.SendBufferSize)
	zap.L().Debug("ws.connected", zap.String("conn", conn.ID()), zap.String("addr", conn.addr))

	go conn.writePump()
	go s.reader(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(conn *clientConn) {
	defer func() {
		s.hub.Disconnect(conn)
		conn.close()
		zap.L().Debug("ws.disconnected", zap.String("conn", conn.ID()))
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", conn.ID()), zap.Error(err))
			}
			return // client closed or errored
		}

		// Bad input never closes the connection and never gets a reply.
		if err := s.hub.HandleMessage(context.Background(), conn, raw); err != nil {
			zap.L().Debug("ws.message_dropped", zap.String("conn", conn.ID()), zap.Error(err))
		}
	}
}

// ParseOrigins normalizes an origin allow-list. all is true when the list is
// empty, holds "*" or has no parseable entry.
func ParseOrigins(allowed []string) (origins []string, all bool) {
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil, true
		}
		if n, ok := normalizeOrigin(o); ok && !slices.Contains(origins, n) {
			origins = append(origins, n)
		}
	}
	return origins, len(origins) == 0
}

func originChecker(allowed []string) func(r *http.Request) bool {
	origins, all := ParseOrigins(allowed)
	if all {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[o] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		n, ok := normalizeOrigin(origin)
		if !ok {
			return false
		}
		if _, ok := set[n]; ok {
			return true
		}
		zap.L().Warn("ws.origin_blocked", zap.String("origin", origin))
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

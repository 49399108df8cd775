package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn is one upgraded socket. Writes go through a bounded queue drained
// by writePump so that Send never blocks the sender's dispatch.
type clientConn struct {
	id      string
	addr    string
	rawConn *websocket.Conn
	send    chan []byte

	mu     sync.Mutex
	closed bool
}

func newClientConn(rawConn *websocket.Conn, addr string, bufferSize int) *clientConn {
	return &clientConn{
		id:      uuid.NewString(),
		addr:    addr,
		rawConn: rawConn,
		send:    make(chan []byte, bufferSize),
	}
}

func (c *clientConn) ID() string { return c.id }

// Send queues msg for delivery without waiting for the socket.
func (c *clientConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close stops the write pump; safe to call more than once.
func (c *clientConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.rawConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Debug("ws.ping", zap.String("conn", c.id), zap.Error(err))
				return
			}
		}
	}
}

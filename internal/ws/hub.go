package ws

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	presenceQueueSize = 1024
	sinkTimeout       = 2 * time.Second
	clockLayout       = "15:04:05"
)

type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// PresenceEvent is emitted on every membership change.
type PresenceEvent struct {
	Kind     PresenceKind
	ConnID   string
	Room     string
	Username string
	At       time.Time
}

// PresenceSink observes membership changes outside the relay (Redis mirror,
// session log). Sinks run on a background goroutine, never on the dispatch path.
type PresenceSink interface {
	Record(ctx context.Context, ev PresenceEvent) error
}

type HubOption func(*Hub)

// WithClock overrides the clock used for chat timestamps.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// WithOutboundFormat selects FormatEnvelope (default) or FormatPlain.
func WithOutboundFormat(format string) HubOption {
	return func(h *Hub) { h.enc = encoderFor(format) }
}

func WithPresenceSinks(sinks ...PresenceSink) HubOption {
	return func(h *Hub) { h.sinks = append(h.sinks, sinks...) }
}

// Hub is the room broadcast engine: it decodes inbound envelopes, mutates the
// registry and fans the resulting events out to room members.
type Hub struct {
	// membership serializes join/leave so that a registry change and the
	// user-list it produces reach every member before the next change does.
	membership sync.Mutex

	registry *Registry
	router   *Router
	enc      encoder
	now      func() time.Time

	sinks  []PresenceSink
	events chan PresenceEvent
}

func NewHub(reg *Registry, opts ...HubOption) *Hub {
	h := &Hub{
		registry: reg,
		router:   NewRouter(),
		enc:      envelopeEncoder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.sinks) > 0 {
		h.events = make(chan PresenceEvent, presenceQueueSize)
	}
	h.registerHandlers() // ← all message types configured here
	return h
}

func (h *Hub) Registry() *Registry { return h.registry }

// HandleMessage processes one inbound frame from conn. The returned error is
// informational only: the caller must not reply with it nor close the
// connection because of it.
func (h *Hub) HandleMessage(ctx context.Context, conn Conn, raw []byte) error {
	_, err := h.router.dispatch(ctx, conn, raw)
	return err
}

// Disconnect drops conn from the registry and tells its room.
func (h *Hub) Disconnect(conn Conn) {
	h.membership.Lock()
	defer h.membership.Unlock()

	m, ok := h.registry.Remove(conn)
	if !ok {
		return
	}
	h.announceLeave(m)
}

// RunSinks drains presence events into the configured sinks until ctx ends.
func (h *Hub) RunSinks(ctx context.Context) {
	if h.events == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			for _, s := range h.sinks {
				sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
				if err := s.Record(sctx, ev); err != nil {
					zap.L().Warn("hub.sink_failed",
						zap.String("kind", string(ev.Kind)),
						zap.String("room", ev.Room),
						zap.Error(err))
				}
				cancel()
			}
		}
	}
}

// ---------------------------------------------------------------------------
//  Handlers
// ---------------------------------------------------------------------------

func (h *Hub) registerHandlers() {
	Register(h.router, TypeJoin, h.join)
	Register(h.router, TypeChat, h.chat)
	Register(h.router, TypeTyping, func(_ context.Context, conn Conn, _ TypingRequest) error {
		m, ok := h.registry.Find(conn)
		if !ok {
			return ErrNotJoined
		}
		h.broadcast(m.Room, typingNotice(m.Username), conn.ID())
		return nil
	})
	Register(h.router, TypeStopTyping, func(_ context.Context, conn Conn, _ TypingRequest) error {
		m, ok := h.registry.Find(conn)
		if !ok {
			return ErrNotJoined
		}
		h.broadcast(m.Room, stopTyping(m.Username), conn.ID())
		return nil
	})
}

func (h *Hub) join(_ context.Context, conn Conn, req JoinRequest) error {
	h.membership.Lock()
	defer h.membership.Unlock()

	added, displaced := h.registry.Add(conn, req.RoomID, req.Username)
	if displaced != nil {
		h.announceLeave(*displaced)
	}
	h.notify(PresenceJoined, added)

	zap.L().Info("hub.joined",
		zap.String("conn", conn.ID()),
		zap.String("room", added.Room),
		zap.String("username", added.Username))

	h.broadcast(added.Room, joinedNotice(added.Username), conn.ID())
	h.pushUserList(added.Room)
	return nil
}

func (h *Hub) chat(_ context.Context, conn Conn, req ChatRequest) error {
	m, ok := h.registry.Find(conn)
	if !ok {
		return ErrNotJoined
	}
	sentAt := h.now().Format(clockLayout)
	h.broadcast(m.Room, chatLine(m.Username, sentAt, req.Message), "")
	return nil
}

// ---------------------------------------------------------------------------
//  Fan-out
// ---------------------------------------------------------------------------

func (h *Hub) announceLeave(m Membership) {
	h.notify(PresenceLeft, m)

	zap.L().Info("hub.left",
		zap.String("conn", m.Conn.ID()),
		zap.String("room", m.Room),
		zap.String("username", m.Username))

	// m.Conn may already be back in the same room after a re-join.
	h.broadcast(m.Room, leftNotice(m.Username), m.Conn.ID())
	h.pushUserList(m.Room)
}

// pushUserList sends the room's user list to every member, built from the same
// snapshot the recipients come from.
func (h *Hub) pushUserList(roomID string) {
	members := h.registry.MembersOf(roomID)
	users := lo.Map(members, func(m Membership, _ int) string { return m.Username })
	h.deliver(members, userList(users), "")
}

func (h *Hub) broadcast(roomID string, msg outbound, excludeConnID string) {
	h.deliver(h.registry.MembersOf(roomID), msg, excludeConnID)
}

// deliver sends msg to every member except excludeConnID. A failing recipient
// is logged and skipped; it stays registered until its transport closes.
func (h *Hub) deliver(members []Membership, msg outbound, excludeConnID string) {
	if len(members) == 0 {
		return
	}
	frame, err := h.enc.encode(msg)
	if err != nil {
		zap.L().Error("hub.encode_failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	recipients := lo.Filter(members, func(m Membership, _ int) bool {
		return excludeConnID == "" || m.Conn.ID() != excludeConnID
	})

	sent := 0
	for _, m := range recipients {
		if err := m.Conn.Send(frame); err != nil {
			zap.L().Warn("hub.send_failed",
				zap.String("conn", m.Conn.ID()),
				zap.String("type", msg.Type),
				zap.Error(err))
			continue
		}
		sent++
	}
	zap.L().Debug("hub.delivered",
		zap.String("type", msg.Type),
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", sent))
}

func (h *Hub) notify(kind PresenceKind, m Membership) {
	if h.events == nil {
		return
	}
	ev := PresenceEvent{
		Kind:     kind,
		ConnID:   m.Conn.ID(),
		Room:     m.Room,
		Username: m.Username,
		At:       h.now(),
	}
	select {
	case h.events <- ev:
	default:
		zap.L().Warn("hub.presence_dropped", zap.String("kind", string(kind)), zap.String("room", m.Room))
	}
}

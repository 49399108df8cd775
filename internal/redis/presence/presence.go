// Package presence mirrors live room membership into Redis so that tools
// outside the relay can see who is online where.
package presence

import (
	"context"
	"fmt"

	"chatrelay/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix   = "chatrelay:"
	roomsKey    = keyPrefix + "rooms"
	membersTmpl = keyPrefix + "room:%s:members"
)

// MembersKey is the hash holding connID -> username for a room.
func MembersKey(roomID string) string { return fmt.Sprintf(membersTmpl, roomID) }

type Mirror struct {
	rdc redis.Cmdable
}

var _ ws.PresenceSink = (*Mirror)(nil)

func NewMirror(rdc redis.Cmdable) *Mirror { return &Mirror{rdc: rdc} }

// Record applies one membership change.
func (m *Mirror) Record(ctx context.Context, ev ws.PresenceEvent) error {
	switch ev.Kind {
	case ws.PresenceJoined:
		return m.joined(ctx, ev)
	case ws.PresenceLeft:
		return m.left(ctx, ev)
	}
	return fmt.Errorf("presence: unknown event kind %q", ev.Kind)
}

func (m *Mirror) joined(ctx context.Context, ev ws.PresenceEvent) error {
	if err := m.rdc.HSet(ctx, MembersKey(ev.Room), ev.ConnID, ev.Username).Err(); err != nil {
		return fmt.Errorf("presence hset %s: %w", ev.Room, err)
	}
	if err := m.rdc.SAdd(ctx, roomsKey, ev.Room).Err(); err != nil {
		return fmt.Errorf("presence sadd %s: %w", ev.Room, err)
	}
	return nil
}

func (m *Mirror) left(ctx context.Context, ev ws.PresenceEvent) error {
	key := MembersKey(ev.Room)
	if err := m.rdc.HDel(ctx, key, ev.ConnID).Err(); err != nil {
		return fmt.Errorf("presence hdel %s: %w", ev.Room, err)
	}
	n, err := m.rdc.HLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("presence hlen %s: %w", ev.Room, err)
	}
	if n > 0 {
		return nil
	}
	if err := m.rdc.SRem(ctx, roomsKey, ev.Room).Err(); err != nil {
		return fmt.Errorf("presence srem %s: %w", ev.Room, err)
	}
	return nil
}

// Clear drops whatever a previous process left behind. Must run before the
// relay accepts connections.
func (m *Mirror) Clear(ctx context.Context) error {
	rooms, err := m.rdc.SMembers(ctx, roomsKey).Result()
	if err != nil {
		return fmt.Errorf("presence smembers: %w", err)
	}
	keys := make([]string, 0, len(rooms)+1)
	for _, r := range rooms {
		keys = append(keys, MembersKey(r))
	}
	keys = append(keys, roomsKey)

	if err := m.rdc.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("presence del: %w", err)
	}
	zap.L().Info("presence cleared", zap.Int("rooms", len(rooms)))
	return nil
}

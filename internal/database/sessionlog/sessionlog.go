// Package sessionlog keeps an audit trail of room memberships in Postgres:
// who joined which room, when, and when they left. Message content is never
// written.
package sessionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chatrelay/internal/ws"

	"go.uber.org/zap"
)

const (
	insertSessionQ = `
	  INSERT INTO chat_sessions (conn_id, room_id, username, joined_at)
	       VALUES ($1, $2, $3, $4)`

	closeSessionQ = `
	  UPDATE chat_sessions
	     SET left_at = $1
	   WHERE conn_id = $2 AND room_id = $3 AND left_at IS NULL`

	closeDanglingQ = `
	  UPDATE chat_sessions
	     SET left_at = $1
	   WHERE left_at IS NULL`
)

type Log struct {
	db *sql.DB
}

var _ ws.PresenceSink = (*Log)(nil)

func New(db *sql.DB) *Log { return &Log{db: db} }

// Record writes one membership change.
func (l *Log) Record(ctx context.Context, ev ws.PresenceEvent) error {
	switch ev.Kind {
	case ws.PresenceJoined:
		if _, err := l.db.ExecContext(ctx, insertSessionQ, ev.ConnID, ev.Room, ev.Username, ev.At); err != nil {
			return fmt.Errorf("sessionlog insert: %w", err)
		}
		return nil
	case ws.PresenceLeft:
		if _, err := l.db.ExecContext(ctx, closeSessionQ, ev.At, ev.ConnID, ev.Room); err != nil {
			return fmt.Errorf("sessionlog close: %w", err)
		}
		return nil
	}
	return fmt.Errorf("sessionlog: unknown event kind %q", ev.Kind)
}

// CloseDangling stamps sessions a previous process never closed.
func (l *Log) CloseDangling(ctx context.Context, at time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, closeDanglingQ, at)
	if err != nil {
		return 0, fmt.Errorf("sessionlog close dangling: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zap.L().Info("sessionlog closed dangling sessions", zap.Int64("count", n))
	}
	return n, nil
}
